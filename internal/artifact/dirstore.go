package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	runsDir     = "runs"
	currentFile = "CURRENT"
)

// Registry lists and switches between saved training runs.
type Registry interface {
	ListRuns(ctx context.Context) ([]Manifest, error)
	Activate(ctx context.Context, runID string) error
	Rollback(ctx context.Context) (Manifest, error)
}

// DirStore keeps bundles on the local filesystem:
//
//	<root>/runs/<run-id>/{scaler,features,model,manifest}.json
//	<root>/CURRENT          (run id of the active bundle)
//
// A run directory is fully written before CURRENT is swapped by rename, so a
// concurrent reader resolves either the old run or the new one. A root with
// no CURRENT file is read as a flat legacy bundle.
type DirStore struct {
	root string
	now  func() time.Time
}

// NewDirStore returns a store rooted at dir. The directory is created on
// first Save.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: dir, now: time.Now}
}

// Root returns the store directory.
func (s *DirStore) Root() string { return s.root }

// Save writes b as a new run and makes it the active bundle.
func (s *DirStore) Save(ctx context.Context, b *Bundle) (Manifest, error) {
	if err := ctx.Err(); err != nil {
		return Manifest{}, err
	}

	blobs, m, err := Encode(b, s.now())
	if err != nil {
		return Manifest{}, err
	}

	runs := filepath.Join(s.root, runsDir)
	if err := os.MkdirAll(runs, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("create runs directory: %w", err)
	}

	staging, err := os.MkdirTemp(runs, ".staging-")
	if err != nil {
		return Manifest{}, fmt.Errorf("create staging directory: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(staging); err != nil {
			log.Warn().Err(err).Str("path", staging).Msg("failed to remove staging directory")
		}
	}

	for name, data := range blobs {
		if err := writeFileSync(filepath.Join(staging, name), data); err != nil {
			cleanup()
			return Manifest{}, fmt.Errorf("write %s: %w", name, err)
		}
	}

	final := filepath.Join(runs, m.RunID)
	if err := os.Rename(staging, final); err != nil {
		cleanup()
		return Manifest{}, fmt.Errorf("publish run %s: %w", m.RunID, err)
	}

	if err := s.setCurrent(m.RunID); err != nil {
		return Manifest{}, err
	}

	log.Info().
		Str("run", m.RunID).
		Str("root", s.root).
		Int("features", m.FeatureCount).
		Str("classifier", m.ClassifierKind).
		Msg("artifact bundle saved")

	return m, nil
}

// Load reads the active bundle.
func (s *DirStore) Load(ctx context.Context) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run, err := s.current()
	if err != nil {
		return nil, err
	}

	dir := s.root
	if run != "" {
		dir = filepath.Join(s.root, runsDir, run)
	}

	blobs, err := readBlobs(dir)
	if err != nil {
		return nil, err
	}
	return Decode(run, blobs)
}

// ListRuns returns the manifests of all saved runs, newest first.
func (s *DirStore) ListRuns(ctx context.Context) ([]Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.root, runsDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list runs: %w", err)
	}

	var manifests []Manifest
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, runsDir, e.Name(), BlobManifest))
		if err != nil {
			log.Warn().Err(err).Str("run", e.Name()).Msg("skipping run without readable manifest")
			continue
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			log.Warn().Err(err).Str("run", e.Name()).Msg("skipping run with corrupt manifest")
			continue
		}
		manifests = append(manifests, m)
	}

	SortNewestFirst(manifests)
	return manifests, nil
}

// Activate points CURRENT at an existing run.
func (s *DirStore) Activate(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validRunID(runID) {
		return fmt.Errorf("%w: invalid run id %q", ErrRunNotFound, runID)
	}
	if _, err := os.Stat(filepath.Join(s.root, runsDir, runID, BlobManifest)); err != nil {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return s.setCurrent(runID)
}

// Rollback activates the run saved immediately before the active one.
func (s *DirStore) Rollback(ctx context.Context) (Manifest, error) {
	runs, err := s.ListRuns(ctx)
	if err != nil {
		return Manifest{}, err
	}
	active, err := s.current()
	if err != nil {
		return Manifest{}, err
	}

	prev, err := PreviousRun(runs, active)
	if err != nil {
		return Manifest{}, err
	}
	if err := s.setCurrent(prev.RunID); err != nil {
		return Manifest{}, err
	}

	log.Info().Str("from", active).Str("to", prev.RunID).Msg("rolled back artifact bundle")
	return prev, nil
}

// validRunID reports whether runID names a single entry under runs/.
func validRunID(runID string) bool {
	return runID != "" && filepath.Base(runID) == runID && !strings.HasPrefix(runID, ".")
}

func (s *DirStore) current() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, currentFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", currentFile, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *DirStore) setCurrent(runID string) error {
	tmp := filepath.Join(s.root, "."+currentFile+".tmp")
	if err := writeFileSync(tmp, []byte(runID+"\n")); err != nil {
		return fmt.Errorf("write %s: %w", currentFile, err)
	}
	if err := os.Rename(tmp, filepath.Join(s.root, currentFile)); err != nil {
		return fmt.Errorf("swap %s: %w", currentFile, err)
	}
	return nil
}

func readBlobs(dir string) (Blobs, error) {
	blobs := make(Blobs, 4)
	for _, name := range []string{BlobScaler, BlobSchema, BlobClassifier, BlobManifest} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		blobs[name] = data
	}
	return blobs, nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SortNewestFirst orders manifests by creation time, newest first.
func SortNewestFirst(runs []Manifest) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].RunID > runs[j].RunID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
}

// PreviousRun returns the run saved just before active in a newest-first list.
func PreviousRun(runs []Manifest, active string) (Manifest, error) {
	if len(runs) < 2 {
		return Manifest{}, fmt.Errorf("no previous run available for rollback")
	}
	idx := -1
	for i, r := range runs {
		if r.RunID == active {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Manifest{}, fmt.Errorf("%w: active run %q", ErrRunNotFound, active)
	}
	if idx+1 >= len(runs) {
		return Manifest{}, fmt.Errorf("no previous run available for rollback")
	}
	return runs[idx+1], nil
}

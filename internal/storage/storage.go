// Package storage provides a bbolt-backed artifact store for the placement
// predictor. Each training run lives in its own sub-bucket and a single
// pointer in the meta bucket names the active run, so publishing a bundle is
// one update transaction. The same database also keeps a log of served
// predictions for offline review.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"

	"placement-predictor/internal/artifact"
	"placement-predictor/internal/common"
)

const (
	dbFile = "placement.db"

	runsBucket        = "runs"        // one sub-bucket per training run
	metaBucket        = "meta"        // active run pointer
	predictionsBucket = "predictions" // served predictions keyed by time

	activeKey = "active"
)

// Store persists artifact bundles and the prediction log in a BoltDB file.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

var (
	_ artifact.Store    = (*Store)(nil)
	_ artifact.Registry = (*Store)(nil)
)

// New opens (or creates) the database under dataPath and ensures its buckets
// exist.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{runsBucket, metaBucket, predictionsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save writes b as a new run and makes it active in the same transaction.
func (s *Store) Save(ctx context.Context, b *artifact.Bundle) (artifact.Manifest, error) {
	if err := ctx.Err(); err != nil {
		return artifact.Manifest{}, err
	}

	blobs, m, err := artifact.Encode(b, s.now())
	if err != nil {
		return artifact.Manifest{}, err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		run, err := tx.Bucket([]byte(runsBucket)).CreateBucket([]byte(m.RunID))
		if err != nil {
			return fmt.Errorf("create run %s: %w", m.RunID, err)
		}
		for name, data := range blobs {
			if err := run.Put([]byte(name), data); err != nil {
				return fmt.Errorf("put %s: %w", name, err)
			}
		}
		return tx.Bucket([]byte(metaBucket)).Put([]byte(activeKey), []byte(m.RunID))
	})
	if err != nil {
		return artifact.Manifest{}, err
	}

	log.Info().
		Str("run", m.RunID).
		Str("db", s.db.Path()).
		Int("features", m.FeatureCount).
		Str("classifier", m.ClassifierKind).
		Msg("artifact bundle saved")

	return m, nil
}

// Load reads the active bundle.
func (s *Store) Load(ctx context.Context) (*artifact.Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		runID string
		blobs = make(artifact.Blobs, 4)
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		runID = string(tx.Bucket([]byte(metaBucket)).Get([]byte(activeKey)))
		if runID == "" {
			return nil
		}
		run := tx.Bucket([]byte(runsBucket)).Bucket([]byte(runID))
		if run == nil {
			return fmt.Errorf("%w: active run %q", artifact.ErrRunNotFound, runID)
		}
		// Values are only valid inside the transaction.
		return run.ForEach(func(k, v []byte) error {
			blobs[string(k)] = bytes.Clone(v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return artifact.Decode(runID, blobs)
}

// ListRuns returns the manifests of all saved runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]artifact.Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var manifests []artifact.Manifest
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEachBucket(func(k []byte) error {
			run := tx.Bucket([]byte(runsBucket)).Bucket(k)
			var m artifact.Manifest
			if err := json.Unmarshal(run.Get([]byte(artifact.BlobManifest)), &m); err != nil {
				log.Warn().Err(err).Str("run", string(k)).Msg("skipping run with corrupt manifest")
				return nil
			}
			manifests = append(manifests, m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	artifact.SortNewestFirst(manifests)
	return manifests, nil
}

// Active returns the id of the active run, or "" if none was saved.
func (s *Store) Active(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var runID string
	err := s.db.View(func(tx *bbolt.Tx) error {
		runID = string(tx.Bucket([]byte(metaBucket)).Get([]byte(activeKey)))
		return nil
	})
	return runID, err
}

// Activate makes an existing run the active one.
func (s *Store) Activate(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(runsBucket)).Bucket([]byte(runID)) == nil {
			return fmt.Errorf("%w: %s", artifact.ErrRunNotFound, runID)
		}
		return tx.Bucket([]byte(metaBucket)).Put([]byte(activeKey), []byte(runID))
	})
}

// Rollback activates the run saved immediately before the active one.
func (s *Store) Rollback(ctx context.Context) (artifact.Manifest, error) {
	runs, err := s.ListRuns(ctx)
	if err != nil {
		return artifact.Manifest{}, err
	}
	active, err := s.Active(ctx)
	if err != nil {
		return artifact.Manifest{}, err
	}

	prev, err := artifact.PreviousRun(runs, active)
	if err != nil {
		return artifact.Manifest{}, err
	}
	if err := s.Activate(ctx, prev.RunID); err != nil {
		return artifact.Manifest{}, err
	}

	log.Info().Str("from", active).Str("to", prev.RunID).Msg("rolled back artifact bundle")
	return prev, nil
}

// Artifacts is an artifact store that also manages training runs.
type Artifacts interface {
	artifact.Store
	artifact.Registry
}

// OpenArtifacts returns the artifact backend named by backend ("dir" or
// "bolt"). The returned close function releases the backend; for "bolt" the
// *Store is also returned so callers can share the open database.
func OpenArtifacts(backend, dir, dataPath string) (Artifacts, *Store, func() error, error) {
	switch backend {
	case "", common.BackendDir:
		return artifact.NewDirStore(dir), nil, func() error { return nil }, nil
	case common.BackendBolt:
		s, err := New(dataPath)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, s.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown artifact backend %q", backend)
	}
}

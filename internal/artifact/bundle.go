// Package artifact persists and restores the three objects produced by one
// training run (fitted scaler, ordered feature schema, classifier) as a
// single bundle. Readers see either a complete bundle or an error, never a
// mix of runs.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"placement-predictor/internal/features"
	"placement-predictor/internal/model"
)

// Blob names inside a bundle.
const (
	BlobScaler     = "scaler.json"
	BlobSchema     = "features.json"
	BlobClassifier = "model.json"
	BlobManifest   = "manifest.json"
)

// FormatVersion is written to every manifest.
const FormatVersion = 1

// RequiredBlobs must all be present for a bundle to load.
var RequiredBlobs = []string{BlobScaler, BlobSchema, BlobClassifier}

// Store saves and loads bundles.
type Store interface {
	Save(ctx context.Context, b *Bundle) (Manifest, error)
	Load(ctx context.Context) (*Bundle, error)
}

// Manifest identifies a training run and fingerprints its blobs.
type Manifest struct {
	RunID          string    `json:"run_id"`
	CreatedAt      time.Time `json:"created_at"`
	FormatVersion  int       `json:"format_version"`
	FeatureCount   int       `json:"feature_count"`
	ClassifierKind string    `json:"classifier_kind"`
	Fingerprint    string    `json:"fingerprint"`
}

// Bundle is the matched set of artifacts from one training run.
type Bundle struct {
	Manifest   Manifest
	Scaler     *features.Scaler
	Schema     features.Schema
	Classifier model.Classifier
}

// Blobs is the serialised form of a bundle keyed by blob name.
type Blobs map[string][]byte

// NewRunID returns a sortable identifier for a training run.
func NewRunID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102-150405"), uuid.NewString()[:8])
}

// Validate cross-checks the bundle members against each other.
func (b *Bundle) Validate() error {
	if b.Scaler == nil || b.Schema == nil || b.Classifier == nil {
		return &MissingError{Run: b.Manifest.RunID, Blobs: b.absent()}
	}
	if err := b.Schema.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}
	if err := b.Scaler.Validate(len(b.Schema)); err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactVersionMismatch, err)
	}
	if fc, ok := b.Classifier.(model.FeatureCounter); ok && fc.NumFeatures() != len(b.Schema) {
		return fmt.Errorf("%w: classifier expects %d features, schema has %d",
			ErrArtifactVersionMismatch, fc.NumFeatures(), len(b.Schema))
	}
	return nil
}

func (b *Bundle) absent() []string {
	var missing []string
	if b.Scaler == nil {
		missing = append(missing, BlobScaler)
	}
	if b.Schema == nil {
		missing = append(missing, BlobSchema)
	}
	if b.Classifier == nil {
		missing = append(missing, BlobClassifier)
	}
	return missing
}

// Encode validates b, assigns a run id if it has none, and serialises it.
// The returned manifest is the one written into the blobs.
func Encode(b *Bundle, now time.Time) (Blobs, Manifest, error) {
	if err := b.Validate(); err != nil {
		return nil, Manifest{}, err
	}

	scaler, err := json.MarshalIndent(b.Scaler, "", "  ")
	if err != nil {
		return nil, Manifest{}, fmt.Errorf("marshal scaler: %w", err)
	}
	schema, err := json.MarshalIndent(b.Schema, "", "  ")
	if err != nil {
		return nil, Manifest{}, fmt.Errorf("marshal schema: %w", err)
	}
	clf, err := model.Encode(b.Classifier)
	if err != nil {
		return nil, Manifest{}, fmt.Errorf("marshal classifier: %w", err)
	}

	m := b.Manifest
	if m.RunID == "" {
		m.RunID = NewRunID(now)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now.UTC()
	}
	m.FormatVersion = FormatVersion
	m.FeatureCount = len(b.Schema)
	m.ClassifierKind = model.KindOf(b.Classifier)
	m.Fingerprint = Fingerprint(scaler, schema, clf)

	manifest, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, Manifest{}, fmt.Errorf("marshal manifest: %w", err)
	}

	return Blobs{
		BlobScaler:     scaler,
		BlobSchema:     schema,
		BlobClassifier: clf,
		BlobManifest:   manifest,
	}, m, nil
}

// Decode rebuilds a bundle from blobs. run is only used in error messages.
func Decode(run string, blobs Blobs) (*Bundle, error) {
	var missing []string
	for _, name := range RequiredBlobs {
		if _, ok := blobs[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingError{Run: run, Blobs: missing}
	}

	b := &Bundle{}

	if raw, ok := blobs[BlobManifest]; ok {
		if err := json.Unmarshal(raw, &b.Manifest); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrArtifactCorrupt, BlobManifest, err)
		}
		fp := Fingerprint(blobs[BlobScaler], blobs[BlobSchema], blobs[BlobClassifier])
		if b.Manifest.Fingerprint != fp {
			return nil, fmt.Errorf("%w: fingerprint %s does not match manifest %s",
				ErrArtifactVersionMismatch, fp, b.Manifest.Fingerprint)
		}
	} else {
		log.Warn().Str("run", run).Msg("bundle has no manifest, skipping fingerprint check")
		b.Manifest.RunID = run
	}

	if err := json.Unmarshal(blobs[BlobScaler], &b.Scaler); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactCorrupt, BlobScaler, err)
	}
	if err := json.Unmarshal(blobs[BlobSchema], &b.Schema); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactCorrupt, BlobSchema, err)
	}
	clf, err := model.Decode(blobs[BlobClassifier])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactCorrupt, BlobClassifier, err)
	}
	b.Classifier = clf

	// JSON null decodes to nil; report it as corrupt rather than missing.
	if b.Scaler == nil || b.Schema == nil {
		return nil, fmt.Errorf("%w: null scaler or schema", ErrArtifactCorrupt)
	}

	if b.Manifest.FeatureCount != 0 && b.Manifest.FeatureCount != len(b.Schema) {
		return nil, fmt.Errorf("%w: manifest lists %d features, schema has %d",
			ErrArtifactVersionMismatch, b.Manifest.FeatureCount, len(b.Schema))
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Fingerprint hashes the three required blobs in a fixed order.
func Fingerprint(scaler, schema, classifier []byte) string {
	h := sha256.New()
	for _, part := range [][]byte{scaler, schema, classifier} {
		fmt.Fprintf(h, "%d:", len(part))
		h.Write(part)
	}
	return hex.EncodeToString(h.Sum(nil))
}

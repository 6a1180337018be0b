package artifact

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placement-predictor/internal/features"
	"placement-predictor/internal/model"
)

func testBundle(t *testing.T) *Bundle {
	t.Helper()
	scaler, err := features.NewScaler([]float64{7.5, 80}, []float64{1.5, 10})
	require.NoError(t, err)
	return &Bundle{
		Scaler:     scaler,
		Schema:     features.Schema{"CGPA", "Aptitude_Test_Score"},
		Classifier: model.NewLogisticRegression([]float64{1.2, 0.8}, -0.3),
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := testBundle(t)

	blobs, m, err := Encode(b, now)
	require.NoError(t, err)
	assert.Len(t, blobs, 4)
	assert.Equal(t, 2, m.FeatureCount)
	assert.Equal(t, model.KindLogisticRegression, m.ClassifierKind)
	assert.Equal(t, FormatVersion, m.FormatVersion)
	assert.Equal(t, now, m.CreatedAt)
	assert.Contains(t, m.RunID, "20260301-120000-")

	got, err := Decode(m.RunID, blobs)
	require.NoError(t, err)
	assert.Equal(t, b.Schema, got.Schema)
	assert.Equal(t, b.Scaler, got.Scaler)
	assert.Equal(t, b.Classifier, got.Classifier)
	assert.Equal(t, m.Fingerprint, got.Manifest.Fingerprint)
}

func TestDecode_MissingBlobs(t *testing.T) {
	blobs, m, err := Encode(testBundle(t), time.Now())
	require.NoError(t, err)

	delete(blobs, BlobScaler)
	delete(blobs, BlobClassifier)

	_, err = Decode(m.RunID, blobs)
	require.ErrorIs(t, err, ErrArtifactMissing)

	var missing *MissingError
	require.ErrorAs(t, err, &missing)
	assert.ElementsMatch(t, []string{BlobScaler, BlobClassifier}, missing.Blobs)
	assert.Equal(t, m.RunID, missing.Run)
}

func TestDecode_FingerprintMismatch(t *testing.T) {
	blobs, _, err := Encode(testBundle(t), time.Now())
	require.NoError(t, err)

	other, _, err := Encode(&Bundle{
		Scaler:     features.IdentityScaler(2),
		Schema:     features.Schema{"CGPA", "Aptitude_Test_Score"},
		Classifier: model.NewLogisticRegression([]float64{1, 1}, 0),
	}, time.Now())
	require.NoError(t, err)

	// scaler from another run
	blobs[BlobScaler] = other[BlobScaler]
	_, err = Decode("mixed", blobs)
	assert.ErrorIs(t, err, ErrArtifactVersionMismatch)
}

func TestDecode_LengthMismatchWithoutManifest(t *testing.T) {
	blobs := Blobs{
		BlobScaler:     []byte(`{"mean":[0,0,0],"scale":[1,1,1]}`),
		BlobSchema:     []byte(`["CGPA","Aptitude_Test_Score"]`),
		BlobClassifier: []byte(`{"kind":"logistic_regression","params":{"coef":[1,1],"intercept":0}}`),
	}
	_, err := Decode("legacy", blobs)
	assert.ErrorIs(t, err, ErrArtifactVersionMismatch)

	blobs[BlobScaler] = []byte(`{"mean":[0,0],"scale":[1,1]}`)
	blobs[BlobClassifier] = []byte(`{"kind":"logistic_regression","params":{"coef":[1,1,1],"intercept":0}}`)
	_, err = Decode("legacy", blobs)
	assert.ErrorIs(t, err, ErrArtifactVersionMismatch)
}

func TestDecode_Corrupt(t *testing.T) {
	valid := Blobs{
		BlobScaler:     []byte(`{"mean":[0],"scale":[1]}`),
		BlobSchema:     []byte(`["CGPA"]`),
		BlobClassifier: []byte(`{"kind":"linear_svc","params":{"coef":[1],"intercept":0}}`),
	}

	b, err := Decode("legacy", valid)
	require.NoError(t, err)
	assert.Equal(t, "legacy", b.Manifest.RunID)

	tests := []struct {
		name string
		blob string
		data string
	}{
		{"scaler not json", BlobScaler, `{`},
		{"schema not json", BlobSchema, `nope`},
		{"schema null", BlobSchema, `null`},
		{"schema duplicate", BlobSchema, `["CGPA","CGPA"]`},
		{"unknown classifier", BlobClassifier, `{"kind":"forest","params":{}}`},
		{"manifest not json", BlobManifest, `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blobs := Blobs{}
			for k, v := range valid {
				blobs[k] = v
			}
			blobs[tt.blob] = []byte(tt.data)
			_, err := Decode("legacy", blobs)
			assert.ErrorIs(t, err, ErrArtifactCorrupt)
		})
	}
}

func TestEncode_RejectsIncompleteBundle(t *testing.T) {
	b := testBundle(t)
	b.Classifier = nil
	_, _, err := Encode(b, time.Now())
	assert.ErrorIs(t, err, ErrArtifactMissing)

	b = testBundle(t)
	b.Schema = features.Schema{"CGPA"}
	_, _, err = Encode(b, time.Now())
	assert.ErrorIs(t, err, ErrArtifactVersionMismatch)
}

func TestFingerprint_LengthPrefixed(t *testing.T) {
	assert.NotEqual(t,
		Fingerprint([]byte("ab"), []byte("c"), nil),
		Fingerprint([]byte("a"), []byte("bc"), nil))
	assert.Equal(t,
		Fingerprint([]byte("a"), []byte("b"), []byte("c")),
		Fingerprint([]byte("a"), []byte("b"), []byte("c")))
}

func TestDirStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := NewDirStore(t.TempDir())

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrArtifactMissing)

	m, err := s.Save(ctx, testBundle(t))
	require.NoError(t, err)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, m, got.Manifest)
	assert.Equal(t, features.Schema{"CGPA", "Aptitude_Test_Score"}, got.Schema)

	entries, err := os.ReadDir(filepath.Join(s.Root(), runsDir))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging directory must not be left behind")
}

func TestDirStore_LegacyFlatLayout(t *testing.T) {
	dir := t.TempDir()
	blobs, _, err := Encode(testBundle(t), time.Now())
	require.NoError(t, err)
	for _, name := range RequiredBlobs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), blobs[name], 0o644))
	}

	b, err := NewDirStore(dir).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, b.Schema, 2)
}

func TestDirStore_MissingBlobInRun(t *testing.T) {
	ctx := context.Background()
	s := NewDirStore(t.TempDir())
	m, err := s.Save(ctx, testBundle(t))
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(s.Root(), runsDir, m.RunID, BlobSchema)))

	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrArtifactMissing)
}

func TestDirStore_Registry(t *testing.T) {
	ctx := context.Background()
	s := NewDirStore(t.TempDir())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var saved []Manifest
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		s.now = func() time.Time { return ts }
		m, err := s.Save(ctx, testBundle(t))
		require.NoError(t, err)
		saved = append(saved, m)
	}

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, saved[2].RunID, runs[0].RunID)
	assert.Equal(t, saved[0].RunID, runs[2].RunID)

	prev, err := s.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved[1].RunID, prev.RunID)

	b, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved[1].RunID, b.Manifest.RunID)

	require.NoError(t, s.Activate(ctx, saved[0].RunID))
	_, err = s.Rollback(ctx)
	assert.Error(t, err, "oldest run has nothing before it")

	assert.ErrorIs(t, s.Activate(ctx, "does-not-exist"), ErrRunNotFound)
}

func TestDirStore_ActivateRejectsPathLikeIDs(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewDirStore(filepath.Join(root, "store"))
	m, err := s.Save(ctx, testBundle(t))
	require.NoError(t, err)

	// a run-shaped directory outside runs/
	outside := filepath.Join(root, "store", "x")
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outside, BlobManifest), []byte(`{}`), 0o644))

	for _, id := range []string{"../x", "..", ".", ".hidden", "a/b", ""} {
		err := s.Activate(ctx, id)
		assert.ErrorIs(t, err, ErrRunNotFound, "id %q", id)
	}

	b, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, m.RunID, b.Manifest.RunID)
}

func TestDirStore_ListRunsEmpty(t *testing.T) {
	runs, err := NewDirStore(t.TempDir()).ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestDirStore_ConcurrentReadersSeeCompleteBundles(t *testing.T) {
	ctx := context.Background()
	s := NewDirStore(t.TempDir())
	_, err := s.Save(ctx, testBundle(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if _, err := s.Load(ctx); err != nil {
					errs <- err
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		_, err := s.Save(ctx, testBundle(t))
		require.NoError(t, err)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("reader saw incomplete bundle: %v", err)
	}
}

func TestDirStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewDirStore(t.TempDir())

	_, err := s.Save(ctx, testBundle(t))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

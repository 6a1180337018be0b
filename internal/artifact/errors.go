package artifact

import (
	"errors"
	"strings"
)

var (
	// ErrArtifactMissing means one or more of scaler, schema or classifier is
	// absent. Retrying does not help without a new training run.
	ErrArtifactMissing = errors.New("artifact missing")
	// ErrArtifactVersionMismatch means the artifacts exist but do not belong
	// together (length disagreement or fingerprint mismatch).
	ErrArtifactVersionMismatch = errors.New("artifact version mismatch")
	// ErrArtifactCorrupt means a blob exists but cannot be decoded.
	ErrArtifactCorrupt = errors.New("artifact corrupt")
	ErrRunNotFound     = errors.New("training run not found")
)

// MissingError names the blobs absent from a bundle.
type MissingError struct {
	Run   string
	Blobs []string
}

func (e *MissingError) Error() string {
	msg := "artifact missing: " + strings.Join(e.Blobs, ", ")
	if e.Run != "" {
		msg += " (run " + e.Run + ")"
	}
	return msg
}

func (e *MissingError) Unwrap() error { return ErrArtifactMissing }

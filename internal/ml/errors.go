package ml

import (
	"context"
	"errors"

	"placement-predictor/internal/artifact"
)

var (
	// ErrInvalidProbability means the classifier returned a probability
	// outside [0, 1] or NaN.
	ErrInvalidProbability = errors.New("classifier returned invalid probability")
	// ErrInvalidLabel means the classifier returned something other than 0 or 1.
	ErrInvalidLabel = errors.New("classifier returned invalid label")
)

// Failure reasons used as metric labels.
const (
	ReasonArtifactMissing  = "artifact_missing"
	ReasonVersionMismatch  = "version_mismatch"
	ReasonArtifactCorrupt  = "artifact_corrupt"
	ReasonInvalidOutput    = "invalid_output"
	ReasonCanceled         = "canceled"
	ReasonClassifierFailed = "classifier"
	ReasonOther            = "other"
)

// FailureReason classifies err into one of the Reason constants.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, artifact.ErrArtifactMissing):
		return ReasonArtifactMissing
	case errors.Is(err, artifact.ErrArtifactVersionMismatch):
		return ReasonVersionMismatch
	case errors.Is(err, artifact.ErrArtifactCorrupt), errors.Is(err, artifact.ErrRunNotFound):
		return ReasonArtifactCorrupt
	case errors.Is(err, ErrInvalidProbability), errors.Is(err, ErrInvalidLabel):
		return ReasonInvalidOutput
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCanceled
	default:
		return ReasonOther
	}
}

// IsArtifactError reports whether err means no usable bundle is available.
func IsArtifactError(err error) bool {
	return errors.Is(err, artifact.ErrArtifactMissing) ||
		errors.Is(err, artifact.ErrArtifactVersionMismatch) ||
		errors.Is(err, artifact.ErrArtifactCorrupt) ||
		errors.Is(err, artifact.ErrRunNotFound)
}

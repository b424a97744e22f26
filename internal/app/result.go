package app

import (
	"errors"
	"fmt"

	"github.com/ayusman/strokerehab/internal/biomech"
	"github.com/ayusman/strokerehab/internal/features"
	"github.com/ayusman/strokerehab/internal/model"
)

// Reason explains why an attempt has no result.
type Reason string

const (
	ReasonInsufficientData Reason = "insufficient_data"
	ReasonMalformedFrame   Reason = "malformed_frame"
	ReasonInvalidFeatures  Reason = "invalid_features"
	ReasonModelUnavailable Reason = "model_unavailable"
	ReasonInternal         Reason = "internal"
)

// ErrAttemptClosed is returned when a finished live attempt receives more frames.
var ErrAttemptClosed = errors.New("attempt closed")

// NoResultError reports that an attempt could not be scored. Callers treat it
// as "score unavailable for this attempt".
type NoResultError struct {
	Reason Reason
	Err    error
}

func (e *NoResultError) Error() string {
	return fmt.Sprintf("no result (%s): %v", e.Reason, e.Err)
}

func (e *NoResultError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the reason carried by a NoResultError in err's chain.
func ReasonOf(err error) (Reason, bool) {
	var nr *NoResultError
	if errors.As(err, &nr) {
		return nr.Reason, true
	}
	return "", false
}

// Meta identifies who performed an attempt and which exercise it was.
type Meta struct {
	Username string `json:"username"`
	Exercise string `json:"exercise"`
}

// Result is a scored attempt.
type Result struct {
	AttemptID  string                `json:"id"`
	Username   string                `json:"username"`
	Exercise   string                `json:"exercise"`
	Vector     features.Vector       `json:"-"`
	Prediction model.Prediction      `json:"prediction"`
	FrameCount int                   `json:"frame_count"`
	Records    []biomech.FrameRecord `json:"-"`
}

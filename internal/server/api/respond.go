// Package api provides the HTTP API handlers for attempt scoring and
// session history.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/strokerehab/internal/app"
)

// maxBodyBytes bounds request bodies; a minute of 30 fps landmarks is about 5 MB.
const maxBodyBytes = 32 << 20

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeScoreError maps a scoring failure to a status code. Attempts that
// cannot be scored carry their reason so clients can tell the user why.
func writeScoreError(w http.ResponseWriter, err error) {
	var nr *app.NoResultError
	if !errors.As(err, &nr) {
		writeError(w, http.StatusInternalServerError, "Failed to score attempt")
		return
	}

	status := http.StatusInternalServerError
	message := "Failed to score attempt"
	switch nr.Reason {
	case app.ReasonInsufficientData:
		status, message = http.StatusUnprocessableEntity, "Not enough frames to score this attempt"
	case app.ReasonInvalidFeatures:
		status, message = http.StatusUnprocessableEntity, "Attempt produced invalid features"
	case app.ReasonMalformedFrame:
		status, message = http.StatusBadRequest, nr.Err.Error()
	case app.ReasonModelUnavailable:
		status, message = http.StatusServiceUnavailable, "Score unavailable for this attempt"
	}
	writeJSON(w, status, errorResponse{Error: message, Reason: string(nr.Reason)})
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/strokerehab/internal/app"
	"github.com/ayusman/strokerehab/internal/features"
	"github.com/ayusman/strokerehab/internal/pose"
	"github.com/ayusman/strokerehab/internal/render"
	"github.com/ayusman/strokerehab/internal/store"
)

// AttemptHandler handles HTTP requests for attempt resources.
type AttemptHandler struct {
	scorer *app.Scorer
	store  *store.Store
}

// NewAttemptHandler creates a new AttemptHandler. The scorer should persist
// to the same store for scored attempts to be listed.
func NewAttemptHandler(scorer *app.Scorer, s *store.Store) *AttemptHandler {
	return &AttemptHandler{scorer: scorer, store: s}
}

// ServeHTTP routes /api/attempts, /api/attempts/{id} and
// /api/attempts/{id}/trace.png.
func (h *AttemptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/attempts")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if id, ok := strings.CutSuffix(path, "/trace.png"); ok {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.trace(w, r, id)
		return
	}
	if strings.Contains(path, "/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type createAttemptRequest struct {
	Username     string             `json:"username"`
	Exercise     string             `json:"exercise"`
	LandmarkData []pose.Frame       `json:"landmark_data"`
	Features     map[string]float64 `json:"features"`
}

type attemptResponse struct {
	ID            string             `json:"id"`
	Username      string             `json:"username"`
	Exercise      string             `json:"exercise"`
	Score         float64            `json:"score"`
	Label         string             `json:"label"`
	Category      string             `json:"category"`
	Model         string             `json:"model"`
	SchemaVersion string             `json:"schema_version"`
	Features      map[string]float64 `json:"features,omitempty"`
	FrameCount    int                `json:"frame_count"`
	CreatedAt     string             `json:"created_at,omitempty"`
}

type listAttemptsResponse struct {
	Attempts []attemptResponse `json:"attempts"`
}

func fromResult(res *app.Result) attemptResponse {
	return attemptResponse{
		ID:            res.AttemptID,
		Username:      res.Username,
		Exercise:      res.Exercise,
		Score:         res.Prediction.Score,
		Label:         res.Prediction.Label,
		Category:      Category(res.Prediction.Score),
		Model:         res.Prediction.Model,
		SchemaVersion: features.SchemaVersion,
		Features:      res.Vector.Named(),
		FrameCount:    res.FrameCount,
	}
}

// fromAttempt converts a stored attempt. Features recorded under another
// schema version are left out.
func fromAttempt(a *store.Attempt) attemptResponse {
	resp := attemptResponse{
		ID:            a.ID,
		Username:      a.Username,
		Exercise:      a.Exercise,
		Score:         a.Score,
		Label:         a.Label,
		Category:      Category(a.Score),
		Model:         a.Model,
		SchemaVersion: a.SchemaVersion,
		FrameCount:    a.FrameCount,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
	if a.SchemaVersion == features.SchemaVersion {
		if v, err := features.FromSlice(a.Features); err == nil {
			resp.Features = v.Named()
		}
	}
	return resp
}

// create handles POST /api/attempts. The body carries either the recorded
// landmark frames or a precomputed feature map.
func (h *AttemptHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createAttemptRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}
	if (req.LandmarkData == nil) == (req.Features == nil) {
		writeError(w, http.StatusBadRequest, "Exactly one of landmark_data or features is required")
		return
	}

	meta := app.Meta{Username: req.Username, Exercise: req.Exercise}

	var res *app.Result
	var err error
	if req.Features != nil {
		v, ferr := features.FromMap(req.Features)
		if ferr != nil {
			writeError(w, http.StatusBadRequest, ferr.Error())
			return
		}
		res, err = h.scorer.ScoreVector(r.Context(), meta, v)
	} else {
		res, err = h.scorer.ScoreFrames(r.Context(), meta, req.LandmarkData)
	}
	if err != nil {
		writeScoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, fromResult(res))
}

// list handles GET /api/attempts, optionally filtered by ?username=.
func (h *AttemptHandler) list(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.store.Attempts().List(r.URL.Query().Get("username"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list attempts")
		return
	}

	response := listAttemptsResponse{
		Attempts: make([]attemptResponse, 0, len(attempts)),
	}
	for _, a := range attempts {
		response.Attempts = append(response.Attempts, fromAttempt(a))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/attempts/{id}.
func (h *AttemptHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	attempt, err := h.store.Attempts().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Attempt not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get attempt")
		return
	}

	writeJSON(w, http.StatusOK, fromAttempt(attempt))
}

// delete handles DELETE /api/attempts/{id}.
func (h *AttemptHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Attempts().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Attempt not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete attempt")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// trace handles GET /api/attempts/{id}/trace.png.
func (h *AttemptHandler) trace(w http.ResponseWriter, r *http.Request, id string) {
	attempt, err := h.store.Attempts().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Attempt not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get attempt")
		return
	}

	frames, err := h.store.Attempts().Frames(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load frames")
		return
	}

	png, err := render.Trace(frames, render.Options{
		Alpha: h.scorer.Alpha(),
		Title: strings.TrimSpace(attempt.Username + " " + attempt.Exercise),
	})
	if err != nil {
		if errors.Is(err, render.ErrNothingToDraw) {
			writeError(w, http.StatusNotFound, "Attempt has no landmark frames")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to render trace")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=3600")
	w.Write(png)
}

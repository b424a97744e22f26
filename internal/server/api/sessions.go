package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/strokerehab/internal/store"
)

// SessionHandler handles HTTP requests for session history.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

// ServeHTTP routes POST /api/sessions and GET /api/sessions/{username}.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.create(w, r)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.list(w, r, path)
}

type createSessionRequest struct {
	Username       string   `json:"username"`
	FinalScore     *float64 `json:"final_score"`
	FinalCategory  string   `json:"final_category"`
	KeystrokeScore *float64 `json:"keystroke_score"`
	MouseScore     *float64 `json:"mouse_score"`
	WebcamScore    *float64 `json:"webcam_score"`
	AttemptID      string   `json:"attempt_id"`
	PDFFilename    string   `json:"pdf_filename"`
}

type listSessionsResponse struct {
	Sessions []*store.Session `json:"sessions"`
}

// create handles POST /api/sessions. A missing final score is the mean of the
// modality scores; a missing webcam score is taken from the linked attempt.
func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}

	if req.AttemptID != "" {
		attempt, err := h.store.Attempts().GetByID(req.AttemptID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusBadRequest, "Unknown attempt")
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to get attempt")
			return
		}
		if attempt.Username != req.Username {
			writeError(w, http.StatusBadRequest, "Attempt belongs to another user")
			return
		}
		if req.WebcamScore == nil {
			score := attempt.Score
			req.WebcamScore = &score
		}
	}

	final := 0.0
	if req.FinalScore != nil {
		final = *req.FinalScore
	} else {
		var ok bool
		final, ok = CombineScores(req.KeystrokeScore, req.MouseScore, req.WebcamScore)
		if !ok {
			writeError(w, http.StatusBadRequest, "At least one score is required")
			return
		}
	}

	category := req.FinalCategory
	if category == "" {
		category = Category(final)
	} else if !validCategory(category) {
		writeError(w, http.StatusBadRequest, "Invalid category")
		return
	}

	sess := &store.Session{
		ID:             uuid.New().String(),
		Username:       req.Username,
		FinalScore:     final,
		FinalCategory:  category,
		KeystrokeScore: req.KeystrokeScore,
		MouseScore:     req.MouseScore,
		WebcamScore:    req.WebcamScore,
		AttemptID:      req.AttemptID,
		PDFFilename:    req.PDFFilename,
	}
	if err := h.store.Sessions().Create(sess); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save session")
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// list handles GET /api/sessions/{username}, newest first.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request, username string) {
	sessions, err := h.store.Sessions().ListByUsername(username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}

	writeJSON(w, http.StatusOK, listSessionsResponse{Sessions: sessions})
}

package store

import (
	"database/sql"
	"errors"
	"time"
)

// Session is one combined assessment in a patient's history. Modality
// scores are nil when that modality was not assessed.
type Session struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	FinalScore     float64   `json:"final_score"`
	FinalCategory  string    `json:"final_category"`
	KeystrokeScore *float64  `json:"keystroke_score"`
	MouseScore     *float64  `json:"mouse_score"`
	WebcamScore    *float64  `json:"webcam_score"`
	AttemptID      string    `json:"attempt_id,omitempty"`
	PDFFilename    string    `json:"pdf_filename"`
	CreatedAt      time.Time `json:"timestamp"`
}

// SessionRepository provides operations for session history.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session.
func (r *SessionRepository) Create(sess *Session) error {
	sess.CreatedAt = time.Now()

	var attemptID sql.NullString
	if sess.AttemptID != "" {
		attemptID = sql.NullString{String: sess.AttemptID, Valid: true}
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, username, final_score, final_category, keystroke_score, mouse_score,
		 webcam_score, attempt_id, pdf_filename, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Username, sess.FinalScore, sess.FinalCategory,
		nullFloat(sess.KeystrokeScore), nullFloat(sess.MouseScore), nullFloat(sess.WebcamScore),
		attemptID, sess.PDFFilename, sess.CreatedAt,
	)
	return err
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess, err := scanSession(r.db.QueryRow(
		`SELECT id, username, final_score, final_category, keystroke_score, mouse_score,
		 webcam_score, attempt_id, pdf_filename, created_at
		 FROM sessions WHERE id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// ListByUsername retrieves a patient's sessions, newest first.
func (r *SessionRepository) ListByUsername(username string) ([]*Session, error) {
	rows, err := r.db.Query(
		`SELECT id, username, final_score, final_category, keystroke_score, mouse_score,
		 webcam_score, attempt_id, pdf_filename, created_at
		 FROM sessions WHERE username = ? ORDER BY created_at DESC, rowid DESC`,
		username,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

func scanSession(row rowScanner) (*Session, error) {
	sess := &Session{}
	var keystroke, mouse, webcam sql.NullFloat64
	var attemptID sql.NullString

	err := row.Scan(&sess.ID, &sess.Username, &sess.FinalScore, &sess.FinalCategory,
		&keystroke, &mouse, &webcam, &attemptID, &sess.PDFFilename, &sess.CreatedAt)
	if err != nil {
		return nil, err
	}

	sess.KeystrokeScore = floatPtr(keystroke)
	sess.MouseScore = floatPtr(mouse)
	sess.WebcamScore = floatPtr(webcam)
	sess.AttemptID = attemptID.String
	return sess, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

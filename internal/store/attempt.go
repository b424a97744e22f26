package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/strokerehab/internal/pose"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Attempt is a scored exercise attempt.
type Attempt struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Exercise      string    `json:"exercise"`
	SchemaVersion string    `json:"schema_version"`
	Features      []float64 `json:"features"`
	Score         float64   `json:"score"`
	Label         string    `json:"label"`
	Model         string    `json:"model"`
	FrameCount    int       `json:"frame_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// AttemptRepository provides CRUD operations for attempts and their frames.
type AttemptRepository struct {
	db *sql.DB
}

// Attempts returns the attempt repository for this store.
func (s *Store) Attempts() *AttemptRepository {
	return &AttemptRepository{db: s.db}
}

// Create inserts an attempt and its frames in a single transaction.
// FrameCount is set from frames.
func (r *AttemptRepository) Create(a *Attempt, frames []pose.Frame) error {
	featuresJSON, err := json.Marshal(a.Features)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}

	a.CreatedAt = time.Now()
	a.FrameCount = len(frames)

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO attempts (id, username, exercise, schema_version, features, score, label, model, frame_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Username, a.Exercise, a.SchemaVersion, string(featuresJSON),
		a.Score, a.Label, a.Model, a.FrameCount, a.CreatedAt,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO attempt_frames (attempt_id, sequence, timestamp_ms, landmarks) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, f := range frames {
		landmarks, err := json.Marshal(f.Landmarks)
		if err != nil {
			return fmt.Errorf("failed to encode frame %d: %w", i, err)
		}
		if _, err := stmt.Exec(a.ID, i, f.Timestamp, string(landmarks)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID retrieves an attempt by its ID.
func (r *AttemptRepository) GetByID(id string) (*Attempt, error) {
	a, err := scanAttempt(r.db.QueryRow(
		`SELECT id, username, exercise, schema_version, features, score, label, model, frame_count, created_at
		 FROM attempts WHERE id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// List retrieves attempts newest first. An empty username lists every attempt.
func (r *AttemptRepository) List(username string) ([]*Attempt, error) {
	query := `SELECT id, username, exercise, schema_version, features, score, label, model, frame_count, created_at
		 FROM attempts`
	var args []any
	if username != "" {
		query += ` WHERE username = ?`
		args = append(args, username)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return attempts, nil
}

// Frames retrieves the frames of an attempt in their original order.
func (r *AttemptRepository) Frames(attemptID string) ([]pose.Frame, error) {
	rows, err := r.db.Query(
		`SELECT timestamp_ms, landmarks
		 FROM attempt_frames
		 WHERE attempt_id = ?
		 ORDER BY sequence`,
		attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []pose.Frame
	for rows.Next() {
		var f pose.Frame
		var landmarks string
		if err := rows.Scan(&f.Timestamp, &landmarks); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(landmarks), &f.Landmarks); err != nil {
			return nil, fmt.Errorf("failed to decode frame: %w", err)
		}
		frames = append(frames, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return frames, nil
}

// Delete removes an attempt and its frames.
func (r *AttemptRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM attempts WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (*Attempt, error) {
	a := &Attempt{}
	var featuresJSON string

	err := row.Scan(&a.ID, &a.Username, &a.Exercise, &a.SchemaVersion, &featuresJSON,
		&a.Score, &a.Label, &a.Model, &a.FrameCount, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(featuresJSON), &a.Features); err != nil {
		return nil, fmt.Errorf("failed to decode features: %w", err)
	}
	return a, nil
}

package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Attempts table - one scored exercise attempt
		`CREATE TABLE IF NOT EXISTS attempts (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			exercise TEXT NOT NULL DEFAULT '',
			schema_version TEXT NOT NULL,
			features TEXT NOT NULL,
			score REAL NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			frame_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Attempt frames table - the raw pose frames an attempt was scored from
		`CREATE TABLE IF NOT EXISTS attempt_frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			attempt_id TEXT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
			sequence INTEGER NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			landmarks TEXT NOT NULL
		)`,

		// Sessions table - combined assessment history per patient
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			final_score REAL NOT NULL,
			final_category TEXT NOT NULL,
			keystroke_score REAL,
			mouse_score REAL,
			webcam_score REAL,
			attempt_id TEXT REFERENCES attempts(id) ON DELETE SET NULL,
			pdf_filename TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_attempts_username ON attempts(username)`,
		`CREATE INDEX IF NOT EXISTS idx_attempt_frames_attempt_id ON attempt_frames(attempt_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_username ON sessions(username)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}

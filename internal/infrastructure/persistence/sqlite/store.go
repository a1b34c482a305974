// Package sqlite implements the engine's repositories on SQLite through
// sqlx and the pure-Go modernc driver. It backs single-node deployments,
// the operator CLI, and end-to-end tests (":memory:").
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// Store owns the database handle and hands out repositories.
type Store struct {
	db *sqlx.DB
}

// Open connects to the database at dsn, applies pragmas and creates the
// schema if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn != MemoryDSN && !strings.HasPrefix(dsn, "file:") {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db, dsn == MemoryDSN); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := createSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB returns the underlying handle for raw queries.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Catalog returns the student/lesson/topic repository.
func (s *Store) Catalog() *CatalogRepo {
	return &CatalogRepo{db: s.db}
}

// Logs returns the progress log repository.
func (s *Store) Logs() *LogRepo {
	return &LogRepo{db: s.db}
}

// Assignments returns the assignment repository.
func (s *Store) Assignments() *AssignmentRepo {
	return &AssignmentRepo{db: s.db}
}

// Alerts returns the alert repository.
func (s *Store) Alerts() *AlertRepo {
	return &AlertRepo{db: s.db}
}

// Preferences returns the preference repository.
func (s *Store) Preferences() *PreferenceRepo {
	return &PreferenceRepo{db: s.db}
}

func applyPragmas(ctx context.Context, db *sqlx.DB, inMemory bool) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if !inMemory {
		pragmas = append(pragmas,
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
		)
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// Dates are stored as YYYY-MM-DD text, timestamps as unix nanoseconds.
const schema = `
CREATE TABLE IF NOT EXISTS students (
	id          TEXT PRIMARY KEY,
	teacher_id  TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_students_teacher ON students(teacher_id);

CREATE TABLE IF NOT EXISTS lessons (
	id          TEXT PRIMARY KEY,
	teacher_id  TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS topics (
	id          TEXT PRIMARY KEY,
	lesson_id   TEXT NOT NULL REFERENCES lessons(id),
	name        TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_topics_lesson ON topics(lesson_id);

CREATE TABLE IF NOT EXISTS assignments (
	id              TEXT PRIMARY KEY,
	student_id      TEXT NOT NULL REFERENCES students(id),
	topic_id        TEXT NOT NULL REFERENCES topics(id),
	question_count  INTEGER NOT NULL CHECK (question_count >= 0),
	daily_target    INTEGER NOT NULL CHECK (daily_target >= 0),
	start_date      TEXT NOT NULL,
	end_date        TEXT NOT NULL,
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assignments_student ON assignments(student_id);

CREATE TABLE IF NOT EXISTS progress_logs (
	id             TEXT PRIMARY KEY,
	student_id     TEXT NOT NULL REFERENCES students(id),
	assignment_id  TEXT NOT NULL REFERENCES assignments(id),
	log_date       TEXT NOT NULL,
	right_count    INTEGER NOT NULL CHECK (right_count >= 0),
	wrong_count    INTEGER NOT NULL CHECK (wrong_count >= 0),
	empty_count    INTEGER NOT NULL CHECK (empty_count >= 0),
	bonus_count    INTEGER NOT NULL CHECK (bonus_count >= 0),
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL,
	UNIQUE (student_id, assignment_id, log_date)
);

CREATE TABLE IF NOT EXISTS accuracy_alerts (
	id           TEXT PRIMARY KEY,
	student_id   TEXT NOT NULL REFERENCES students(id),
	topic_id     TEXT NOT NULL DEFAULT '',
	lesson_id    TEXT NOT NULL DEFAULT '',
	accuracy     REAL NOT NULL,
	threshold    REAL NOT NULL,
	resolved     INTEGER NOT NULL DEFAULT 0,
	resolved_at  INTEGER,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_alerts_open
	ON accuracy_alerts(student_id, topic_id, lesson_id) WHERE resolved = 0;

CREATE TABLE IF NOT EXISTS preferences (
	user_id     TEXT NOT NULL,
	key         TEXT NOT NULL,
	value       TEXT NOT NULL,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (user_id, key)
);
`

func createSchema(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// isUniqueViolation reports a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return strings.Contains(se.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation reports a FOREIGN KEY constraint failure.
func isForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY ||
		strings.Contains(se.Error(), "FOREIGN KEY constraint failed")
}

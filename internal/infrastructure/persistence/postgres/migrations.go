package postgres

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_catalog",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_progress",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_alerts_and_preferences",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CATALOG
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Students belong to exactly one teacher (the tenant).
CREATE TABLE IF NOT EXISTS students (
    id          TEXT PRIMARY KEY,
    teacher_id  TEXT NOT NULL,
    name        TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_students_teacher ON students(teacher_id);

-- An empty teacher_id marks a global lesson visible to every tenant.
CREATE TABLE IF NOT EXISTS lessons (
    id          TEXT PRIMARY KEY,
    teacher_id  TEXT NOT NULL DEFAULT '',
    name        TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS topics (
    id          TEXT PRIMARY KEY,
    lesson_id   TEXT NOT NULL REFERENCES lessons(id),
    name        TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_topics_lesson ON topics(lesson_id);
`

const migration001Down = `
DROP TABLE IF EXISTS topics;
DROP TABLE IF EXISTS lessons;
DROP TABLE IF EXISTS students;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ASSIGNMENTS AND PROGRESS LOGS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS assignments (
    id              TEXT PRIMARY KEY,
    student_id      TEXT NOT NULL REFERENCES students(id),
    topic_id        TEXT NOT NULL REFERENCES topics(id),
    question_count  INTEGER NOT NULL CHECK (question_count >= 0),
    daily_target    INTEGER NOT NULL CHECK (daily_target >= 0),
    start_date      DATE NOT NULL,
    end_date        DATE NOT NULL,
    created_at      TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CHECK (end_date >= start_date)
);
CREATE INDEX IF NOT EXISTS idx_assignments_student ON assignments(student_id);

-- One row per student, assignment and calendar day; writes upsert.
CREATE TABLE IF NOT EXISTS progress_logs (
    id             TEXT PRIMARY KEY,
    student_id     TEXT NOT NULL REFERENCES students(id),
    assignment_id  TEXT NOT NULL REFERENCES assignments(id),
    log_date       DATE NOT NULL,
    right_count    INTEGER NOT NULL CHECK (right_count >= 0),
    wrong_count    INTEGER NOT NULL CHECK (wrong_count >= 0),
    empty_count    INTEGER NOT NULL CHECK (empty_count >= 0),
    bonus_count    INTEGER NOT NULL CHECK (bonus_count >= 0),
    created_at     TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    UNIQUE (student_id, assignment_id, log_date)
);
CREATE INDEX IF NOT EXISTS idx_progress_logs_student_date ON progress_logs(student_id, log_date);
`

const migration002Down = `
DROP TABLE IF EXISTS progress_logs;
DROP TABLE IF EXISTS assignments;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: ALERTS AND PREFERENCES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Absent topic/lesson ids are stored as '' so the partial unique index
-- treats the student-wide scope as a single key.
CREATE TABLE IF NOT EXISTS accuracy_alerts (
    id           TEXT PRIMARY KEY,
    student_id   TEXT NOT NULL REFERENCES students(id),
    topic_id     TEXT NOT NULL DEFAULT '',
    lesson_id    TEXT NOT NULL DEFAULT '',
    accuracy     DOUBLE PRECISION NOT NULL,
    threshold    DOUBLE PRECISION NOT NULL,
    resolved     BOOLEAN NOT NULL DEFAULT FALSE,
    resolved_at  TIMESTAMP WITH TIME ZONE,
    created_at   TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_alerts_open
    ON accuracy_alerts(student_id, topic_id, lesson_id) WHERE NOT resolved;
CREATE INDEX IF NOT EXISTS idx_alerts_created ON accuracy_alerts(created_at DESC);

CREATE TABLE IF NOT EXISTS preferences (
    user_id     TEXT NOT NULL,
    key         TEXT NOT NULL,
    value       TEXT NOT NULL,
    updated_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, key)
);
`

const migration003Down = `
DROP TABLE IF EXISTS preferences;
DROP TABLE IF EXISTS accuracy_alerts;
`

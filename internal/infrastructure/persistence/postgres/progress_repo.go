package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS LOG REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LogRepository implements progress.LogRepository for PostgreSQL.
type LogRepository struct {
	conn *Connection
}

var _ progress.LogRepository = (*LogRepository)(nil)

// NewLogRepository creates a new LogRepository.
func NewLogRepository(conn *Connection) *LogRepository {
	return &LogRepository{conn: conn}
}

const logColumns = `pl.id, pl.student_id, pl.assignment_id, pl.log_date,
	pl.right_count, pl.wrong_count, pl.empty_count, pl.bonus_count,
	pl.created_at, pl.updated_at`

func scanLog(row pgx.Row) (progress.ProgressLog, error) {
	var l progress.ProgressLog
	err := row.Scan(&l.ID, &l.StudentID, &l.AssignmentID, &l.Date,
		&l.Right, &l.Wrong, &l.Empty, &l.Bonus, &l.CreatedAt, &l.UpdatedAt)
	l.Date = l.Date.UTC()
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return l, err
}

// UpsertLog inserts or overwrites the counts for (student, assignment, date).
// The original id and created_at survive an overwrite.
func (r *LogRepository) UpsertLog(ctx context.Context, l *progress.ProgressLog) (*progress.ProgressLog, error) {
	id := l.ID
	if id == "" {
		id = uuid.NewString()
	}
	updated := nowIfZero(l.UpdatedAt)
	created := l.CreatedAt
	if created.IsZero() {
		created = updated
	}

	row := r.conn.Pool().QueryRow(ctx, `
		INSERT INTO progress_logs AS pl (id, student_id, assignment_id, log_date,
			right_count, wrong_count, empty_count, bonus_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (student_id, assignment_id, log_date) DO UPDATE SET
			right_count = EXCLUDED.right_count,
			wrong_count = EXCLUDED.wrong_count,
			empty_count = EXCLUDED.empty_count,
			bonus_count = EXCLUDED.bonus_count,
			updated_at  = EXCLUDED.updated_at
		RETURNING `+logColumns,
		id, l.StudentID, l.AssignmentID, l.Date,
		l.Right, l.Wrong, l.Empty, l.Bonus, created, updated)

	out, err := scanLog(row)
	if IsForeignKeyViolation(err) {
		return nil, shared.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, shared.StorageFailure("progress", "UpsertLog", err)
	}
	return &out, nil
}

// FindLogs returns the student's logs matching the filter, oldest first.
func (r *LogRepository) FindLogs(ctx context.Context, studentID string, f progress.LogFilter) ([]progress.ProgressLog, error) {
	var (
		q    strings.Builder
		args = []any{studentID}
	)
	q.WriteString(`SELECT ` + logColumns + `
		FROM progress_logs pl
		JOIN assignments a ON a.id = pl.assignment_id
		JOIN topics t ON t.id = a.topic_id
		WHERE pl.student_id = $1`)
	where := func(cond string, v any) {
		args = append(args, v)
		fmt.Fprintf(&q, " AND %s $%d", cond, len(args))
	}
	if f.AssignmentID != "" {
		where("pl.assignment_id =", f.AssignmentID)
	}
	if f.TopicID != "" {
		where("a.topic_id =", f.TopicID)
	}
	if f.LessonID != "" {
		where("t.lesson_id =", f.LessonID)
	}
	if !f.From.IsZero() {
		where("pl.log_date >=", f.From)
	}
	if !f.To.IsZero() {
		where("pl.log_date <=", f.To)
	}
	q.WriteString(` ORDER BY pl.log_date, pl.created_at`)

	var logs []progress.ProgressLog
	err := r.conn.read(ctx, func(ctx context.Context, qr Querier) error {
		rows, err := qr.Query(ctx, q.String(), args...)
		if err != nil {
			return err
		}
		logs, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (progress.ProgressLog, error) {
			return scanLog(row)
		})
		return err
	})
	if err != nil {
		return nil, shared.StorageFailure("progress", "FindLogs", err)
	}
	return logs, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AssignmentRepository implements progress.AssignmentRepository for PostgreSQL.
type AssignmentRepository struct {
	conn *Connection
}

var _ progress.AssignmentRepository = (*AssignmentRepository)(nil)

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(conn *Connection) *AssignmentRepository {
	return &AssignmentRepository{conn: conn}
}

const assignmentColumns = `id, student_id, topic_id, question_count, daily_target,
	start_date, end_date, created_at`

func scanAssignment(row pgx.Row) (progress.Assignment, error) {
	var a progress.Assignment
	err := row.Scan(&a.ID, &a.StudentID, &a.TopicID, &a.QuestionCount, &a.DailyTarget,
		&a.StartDate, &a.EndDate, &a.CreatedAt)
	a.StartDate = a.StartDate.UTC()
	a.EndDate = a.EndDate.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	return a, err
}

// CreateAssignment inserts an assignment.
func (r *AssignmentRepository) CreateAssignment(ctx context.Context, a *progress.Assignment) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO assignments (`+assignmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.StudentID, a.TopicID, a.QuestionCount, a.DailyTarget,
		a.StartDate, a.EndDate, nowIfZero(a.CreatedAt))
	if IsForeignKeyViolation(err) {
		return shared.WrapError("progress", "CreateAssignment", shared.ErrNotFound, "student or topic missing", err)
	}
	return mapInsertError("CreateAssignment", err)
}

// GetAssignment returns an assignment by ID.
func (r *AssignmentRepository) GetAssignment(ctx context.Context, id string) (*progress.Assignment, error) {
	var a progress.Assignment
	err := r.conn.read(ctx, func(ctx context.Context, q Querier) error {
		var err error
		a, err = scanAssignment(q.QueryRow(ctx,
			`SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id))
		return err
	})
	if IsNoRows(err) {
		return nil, shared.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, shared.StorageFailure("progress", "GetAssignment", err)
	}
	return &a, nil
}

// SumQuestionCounts totals question_count over the student's assignments.
func (r *AssignmentRepository) SumQuestionCounts(ctx context.Context, studentID string) (int, error) {
	var total int64
	err := r.conn.read(ctx, func(ctx context.Context, q Querier) error {
		return q.QueryRow(ctx,
			`SELECT COALESCE(SUM(question_count), 0) FROM assignments WHERE student_id = $1`,
			studentID,
		).Scan(&total)
	})
	if err != nil {
		return 0, shared.StorageFailure("progress", "SumQuestionCounts", err)
	}
	return int(total), nil
}

// ListAssignments returns the student's assignments, newest start first.
func (r *AssignmentRepository) ListAssignments(ctx context.Context, studentID string) ([]progress.Assignment, error) {
	var out []progress.Assignment
	err := r.conn.read(ctx, func(ctx context.Context, q Querier) error {
		rows, err := q.Query(ctx, `SELECT `+assignmentColumns+` FROM assignments
			WHERE student_id = $1 ORDER BY start_date DESC, created_at DESC`, studentID)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (progress.Assignment, error) {
			return scanAssignment(row)
		})
		return err
	})
	if err != nil {
		return nil, shared.StorageFailure("progress", "ListAssignments", err)
	}
	return out, nil
}

func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

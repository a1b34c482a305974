package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/internal/domain/shared"
	"github.com/edutrack/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS LOGS
// ══════════════════════════════════════════════════════════════════════════════

// LogRepo implements progress.LogRepository.
type LogRepo struct {
	db *sqlx.DB
}

var _ progress.LogRepository = (*LogRepo)(nil)

type logRow struct {
	ID           string `db:"id"`
	StudentID    string `db:"student_id"`
	AssignmentID string `db:"assignment_id"`
	LogDate      string `db:"log_date"`
	RightCount   int    `db:"right_count"`
	WrongCount   int    `db:"wrong_count"`
	EmptyCount   int    `db:"empty_count"`
	BonusCount   int    `db:"bonus_count"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

func (r logRow) toDomain() (progress.ProgressLog, error) {
	day, err := timeutil.ParseDay(r.LogDate)
	if err != nil {
		return progress.ProgressLog{}, err
	}
	return progress.ProgressLog{
		ID:           r.ID,
		StudentID:    r.StudentID,
		AssignmentID: r.AssignmentID,
		Date:         day,
		Counts: progress.Counts{
			Right: r.RightCount,
			Wrong: r.WrongCount,
			Empty: r.EmptyCount,
			Bonus: r.BonusCount,
		},
		CreatedAt: fromNanos(r.CreatedAt),
		UpdatedAt: fromNanos(r.UpdatedAt),
	}, nil
}

const logColumns = `pl.id, pl.student_id, pl.assignment_id, pl.log_date,
	pl.right_count, pl.wrong_count, pl.empty_count, pl.bonus_count,
	pl.created_at, pl.updated_at`

const logReturning = `id, student_id, assignment_id, log_date,
	right_count, wrong_count, empty_count, bonus_count, created_at, updated_at`

// UpsertLog keeps the original id and created_at on conflict.
func (r *LogRepo) UpsertLog(ctx context.Context, l *progress.ProgressLog) (*progress.ProgressLog, error) {
	id := l.ID
	if id == "" {
		id = uuid.NewString()
	}
	updated := toNanos(l.UpdatedAt)
	created := updated
	if !l.CreatedAt.IsZero() {
		created = toNanos(l.CreatedAt)
	}

	var row logRow
	err := r.db.GetContext(ctx, &row, `
		INSERT INTO progress_logs (id, student_id, assignment_id, log_date,
			right_count, wrong_count, empty_count, bonus_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, assignment_id, log_date) DO UPDATE SET
			right_count = excluded.right_count,
			wrong_count = excluded.wrong_count,
			empty_count = excluded.empty_count,
			bonus_count = excluded.bonus_count,
			updated_at  = excluded.updated_at
		RETURNING `+logReturning,
		id, l.StudentID, l.AssignmentID, timeutil.FormatDay(l.Date),
		l.Right, l.Wrong, l.Empty, l.Bonus, created, updated)
	if isForeignKeyViolation(err) {
		return nil, shared.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, shared.StorageFailure("progress", "UpsertLog", err)
	}

	out, err := row.toDomain()
	if err != nil {
		return nil, shared.StorageFailure("progress", "UpsertLog", err)
	}
	return &out, nil
}

func (r *LogRepo) FindLogs(ctx context.Context, studentID string, f progress.LogFilter) ([]progress.ProgressLog, error) {
	var (
		q    strings.Builder
		args = []any{studentID}
	)
	q.WriteString(`SELECT ` + logColumns + `
		FROM progress_logs pl
		JOIN assignments a ON a.id = pl.assignment_id
		JOIN topics t ON t.id = a.topic_id
		WHERE pl.student_id = ?`)
	if f.AssignmentID != "" {
		q.WriteString(` AND pl.assignment_id = ?`)
		args = append(args, f.AssignmentID)
	}
	if f.TopicID != "" {
		q.WriteString(` AND a.topic_id = ?`)
		args = append(args, f.TopicID)
	}
	if f.LessonID != "" {
		q.WriteString(` AND t.lesson_id = ?`)
		args = append(args, f.LessonID)
	}
	if !f.From.IsZero() {
		q.WriteString(` AND pl.log_date >= ?`)
		args = append(args, timeutil.FormatDay(f.From))
	}
	if !f.To.IsZero() {
		q.WriteString(` AND pl.log_date <= ?`)
		args = append(args, timeutil.FormatDay(f.To))
	}
	q.WriteString(` ORDER BY pl.log_date, pl.created_at`)

	var rows []logRow
	if err := r.db.SelectContext(ctx, &rows, q.String(), args...); err != nil {
		return nil, shared.StorageFailure("progress", "FindLogs", err)
	}

	logs := make([]progress.ProgressLog, 0, len(rows))
	for _, row := range rows {
		l, err := row.toDomain()
		if err != nil {
			return nil, shared.StorageFailure("progress", "FindLogs", err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENTS
// ══════════════════════════════════════════════════════════════════════════════

// AssignmentRepo implements progress.AssignmentRepository.
type AssignmentRepo struct {
	db *sqlx.DB
}

var _ progress.AssignmentRepository = (*AssignmentRepo)(nil)

type assignmentRow struct {
	ID            string `db:"id"`
	StudentID     string `db:"student_id"`
	TopicID       string `db:"topic_id"`
	QuestionCount int    `db:"question_count"`
	DailyTarget   int    `db:"daily_target"`
	StartDate     string `db:"start_date"`
	EndDate       string `db:"end_date"`
	CreatedAt     int64  `db:"created_at"`
}

func (r assignmentRow) toDomain() (*progress.Assignment, error) {
	start, err := timeutil.ParseDay(r.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := timeutil.ParseDay(r.EndDate)
	if err != nil {
		return nil, err
	}
	return &progress.Assignment{
		ID:            r.ID,
		StudentID:     r.StudentID,
		TopicID:       r.TopicID,
		QuestionCount: r.QuestionCount,
		DailyTarget:   r.DailyTarget,
		StartDate:     start,
		EndDate:       end,
		CreatedAt:     fromNanos(r.CreatedAt),
	}, nil
}

const assignmentColumns = `id, student_id, topic_id, question_count, daily_target,
	start_date, end_date, created_at`

func (r *AssignmentRepo) CreateAssignment(ctx context.Context, a *progress.Assignment) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO assignments (`+assignmentColumns+`)
		VALUES (:id, :student_id, :topic_id, :question_count, :daily_target,
			:start_date, :end_date, :created_at)`,
		assignmentRow{
			ID:            a.ID,
			StudentID:     a.StudentID,
			TopicID:       a.TopicID,
			QuestionCount: a.QuestionCount,
			DailyTarget:   a.DailyTarget,
			StartDate:     timeutil.FormatDay(a.StartDate),
			EndDate:       timeutil.FormatDay(a.EndDate),
			CreatedAt:     toNanos(a.CreatedAt),
		})
	if isForeignKeyViolation(err) {
		return shared.WrapError("progress", "CreateAssignment", shared.ErrNotFound, "student or topic missing", err)
	}
	return mapInsertError("CreateAssignment", err)
}

func (r *AssignmentRepo) GetAssignment(ctx context.Context, id string) (*progress.Assignment, error) {
	var row assignmentRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, shared.StorageFailure("progress", "GetAssignment", err)
	}
	a, err := row.toDomain()
	if err != nil {
		return nil, shared.StorageFailure("progress", "GetAssignment", err)
	}
	return a, nil
}

func (r *AssignmentRepo) SumQuestionCounts(ctx context.Context, studentID string) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(question_count), 0) FROM assignments WHERE student_id = ?`, studentID)
	if err != nil {
		return 0, shared.StorageFailure("progress", "SumQuestionCounts", err)
	}
	return total, nil
}

func (r *AssignmentRepo) ListAssignments(ctx context.Context, studentID string) ([]progress.Assignment, error) {
	var rows []assignmentRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE student_id = ? ORDER BY start_date DESC, created_at DESC`, studentID)
	if err != nil {
		return nil, shared.StorageFailure("progress", "ListAssignments", err)
	}
	out := make([]progress.Assignment, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, shared.StorageFailure("progress", "ListAssignments", err)
		}
		out = append(out, *a)
	}
	return out, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edutrack/progress-engine/internal/domain/alert"
	"github.com/edutrack/progress-engine/internal/domain/shared"
)

// AlertRepo implements alert.Repository.
type AlertRepo struct {
	db *sqlx.DB
}

var _ alert.Repository = (*AlertRepo)(nil)

type alertRow struct {
	ID         string        `db:"id"`
	StudentID  string        `db:"student_id"`
	TopicID    string        `db:"topic_id"`
	LessonID   string        `db:"lesson_id"`
	Accuracy   float64       `db:"accuracy"`
	Threshold  float64       `db:"threshold"`
	Resolved   bool          `db:"resolved"`
	ResolvedAt sql.NullInt64 `db:"resolved_at"`
	CreatedAt  int64         `db:"created_at"`
	UpdatedAt  int64         `db:"updated_at"`
}

func (r alertRow) toDomain() alert.Alert {
	a := alert.Alert{
		ID:        r.ID,
		StudentID: r.StudentID,
		TopicID:   r.TopicID,
		LessonID:  r.LessonID,
		Accuracy:  r.Accuracy,
		Threshold: r.Threshold,
		Resolved:  r.Resolved,
		CreatedAt: fromNanos(r.CreatedAt),
		UpdatedAt: fromNanos(r.UpdatedAt),
	}
	if r.ResolvedAt.Valid {
		at := fromNanos(r.ResolvedAt.Int64)
		a.ResolvedAt = &at
	}
	return a
}

const alertColumns = `aa.id, aa.student_id, aa.topic_id, aa.lesson_id, aa.accuracy,
	aa.threshold, aa.resolved, aa.resolved_at, aa.created_at, aa.updated_at`

func (r *AlertRepo) FindUnresolved(ctx context.Context, key alert.Key) (*alert.Alert, error) {
	var row alertRow
	err := r.db.GetContext(ctx, &row, `
		SELECT `+alertColumns+` FROM accuracy_alerts aa
		WHERE aa.student_id = ? AND aa.topic_id = ? AND aa.lesson_id = ? AND aa.resolved = 0`,
		key.StudentID, key.TopicID, key.LessonID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrAlertNotFound
	}
	if err != nil {
		return nil, shared.StorageFailure("alert", "FindUnresolved", err)
	}
	a := row.toDomain()
	return &a, nil
}

func (r *AlertRepo) Create(ctx context.Context, a *alert.Alert) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accuracy_alerts (id, student_id, topic_id, lesson_id, accuracy,
			threshold, resolved, resolved_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, NULL, ?, ?)`,
		a.ID, a.StudentID, a.TopicID, a.LessonID, a.Accuracy, a.Threshold,
		toNanos(a.CreatedAt), toNanos(a.UpdatedAt))
	if isUniqueViolation(err) {
		return shared.ErrAlertAlreadyExists
	}
	if err != nil {
		return shared.StorageFailure("alert", "Create", err)
	}
	return nil
}

func (r *AlertRepo) Update(ctx context.Context, a *alert.Alert) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accuracy_alerts SET accuracy = ?, threshold = ?, updated_at = ?
		WHERE id = ?`,
		a.Accuracy, a.Threshold, toNanos(a.UpdatedAt), a.ID)
	if err != nil {
		return shared.StorageFailure("alert", "Update", err)
	}
	return requireOneRow(res, "Update")
}

func (r *AlertRepo) MarkResolved(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accuracy_alerts
		SET resolved = 1,
		    resolved_at = COALESCE(resolved_at, ?),
		    updated_at = CASE WHEN resolved = 1 THEN updated_at ELSE ? END
		WHERE id = ?`,
		toNanos(at), toNanos(at), id)
	if err != nil {
		return shared.StorageFailure("alert", "MarkResolved", err)
	}
	return requireOneRow(res, "MarkResolved")
}

func (r *AlertRepo) GetByID(ctx context.Context, id string) (*alert.Alert, error) {
	var row alertRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+alertColumns+` FROM accuracy_alerts aa WHERE aa.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrAlertNotFound
	}
	if err != nil {
		return nil, shared.StorageFailure("alert", "GetByID", err)
	}
	a := row.toDomain()
	return &a, nil
}

func (r *AlertRepo) List(ctx context.Context, f alert.ListFilter) ([]alert.Alert, error) {
	query := `
		SELECT ` + alertColumns + ` FROM accuracy_alerts aa
		JOIN students s ON s.id = aa.student_id
		WHERE s.teacher_id = ? AND aa.resolved = ?`
	args := []any{f.TenantID, f.Resolved}
	if f.StudentID != "" {
		query += ` AND aa.student_id = ?`
		args = append(args, f.StudentID)
	}
	query += ` ORDER BY aa.created_at DESC, aa.id`

	var rows []alertRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, shared.StorageFailure("alert", "List", err)
	}
	out := make([]alert.Alert, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func requireOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return shared.StorageFailure("alert", op, err)
	}
	if n == 0 {
		return shared.ErrAlertNotFound
	}
	return nil
}

package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edutrack/progress-engine/internal/domain/alert"
	"github.com/edutrack/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ALERT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AlertRepository implements alert.Repository for PostgreSQL.
type AlertRepository struct {
	conn *Connection
}

var _ alert.Repository = (*AlertRepository)(nil)

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(conn *Connection) *AlertRepository {
	return &AlertRepository{conn: conn}
}

const alertColumns = `aa.id, aa.student_id, aa.topic_id, aa.lesson_id, aa.accuracy,
	aa.threshold, aa.resolved, aa.resolved_at, aa.created_at, aa.updated_at`

func scanAlert(row pgx.Row) (alert.Alert, error) {
	var (
		a          alert.Alert
		resolvedAt *time.Time
	)
	err := row.Scan(&a.ID, &a.StudentID, &a.TopicID, &a.LessonID, &a.Accuracy,
		&a.Threshold, &a.Resolved, &resolvedAt, &a.CreatedAt, &a.UpdatedAt)
	if resolvedAt != nil {
		at := resolvedAt.UTC()
		a.ResolvedAt = &at
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, err
}

// FindUnresolved returns the open alert for the key.
func (r *AlertRepository) FindUnresolved(ctx context.Context, key alert.Key) (*alert.Alert, error) {
	return r.getOne(ctx, "FindUnresolved", `
		SELECT `+alertColumns+` FROM accuracy_alerts aa
		WHERE aa.student_id = $1 AND aa.topic_id = $2 AND aa.lesson_id = $3 AND NOT aa.resolved`,
		key.StudentID, key.TopicID, key.LessonID)
}

// GetByID returns an alert by ID.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alert.Alert, error) {
	return r.getOne(ctx, "GetByID",
		`SELECT `+alertColumns+` FROM accuracy_alerts aa WHERE aa.id = $1`, id)
}

func (r *AlertRepository) getOne(ctx context.Context, op, query string, args ...any) (*alert.Alert, error) {
	var a alert.Alert
	err := r.conn.read(ctx, func(ctx context.Context, q Querier) error {
		var err error
		a, err = scanAlert(q.QueryRow(ctx, query, args...))
		return err
	})
	if IsNoRows(err) {
		return nil, shared.ErrAlertNotFound
	}
	if err != nil {
		return nil, shared.StorageFailure("alert", op, err)
	}
	return &a, nil
}

// Create inserts an open alert. The partial unique index rejects a second
// open alert for the same key.
func (r *AlertRepository) Create(ctx context.Context, a *alert.Alert) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO accuracy_alerts (id, student_id, topic_id, lesson_id, accuracy,
			threshold, resolved, resolved_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, NULL, $7, $8)`,
		a.ID, a.StudentID, a.TopicID, a.LessonID, a.Accuracy, a.Threshold,
		nowIfZero(a.CreatedAt), nowIfZero(a.UpdatedAt))
	if IsUniqueViolation(err) {
		return shared.ErrAlertAlreadyExists
	}
	if err != nil {
		return shared.StorageFailure("alert", "Create", err)
	}
	return nil
}

// Update refreshes the observation stored on an alert.
func (r *AlertRepository) Update(ctx context.Context, a *alert.Alert) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE accuracy_alerts SET accuracy = $1, threshold = $2, updated_at = $3
		WHERE id = $4`,
		a.Accuracy, a.Threshold, nowIfZero(a.UpdatedAt), a.ID)
	if err != nil {
		return shared.StorageFailure("alert", "Update", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAlertNotFound
	}
	return nil
}

// MarkResolved closes an alert, keeping the first resolution time.
func (r *AlertRepository) MarkResolved(ctx context.Context, id string, at time.Time) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE accuracy_alerts
		SET resolved = TRUE,
		    resolved_at = COALESCE(resolved_at, $1),
		    updated_at = CASE WHEN resolved THEN updated_at ELSE $1 END
		WHERE id = $2`,
		at, id)
	if err != nil {
		return shared.StorageFailure("alert", "MarkResolved", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAlertNotFound
	}
	return nil
}

// List returns the tenant's alerts, newest first.
func (r *AlertRepository) List(ctx context.Context, f alert.ListFilter) ([]alert.Alert, error) {
	query := `
		SELECT ` + alertColumns + ` FROM accuracy_alerts aa
		JOIN students s ON s.id = aa.student_id
		WHERE s.teacher_id = $1 AND aa.resolved = $2`
	args := []any{f.TenantID, f.Resolved}
	if f.StudentID != "" {
		query += ` AND aa.student_id = $3`
		args = append(args, f.StudentID)
	}
	query += ` ORDER BY aa.created_at DESC, aa.id`

	var out []alert.Alert
	err := r.conn.read(ctx, func(ctx context.Context, q Querier) error {
		rows, err := q.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (alert.Alert, error) {
			return scanAlert(row)
		})
		return err
	})
	if err != nil {
		return nil, shared.StorageFailure("alert", "List", err)
	}
	return out, nil
}

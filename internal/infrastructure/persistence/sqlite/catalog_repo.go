package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/internal/domain/shared"
)

// CatalogRepo implements progress.CatalogRepository.
type CatalogRepo struct {
	db *sqlx.DB
}

var _ progress.CatalogRepository = (*CatalogRepo)(nil)

type studentRow struct {
	ID        string `db:"id"`
	TeacherID string `db:"teacher_id"`
	Name      string `db:"name"`
	CreatedAt int64  `db:"created_at"`
}

type lessonRow struct {
	ID        string `db:"id"`
	TeacherID string `db:"teacher_id"`
	Name      string `db:"name"`
	CreatedAt int64  `db:"created_at"`
}

func (r lessonRow) toDomain() *progress.Lesson {
	return &progress.Lesson{
		ID:        r.ID,
		TeacherID: r.TeacherID,
		Name:      r.Name,
		CreatedAt: fromNanos(r.CreatedAt),
	}
}

type topicRow struct {
	ID              string `db:"id"`
	LessonID        string `db:"lesson_id"`
	Name            string `db:"name"`
	CreatedAt       int64  `db:"created_at"`
	LessonTeacherID string `db:"lesson_teacher_id"`
	LessonName      string `db:"lesson_name"`
	LessonCreatedAt int64  `db:"lesson_created_at"`
}

func (r *CatalogRepo) GetStudent(ctx context.Context, id string) (*progress.Student, error) {
	var row studentRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, teacher_id, name, created_at FROM students WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrStudentNotFound
	}
	if err != nil {
		return nil, shared.StorageFailure("progress", "GetStudent", err)
	}
	return &progress.Student{
		ID:        row.ID,
		TeacherID: row.TeacherID,
		Name:      row.Name,
		CreatedAt: fromNanos(row.CreatedAt),
	}, nil
}

func (r *CatalogRepo) GetTopic(ctx context.Context, id string) (*progress.Topic, error) {
	var row topicRow
	err := r.db.GetContext(ctx, &row, `
		SELECT t.id, t.lesson_id, t.name, t.created_at,
		       l.teacher_id AS lesson_teacher_id,
		       l.name       AS lesson_name,
		       l.created_at AS lesson_created_at
		FROM topics t
		JOIN lessons l ON l.id = t.lesson_id
		WHERE t.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrTopicNotFound
	}
	if err != nil {
		return nil, shared.StorageFailure("progress", "GetTopic", err)
	}
	return &progress.Topic{
		ID:        row.ID,
		LessonID:  row.LessonID,
		Name:      row.Name,
		CreatedAt: fromNanos(row.CreatedAt),
		Lesson: &progress.Lesson{
			ID:        row.LessonID,
			TeacherID: row.LessonTeacherID,
			Name:      row.LessonName,
			CreatedAt: fromNanos(row.LessonCreatedAt),
		},
	}, nil
}

func (r *CatalogRepo) GetLesson(ctx context.Context, id string) (*progress.Lesson, error) {
	var row lessonRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, teacher_id, name, created_at FROM lessons WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrLessonNotFound
	}
	if err != nil {
		return nil, shared.StorageFailure("progress", "GetLesson", err)
	}
	return row.toDomain(), nil
}

func (r *CatalogRepo) CreateStudent(ctx context.Context, s *progress.Student) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO students (id, teacher_id, name, created_at)
		 VALUES (:id, :teacher_id, :name, :created_at)`,
		studentRow{ID: s.ID, TeacherID: s.TeacherID, Name: s.Name, CreatedAt: toNanos(s.CreatedAt)})
	return mapInsertError("CreateStudent", err)
}

func (r *CatalogRepo) CreateLesson(ctx context.Context, l *progress.Lesson) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO lessons (id, teacher_id, name, created_at)
		 VALUES (:id, :teacher_id, :name, :created_at)`,
		lessonRow{ID: l.ID, TeacherID: l.TeacherID, Name: l.Name, CreatedAt: toNanos(l.CreatedAt)})
	return mapInsertError("CreateLesson", err)
}

func (r *CatalogRepo) CreateTopic(ctx context.Context, t *progress.Topic) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO topics (id, lesson_id, name, created_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.LessonID, t.Name, toNanos(t.CreatedAt))
	if isForeignKeyViolation(err) {
		return shared.ErrLessonNotFound
	}
	return mapInsertError("CreateTopic", err)
}

func mapInsertError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return shared.WrapError("progress", op, shared.ErrAlreadyExists, "row already exists", err)
	}
	return shared.StorageFailure("progress", op, err)
}

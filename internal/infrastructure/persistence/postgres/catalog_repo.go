package postgres

import (
	"context"

	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CatalogRepository implements progress.CatalogRepository for PostgreSQL.
type CatalogRepository struct {
	conn *Connection
}

var _ progress.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(conn *Connection) *CatalogRepository {
	return &CatalogRepository{conn: conn}
}

// GetStudent returns a student by ID.
func (r *CatalogRepository) GetStudent(ctx context.Context, id string) (*progress.Student, error) {
	var s progress.Student
	err := r.conn.read(ctx, func(ctx context.Context, q Querier) error {
		return q.QueryRow(ctx,
			`SELECT id, teacher_id, name, created_at FROM students WHERE id = $1`, id,
		).Scan(&s.ID, &s.TeacherID, &s.Name, &s.CreatedAt)
	})
	if IsNoRows(err) {
		return nil, shared.ErrStudentNotFound
	}
	if err != nil {
		return nil, shared.StorageFailure("progress", "GetStudent", err)
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

// GetTopic returns a topic joined with its lesson.
func (r *CatalogRepository) GetTopic(ctx context.Context, id string) (*progress.Topic, error) {
	t := progress.Topic{Lesson: &progress.Lesson{}}
	err := r.conn.read(ctx, func(ctx context.Context, q Querier) error {
		return q.QueryRow(ctx, `
			SELECT t.id, t.lesson_id, t.name, t.created_at,
			       l.id, l.teacher_id, l.name, l.created_at
			FROM topics t
			JOIN lessons l ON l.id = t.lesson_id
			WHERE t.id = $1`, id,
		).Scan(&t.ID, &t.LessonID, &t.Name, &t.CreatedAt,
			&t.Lesson.ID, &t.Lesson.TeacherID, &t.Lesson.Name, &t.Lesson.CreatedAt)
	})
	if IsNoRows(err) {
		return nil, shared.ErrTopicNotFound
	}
	if err != nil {
		return nil, shared.StorageFailure("progress", "GetTopic", err)
	}
	return &t, nil
}

// GetLesson returns a lesson by ID.
func (r *CatalogRepository) GetLesson(ctx context.Context, id string) (*progress.Lesson, error) {
	var l progress.Lesson
	err := r.conn.read(ctx, func(ctx context.Context, q Querier) error {
		return q.QueryRow(ctx,
			`SELECT id, teacher_id, name, created_at FROM lessons WHERE id = $1`, id,
		).Scan(&l.ID, &l.TeacherID, &l.Name, &l.CreatedAt)
	})
	if IsNoRows(err) {
		return nil, shared.ErrLessonNotFound
	}
	if err != nil {
		return nil, shared.StorageFailure("progress", "GetLesson", err)
	}
	return &l, nil
}

// CreateStudent inserts a student.
func (r *CatalogRepository) CreateStudent(ctx context.Context, s *progress.Student) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO students (id, teacher_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		s.ID, s.TeacherID, s.Name, nowIfZero(s.CreatedAt))
	return mapInsertError("CreateStudent", err)
}

// CreateLesson inserts a lesson. An empty TeacherID makes it global.
func (r *CatalogRepository) CreateLesson(ctx context.Context, l *progress.Lesson) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO lessons (id, teacher_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		l.ID, l.TeacherID, l.Name, nowIfZero(l.CreatedAt))
	return mapInsertError("CreateLesson", err)
}

// CreateTopic inserts a topic under an existing lesson.
func (r *CatalogRepository) CreateTopic(ctx context.Context, t *progress.Topic) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO topics (id, lesson_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		t.ID, t.LessonID, t.Name, nowIfZero(t.CreatedAt))
	if IsForeignKeyViolation(err) {
		return shared.ErrLessonNotFound
	}
	return mapInsertError("CreateTopic", err)
}

func mapInsertError(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsUniqueViolation(err) {
		return shared.WrapError("progress", op, shared.ErrAlreadyExists, "row already exists", err)
	}
	return shared.StorageFailure("progress", op, err)
}

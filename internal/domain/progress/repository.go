package progress

import (
	"context"
	"time"
)

// LogFilter narrows FindLogs. Zero values mean "no constraint".
// TopicID and LessonID are resolved through the owning assignment.
type LogFilter struct {
	AssignmentID string
	TopicID      string
	LessonID     string
	From         time.Time // inclusive, day granularity
	To           time.Time // inclusive, day granularity
}

// LogRepository stores progress logs.
type LogRepository interface {
	// UpsertLog inserts the log or overwrites the counts of the existing
	// row with the same (student, assignment, date). The stored row is
	// returned with its ID and timestamps.
	UpsertLog(ctx context.Context, log *ProgressLog) (*ProgressLog, error)

	// FindLogs returns the student's logs matching the filter, oldest first.
	FindLogs(ctx context.Context, studentID string, filter LogFilter) ([]ProgressLog, error)
}

// AssignmentRepository stores assignments.
type AssignmentRepository interface {
	CreateAssignment(ctx context.Context, a *Assignment) error

	// GetAssignment returns shared.ErrAssignmentNotFound when absent.
	GetAssignment(ctx context.Context, id string) (*Assignment, error)

	// SumQuestionCounts totals question_count over every assignment of the student.
	SumQuestionCounts(ctx context.Context, studentID string) (int, error)

	// ListAssignments returns the student's assignments, newest start date first.
	ListAssignments(ctx context.Context, studentID string) ([]Assignment, error)
}

// CatalogRepository stores students, lessons and topics.
type CatalogRepository interface {
	// GetStudent returns shared.ErrStudentNotFound when absent.
	GetStudent(ctx context.Context, id string) (*Student, error)

	// GetTopic returns the topic with its Lesson populated, or
	// shared.ErrTopicNotFound.
	GetTopic(ctx context.Context, id string) (*Topic, error)

	// GetLesson returns shared.ErrLessonNotFound when absent.
	GetLesson(ctx context.Context, id string) (*Lesson, error)

	CreateStudent(ctx context.Context, s *Student) error
	CreateLesson(ctx context.Context, l *Lesson) error
	CreateTopic(ctx context.Context, t *Topic) error
}

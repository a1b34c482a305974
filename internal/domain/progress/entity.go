package progress

import (
	"time"

	"github.com/edutrack/progress-engine/internal/domain/shared"
)

// Student is a learner owned by exactly one teacher (the tenant).
type Student struct {
	ID        string    `json:"id"`
	TeacherID string    `json:"teacher_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// BelongsTo reports whether the student is reachable by the tenant.
func (s *Student) BelongsTo(tenantID string) bool {
	return tenantID != "" && s.TeacherID == tenantID
}

// Lesson groups topics. An empty TeacherID marks a global lesson.
type Lesson struct {
	ID        string    `json:"id"`
	TeacherID string    `json:"teacher_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// IsGlobal reports whether every tenant can see the lesson.
func (l *Lesson) IsGlobal() bool {
	return l.TeacherID == ""
}

// AccessibleBy reports whether the tenant can read data under this lesson.
func (l *Lesson) AccessibleBy(tenantID string) bool {
	return l.IsGlobal() || l.TeacherID == tenantID
}

// Topic belongs to exactly one lesson and inherits its accessibility.
type Topic struct {
	ID        string    `json:"id"`
	LessonID  string    `json:"lesson_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`

	// Lesson is populated by CatalogRepository.GetTopic.
	Lesson *Lesson `json:"lesson,omitempty"`
}

// AccessibleBy reports whether the tenant can read data under this topic.
func (t *Topic) AccessibleBy(tenantID string) bool {
	return t.Lesson != nil && t.Lesson.AccessibleBy(tenantID)
}

// Assignment is a block of questions on one topic for one student.
type Assignment struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"student_id"`
	TopicID       string    `json:"topic_id"`
	QuestionCount int       `json:"question_count"`
	DailyTarget   int       `json:"daily_target"`
	StartDate     time.Time `json:"start_date"` // day granularity
	EndDate       time.Time `json:"end_date"`   // day granularity
	CreatedAt     time.Time `json:"created_at"`
}

// IsPast reports whether the assignment ended before today.
func (a *Assignment) IsPast(today time.Time) bool {
	return a.EndDate.Before(today)
}

// Counts are the four answer tallies of a progress log.
type Counts struct {
	Right int `json:"right_count"`
	Wrong int `json:"wrong_count"`
	Empty int `json:"empty_count"`
	Bonus int `json:"bonus_count"`
}

// Validate rejects negative tallies.
func (c Counts) Validate() error {
	if c.Right < 0 || c.Wrong < 0 || c.Empty < 0 || c.Bonus < 0 {
		return shared.ErrNegativeCount
	}
	return nil
}

// Add returns the element-wise sum.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Right: c.Right + o.Right,
		Wrong: c.Wrong + o.Wrong,
		Empty: c.Empty + o.Empty,
		Bonus: c.Bonus + o.Bonus,
	}
}

// Attempted is the accuracy denominator; bonus work is excluded.
func (c Counts) Attempted() int {
	return c.Right + c.Wrong + c.Empty
}

// Total is every question touched, bonus included.
func (c Counts) Total() int {
	return c.Attempted() + c.Bonus
}

// ProgressLog is one student's tallies for one assignment on one day.
// (StudentID, AssignmentID, Date) is unique; writes upsert on it.
type ProgressLog struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	AssignmentID string    `json:"assignment_id"`
	Date         time.Time `json:"date"` // midnight UTC of the calendar day
	Counts
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrack/progress-engine/internal/domain/alert"
	"github.com/edutrack/progress-engine/internal/domain/preference"
	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/internal/domain/shared"
)

var (
	day1 = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	t0   = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seed creates teacher t1 with student s1, a global lesson lg/topic tg,
// a private lesson lp/topic tp, and assignment a1 on tg.
func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	cat := s.Catalog()

	require.NoError(t, cat.CreateStudent(ctx, &progress.Student{ID: "s1", TeacherID: "t1", Name: "Ada", CreatedAt: t0}))
	require.NoError(t, cat.CreateStudent(ctx, &progress.Student{ID: "s2", TeacherID: "t2", CreatedAt: t0}))
	require.NoError(t, cat.CreateLesson(ctx, &progress.Lesson{ID: "lg", Name: "Algebra", CreatedAt: t0}))
	require.NoError(t, cat.CreateLesson(ctx, &progress.Lesson{ID: "lp", TeacherID: "t1", CreatedAt: t0}))
	require.NoError(t, cat.CreateTopic(ctx, &progress.Topic{ID: "tg", LessonID: "lg", Name: "Equations", CreatedAt: t0}))
	require.NoError(t, cat.CreateTopic(ctx, &progress.Topic{ID: "tp", LessonID: "lp", CreatedAt: t0}))
	require.NoError(t, s.Assignments().CreateAssignment(ctx, &progress.Assignment{
		ID: "a1", StudentID: "s1", TopicID: "tg",
		QuestionCount: 250, DailyTarget: 20,
		StartDate: day1, EndDate: day1.AddDate(0, 0, 9),
		CreatedAt: t0,
	}))
}

func TestOpen_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "engine.db")

	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Schema creation is idempotent.
	s, err = Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	seed(t, s)
	cat := s.Catalog()

	st, err := cat.GetStudent(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "t1", st.TeacherID)
	assert.Equal(t, t0, st.CreatedAt)

	topic, err := cat.GetTopic(ctx, "tg")
	require.NoError(t, err)
	require.NotNil(t, topic.Lesson)
	assert.True(t, topic.Lesson.IsGlobal())
	assert.Equal(t, "Algebra", topic.Lesson.Name)

	_, err = cat.GetStudent(ctx, "nope")
	assert.ErrorIs(t, err, shared.ErrStudentNotFound)
	_, err = cat.GetTopic(ctx, "nope")
	assert.ErrorIs(t, err, shared.ErrTopicNotFound)
	_, err = cat.GetLesson(ctx, "nope")
	assert.ErrorIs(t, err, shared.ErrLessonNotFound)

	err = cat.CreateStudent(ctx, &progress.Student{ID: "s1", TeacherID: "t9"})
	assert.True(t, shared.IsAlreadyExists(err))

	err = cat.CreateTopic(ctx, &progress.Topic{ID: "orphan", LessonID: "missing"})
	assert.ErrorIs(t, err, shared.ErrLessonNotFound)
}

func TestLogs_UpsertOverwritesSameDay(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	seed(t, s)
	logs := s.Logs()

	first, err := logs.UpsertLog(ctx, &progress.ProgressLog{
		StudentID: "s1", AssignmentID: "a1", Date: day1,
		Counts:    progress.Counts{Right: 3, Wrong: 1},
		CreatedAt: t0, UpdatedAt: t0,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	second, err := logs.UpsertLog(ctx, &progress.ProgressLog{
		StudentID: "s1", AssignmentID: "a1", Date: day1,
		Counts:    progress.Counts{Right: 5, Wrong: 2, Empty: 1, Bonus: 3},
		UpdatedAt: t0.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, t0, second.CreatedAt)
	assert.Equal(t, t0.Add(time.Hour), second.UpdatedAt)

	all, err := logs.FindLogs(ctx, "s1", progress.LogFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, progress.Counts{Right: 5, Wrong: 2, Empty: 1, Bonus: 3}, all[0].Counts)
	assert.Equal(t, day1, all[0].Date)
}

func TestLogs_UnknownAssignment(t *testing.T) {
	s := openStore(t)
	seed(t, s)

	_, err := s.Logs().UpsertLog(context.Background(), &progress.ProgressLog{
		StudentID: "s1", AssignmentID: "missing", Date: day1,
	})
	assert.ErrorIs(t, err, shared.ErrAssignmentNotFound)
}

func TestLogs_Filters(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	seed(t, s)
	require.NoError(t, s.Assignments().CreateAssignment(ctx, &progress.Assignment{
		ID: "a2", StudentID: "s1", TopicID: "tp", QuestionCount: 400, DailyTarget: 40,
		StartDate: day1, EndDate: day1.AddDate(0, 0, 9), CreatedAt: t0,
	}))

	for i, a := range []string{"a1", "a1", "a2"} {
		_, err := s.Logs().UpsertLog(ctx, &progress.ProgressLog{
			StudentID: "s1", AssignmentID: a, Date: day1.AddDate(0, 0, i),
			Counts: progress.Counts{Right: 1}, UpdatedAt: t0,
		})
		require.NoError(t, err)
	}

	byTopic, err := s.Logs().FindLogs(ctx, "s1", progress.LogFilter{TopicID: "tg"})
	require.NoError(t, err)
	assert.Len(t, byTopic, 2)

	byLesson, err := s.Logs().FindLogs(ctx, "s1", progress.LogFilter{LessonID: "lp"})
	require.NoError(t, err)
	assert.Len(t, byLesson, 1)

	byRange, err := s.Logs().FindLogs(ctx, "s1", progress.LogFilter{
		AssignmentID: "a1", From: day1.AddDate(0, 0, 1), To: day1.AddDate(0, 0, 1),
	})
	require.NoError(t, err)
	require.Len(t, byRange, 1)
	assert.Equal(t, day1.AddDate(0, 0, 1), byRange[0].Date)

	other, err := s.Logs().FindLogs(ctx, "s2", progress.LogFilter{})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAssignments(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	seed(t, s)
	repo := s.Assignments()

	require.NoError(t, repo.CreateAssignment(ctx, &progress.Assignment{
		ID: "a2", StudentID: "s1", TopicID: "tp", QuestionCount: 400,
		StartDate: day1.AddDate(0, 0, 1), EndDate: day1.AddDate(0, 0, 5), CreatedAt: t0,
	}))

	total, err := repo.SumQuestionCounts(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 650, total)

	total, err = repo.SumQuestionCounts(ctx, "s2")
	require.NoError(t, err)
	assert.Zero(t, total)

	a, err := repo.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, day1.AddDate(0, 0, 9), a.EndDate)
	assert.Equal(t, 20, a.DailyTarget)

	list, err := repo.ListAssignments(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a2", list[0].ID)

	_, err = repo.GetAssignment(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrAssignmentNotFound)

	err = repo.CreateAssignment(ctx, &progress.Assignment{ID: "a3", StudentID: "ghost", TopicID: "tg"})
	assert.True(t, shared.IsNotFound(err))
}

func TestAlerts_OneOpenPerKey(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	seed(t, s)
	repo := s.Alerts()
	key := alert.Key{StudentID: "s1", TopicID: "tg"}

	_, err := repo.FindUnresolved(ctx, key)
	assert.ErrorIs(t, err, shared.ErrAlertNotFound)

	require.NoError(t, repo.Create(ctx, alert.New("al1", key, 65, 70, t0)))
	err = repo.Create(ctx, alert.New("al2", key, 60, 70, t0))
	assert.ErrorIs(t, err, shared.ErrAlertAlreadyExists)

	open, err := repo.FindUnresolved(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "al1", open.ID)

	open.Breach(55, 75, t0.Add(time.Minute))
	require.NoError(t, repo.Update(ctx, open))

	resolvedAt := t0.Add(time.Hour)
	require.NoError(t, repo.MarkResolved(ctx, "al1", resolvedAt))
	require.NoError(t, repo.MarkResolved(ctx, "al1", resolvedAt.Add(time.Hour)))

	got, err := repo.GetByID(ctx, "al1")
	require.NoError(t, err)
	assert.True(t, got.Resolved)
	require.NotNil(t, got.ResolvedAt)
	assert.Equal(t, resolvedAt, *got.ResolvedAt)
	assert.Equal(t, 55.0, got.Accuracy)
	assert.Equal(t, 75.0, got.Threshold)

	// The key is free again once resolved.
	require.NoError(t, repo.Create(ctx, alert.New("al3", key, 60, 70, t0.Add(2*time.Hour))))

	assert.ErrorIs(t, repo.MarkResolved(ctx, "missing", t0), shared.ErrAlertNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &alert.Alert{ID: "missing"}), shared.ErrAlertNotFound)
}

func TestAlerts_List(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	seed(t, s)
	require.NoError(t, s.Catalog().CreateStudent(ctx, &progress.Student{ID: "s3", TeacherID: "t1", CreatedAt: t0}))
	repo := s.Alerts()

	require.NoError(t, repo.Create(ctx, alert.New("old", alert.Key{StudentID: "s1", TopicID: "tg"}, 60, 70, t0)))
	require.NoError(t, repo.Create(ctx, alert.New("new", alert.Key{StudentID: "s3"}, 50, 70, t0.Add(time.Hour))))
	require.NoError(t, repo.Create(ctx, alert.New("foreign", alert.Key{StudentID: "s2"}, 50, 70, t0)))
	require.NoError(t, repo.Create(ctx, alert.New("closed", alert.Key{StudentID: "s1", LessonID: "lg"}, 50, 70, t0)))
	require.NoError(t, repo.MarkResolved(ctx, "closed", t0.Add(time.Minute)))

	open, err := repo.List(ctx, alert.ListFilter{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "new", open[0].ID)
	assert.Equal(t, "old", open[1].ID)

	mine, err := repo.List(ctx, alert.ListFilter{TenantID: "t1", StudentID: "s1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "old", mine[0].ID)

	closed, err := repo.List(ctx, alert.ListFilter{TenantID: "t1", Resolved: true})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "closed", closed[0].ID)
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	repo := s.Preferences()

	_, err := repo.Get(ctx, "t1", preference.KeyAccuracyThreshold)
	assert.ErrorIs(t, err, shared.ErrPreferenceNotFound)

	require.NoError(t, repo.Set(ctx, "t1", preference.KeyAccuracyThreshold, "80"))
	require.NoError(t, repo.Set(ctx, "t1", preference.KeyAccuracyThreshold, "85"))

	v, err := repo.Get(ctx, "t1", preference.KeyAccuracyThreshold)
	require.NoError(t, err)
	assert.Equal(t, "85", v)
}

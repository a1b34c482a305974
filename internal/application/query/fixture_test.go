package query

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edutrack/progress-engine/internal/application/command"
	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/internal/infrastructure/persistence/memory"
	"github.com/edutrack/progress-engine/internal/infrastructure/persistence/sqlite"
	"github.com/edutrack/progress-engine/pkg/logger"
	"github.com/edutrack/progress-engine/pkg/timeutil"
)

var (
	march10 = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	now     = time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)
	errDown = errors.New("store down")
)

// world is a seeded store with the write and read paths wired together.
//
// Tenants: t1 owns s1 and private lesson lp (topic tp); t2 owns s2 and
// private lesson lq (topic tq). Global lesson lg holds topics tg and th.
type world struct {
	store   *sqlite.Store
	cache   *memory.MetricCache
	queries *ProgressQueries
	logs    *command.LogProgressHandler
	assign  *command.CreateAssignmentHandler
}

func newWorld(t *testing.T) *world {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(ctx, sqlite.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cat := store.Catalog()
	require.NoError(t, cat.CreateStudent(ctx, &progress.Student{ID: "s1", TeacherID: "t1", CreatedAt: now}))
	require.NoError(t, cat.CreateStudent(ctx, &progress.Student{ID: "s2", TeacherID: "t2", CreatedAt: now}))
	for _, l := range []progress.Lesson{{ID: "lg"}, {ID: "lp", TeacherID: "t1"}, {ID: "lq", TeacherID: "t2"}} {
		l := l
		l.CreatedAt = now
		require.NoError(t, cat.CreateLesson(ctx, &l))
	}
	for _, tp := range []progress.Topic{{ID: "tg", LessonID: "lg"}, {ID: "th", LessonID: "lg"}, {ID: "tp", LessonID: "lp"}, {ID: "tq", LessonID: "lq"}} {
		tp := tp
		tp.CreatedAt = now
		require.NoError(t, cat.CreateTopic(ctx, &tp))
	}

	clock := timeutil.FixedClock(now)
	cache := memory.NewMetricCache(memory.Config{})
	inv := command.NewCacheInvalidator(cache, logger.NewNop())

	return &world{
		store:   store,
		cache:   cache,
		queries: NewProgressQueries(cat, store.Logs(), store.Assignments(), cache, clock, time.UTC, logger.NewNop()),
		logs: command.NewLogProgressHandler(store.Logs(), store.Assignments(), cat,
			inv, nil, clock, time.UTC, logger.NewNop()),
		assign: command.NewCreateAssignmentHandler(store.Assignments(), cat, inv, nil, clock, logger.NewNop()),
	}
}

func (w *world) assignment(t *testing.T, student, tenant, topic string, questions, daily int) string {
	t.Helper()
	a, err := w.assign.Handle(context.Background(), command.CreateAssignmentCommand{
		TenantID: tenant, StudentID: student, TopicID: topic,
		QuestionCount: questions, DailyTarget: daily,
		StartDate: march10, EndDate: march10.AddDate(0, 0, 13),
	})
	require.NoError(t, err)
	return a.ID
}

func (w *world) log(t *testing.T, student, tenant, assignmentID string, day time.Time, c progress.Counts) {
	t.Helper()
	_, err := w.logs.Handle(context.Background(), command.LogProgressCommand{
		TenantID: tenant, StudentID: student, AssignmentID: assignmentID, Date: day,
		Right: c.Right, Wrong: c.Wrong, Empty: c.Empty, Bonus: c.Bonus,
	})
	require.NoError(t, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

// countingLogs wraps a LogRepository, counting FindLogs calls. When gate is
// set, every call blocks until it is closed. When fail is set, calls fail.
type countingLogs struct {
	progress.LogRepository
	calls atomic.Int32
	gate  chan struct{}
	fail  bool
}

func (c *countingLogs) FindLogs(ctx context.Context, studentID string, f progress.LogFilter) ([]progress.ProgressLog, error) {
	c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	if c.fail {
		return nil, errDown
	}
	return c.LogRepository.FindLogs(ctx, studentID, f)
}

type failingAssignments struct {
	progress.AssignmentRepository
}

func (failingAssignments) SumQuestionCounts(context.Context, string) (int, error) {
	return 0, errDown
}

// staleFirstLogs reads through immediately but holds the first FindLogs
// result until release is closed, so a write can land in between.
type staleFirstLogs struct {
	progress.LogRepository
	calls   atomic.Int32
	loaded  chan struct{}
	release chan struct{}
}

func (s *staleFirstLogs) FindLogs(ctx context.Context, studentID string, f progress.LogFilter) ([]progress.ProgressLog, error) {
	logs, err := s.LogRepository.FindLogs(ctx, studentID, f)
	if s.calls.Add(1) == 1 {
		close(s.loaded)
		<-s.release
	}
	return logs, err
}

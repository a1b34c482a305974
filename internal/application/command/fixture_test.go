package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edutrack/progress-engine/internal/domain/alert"
	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/internal/domain/shared"
	"github.com/edutrack/progress-engine/internal/infrastructure/persistence/memory"
	"github.com/edutrack/progress-engine/internal/infrastructure/persistence/sqlite"
	"github.com/edutrack/progress-engine/pkg/logger"
	"github.com/edutrack/progress-engine/pkg/timeutil"
)

var (
	march10 = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	now     = time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	errDown = errors.New("store down")
)

type fixture struct {
	store  *sqlite.Store
	cache  *memory.MetricCache
	events *recordingPublisher
	clock  timeutil.Clock
	inv    *CacheInvalidator
}

// newFixture opens an in-memory store with tenant t1 owning student s1,
// tenant t2 owning s2, global lesson lg with topic tg, and assignment a1
// (s1 on tg, 250 questions).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(ctx, sqlite.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cat := store.Catalog()
	require.NoError(t, cat.CreateStudent(ctx, &progress.Student{ID: "s1", TeacherID: "t1", CreatedAt: now}))
	require.NoError(t, cat.CreateStudent(ctx, &progress.Student{ID: "s2", TeacherID: "t2", CreatedAt: now}))
	require.NoError(t, cat.CreateLesson(ctx, &progress.Lesson{ID: "lg", CreatedAt: now}))
	require.NoError(t, cat.CreateLesson(ctx, &progress.Lesson{ID: "lp2", TeacherID: "t2", CreatedAt: now}))
	require.NoError(t, cat.CreateTopic(ctx, &progress.Topic{ID: "tg", LessonID: "lg", CreatedAt: now}))
	require.NoError(t, cat.CreateTopic(ctx, &progress.Topic{ID: "tp2", LessonID: "lp2", CreatedAt: now}))
	require.NoError(t, store.Assignments().CreateAssignment(ctx, &progress.Assignment{
		ID: "a1", StudentID: "s1", TopicID: "tg", QuestionCount: 250, DailyTarget: 25,
		StartDate: march10, EndDate: march10.AddDate(0, 0, 9), CreatedAt: now,
	}))

	cache := memory.NewMetricCache(memory.Config{})
	return &fixture{
		store:  store,
		cache:  cache,
		events: &recordingPublisher{},
		clock:  timeutil.FixedClock(now),
		inv:    NewCacheInvalidator(cache, logger.NewNop()),
	}
}

func (f *fixture) logHandler() *LogProgressHandler {
	return NewLogProgressHandler(f.store.Logs(), f.store.Assignments(), f.store.Catalog(),
		f.inv, f.events, f.clock, time.UTC, logger.NewNop())
}

func (f *fixture) alertHandler() *CheckAccuracyAlertHandler {
	return NewCheckAccuracyAlertHandler(f.store.Alerts(), f.events, f.clock, logger.NewNop())
}

func (f *fixture) unresolved(t *testing.T, tenant string) []alert.Alert {
	t.Helper()
	out, err := f.store.Alerts().List(context.Background(), alert.ListFilter{TenantID: tenant})
	require.NoError(t, err)
	return out
}

func ptr(v float64) *float64 { return &v }

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// recordingCache records invalidations and can be told to fail them.
type recordingCache struct {
	mu          sync.Mutex
	invalidated [][]progress.ScopeKind
	fail        bool
}

func (c *recordingCache) Get(context.Context, progress.CacheKey) (progress.CachedMetric, bool) {
	return progress.CachedMetric{}, false
}

func (c *recordingCache) Set(context.Context, progress.CacheKey, progress.CachedMetric) {}

func (c *recordingCache) Invalidate(_ context.Context, _ string, kinds ...progress.ScopeKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, kinds)
	if c.fail {
		return errDown
	}
	return nil
}

// stubAlerts is an alert.Repository driven by function fields. Unset
// functions fail with errDown.
type stubAlerts struct {
	findUnresolved func(alert.Key) (*alert.Alert, error)
	create         func(*alert.Alert) error
	update         func(*alert.Alert) error
	markResolved   func(string, time.Time) error
}

func (s *stubAlerts) FindUnresolved(_ context.Context, k alert.Key) (*alert.Alert, error) {
	if s.findUnresolved == nil {
		return nil, errDown
	}
	return s.findUnresolved(k)
}

func (s *stubAlerts) Create(_ context.Context, a *alert.Alert) error {
	if s.create == nil {
		return errDown
	}
	return s.create(a)
}

func (s *stubAlerts) Update(_ context.Context, a *alert.Alert) error {
	if s.update == nil {
		return errDown
	}
	return s.update(a)
}

func (s *stubAlerts) MarkResolved(_ context.Context, id string, at time.Time) error {
	if s.markResolved == nil {
		return errDown
	}
	return s.markResolved(id, at)
}

func (s *stubAlerts) GetByID(context.Context, string) (*alert.Alert, error) {
	return nil, errDown
}

func (s *stubAlerts) List(context.Context, alert.ListFilter) ([]alert.Alert, error) {
	return nil, errDown
}

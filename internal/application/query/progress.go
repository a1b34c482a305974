// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/internal/domain/shared"
	"github.com/edutrack/progress-engine/pkg/logger"
	"github.com/edutrack/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS QUERIES
// Cache-checking read paths for topic, lesson and dual metrics. Access is
// checked before the cache so a hit never leaks another tenant's data.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressQueries serves computed progress metrics.
type ProgressQueries struct {
	catalog     progress.CatalogRepository
	logs        progress.LogRepository
	assignments progress.AssignmentRepository
	cache       progress.MetricCache
	clock       timeutil.Clock
	loc         *time.Location
	log         *logger.Logger

	// flights coalesces concurrent misses on the same cache key.
	flights singleflight.Group
}

// NewProgressQueries creates the progress read service. loc decides which
// calendar day is "today" for pace queries.
func NewProgressQueries(
	catalog progress.CatalogRepository,
	logs progress.LogRepository,
	assignments progress.AssignmentRepository,
	cache progress.MetricCache,
	clock timeutil.Clock,
	loc *time.Location,
	log *logger.Logger,
) *ProgressQueries {
	if clock == nil {
		clock = timeutil.SystemClock
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ProgressQueries{
		catalog:     catalog,
		logs:        logs,
		assignments: assignments,
		cache:       cache,
		clock:       clock,
		loc:         loc,
		log:         log.With(logger.Component("progress_queries")),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Topic and lesson
// ─────────────────────────────────────────────────────────────────────────────

// GetTopicProgress returns the student's metric over every log whose
// assignment targets the topic.
func (q *ProgressQueries) GetTopicProgress(ctx context.Context, studentID, topicID, tenantID string) (*progress.ScopeMetric, error) {
	const op = "GetTopicProgress"
	if err := requireIDs(op, studentID, topicID, tenantID); err != nil {
		return nil, err
	}
	if err := q.authorize(ctx, op, studentID, tenantID); err != nil {
		return nil, err
	}

	topic, err := q.catalog.GetTopic(ctx, topicID)
	if err != nil {
		return nil, shared.StorageFailure("progress", op, err)
	}
	if !topic.AccessibleBy(tenantID) {
		return nil, shared.ErrTopicNotFound
	}

	return q.scopeMetric(ctx, op, progress.TopicKey(studentID, topicID),
		progress.LogFilter{TopicID: topicID})
}

// GetLessonProgress returns the student's metric over every log whose
// assignment targets a topic of the lesson.
func (q *ProgressQueries) GetLessonProgress(ctx context.Context, studentID, lessonID, tenantID string) (*progress.ScopeMetric, error) {
	const op = "GetLessonProgress"
	if err := requireIDs(op, studentID, lessonID, tenantID); err != nil {
		return nil, err
	}
	if err := q.authorize(ctx, op, studentID, tenantID); err != nil {
		return nil, err
	}

	lesson, err := q.catalog.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, shared.StorageFailure("progress", op, err)
	}
	if !lesson.AccessibleBy(tenantID) {
		return nil, shared.ErrLessonNotFound
	}

	return q.scopeMetric(ctx, op, progress.LessonKey(studentID, lessonID),
		progress.LogFilter{LessonID: lessonID})
}

func (q *ProgressQueries) scopeMetric(ctx context.Context, op string, key progress.CacheKey, filter progress.LogFilter) (*progress.ScopeMetric, error) {
	if cached, ok := q.cacheGet(ctx, key); ok && cached.Scope != nil {
		m := *cached.Scope
		return &m, nil
	}

	gen := q.generation(key.StudentID)
	v, err, _ := q.flights.Do(flightKey(key, gen), func() (any, error) {
		logs, err := q.logs.FindLogs(ctx, key.StudentID, filter)
		if err != nil {
			return nil, shared.StorageFailure("progress", op, err)
		}
		m := progress.AggregateScope(logs, q.clock())
		q.cacheSet(ctx, key, gen, progress.CachedMetric{Scope: &m})
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	m := v.(progress.ScopeMetric)
	return &m, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Dual
// ─────────────────────────────────────────────────────────────────────────────

// GetDualMetrics returns program progress and concept mastery over all of
// the student's logs and assignments.
func (q *ProgressQueries) GetDualMetrics(ctx context.Context, studentID, tenantID string) (*progress.DualMetric, error) {
	const op = "GetDualMetrics"
	if err := requireIDs(op, studentID, tenantID); err != nil {
		return nil, err
	}
	if err := q.authorize(ctx, op, studentID, tenantID); err != nil {
		return nil, err
	}

	key := progress.DualKey(studentID)
	if cached, ok := q.cacheGet(ctx, key); ok && cached.Dual != nil {
		m := *cached.Dual
		return &m, nil
	}

	gen := q.generation(studentID)
	v, err, _ := q.flights.Do(flightKey(key, gen), func() (any, error) {
		var (
			logs     []progress.ProgressLog
			assigned int
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			logs, err = q.logs.FindLogs(gctx, studentID, progress.LogFilter{})
			return err
		})
		g.Go(func() error {
			var err error
			assigned, err = q.assignments.SumQuestionCounts(gctx, studentID)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, shared.StorageFailure("progress", op, err)
		}

		m := progress.AggregateDual(logs, assigned, q.clock())
		q.cacheSet(ctx, key, gen, progress.CachedMetric{Dual: &m})
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	m := v.(progress.DualMetric)
	return &m, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (q *ProgressQueries) authorize(ctx context.Context, op, studentID, tenantID string) error {
	student, err := q.catalog.GetStudent(ctx, studentID)
	if err != nil {
		return shared.StorageFailure("progress", op, err)
	}
	if !student.BelongsTo(tenantID) {
		return shared.ErrStudentNotInTenant
	}
	return nil
}

func (q *ProgressQueries) cacheGet(ctx context.Context, key progress.CacheKey) (progress.CachedMetric, bool) {
	if q.cache == nil {
		return progress.CachedMetric{}, false
	}
	v, ok := q.cache.Get(ctx, key)
	if ok {
		q.log.Debug("metric cache hit", logger.CacheKey(key.String()))
	}
	return v, ok
}

// cacheSet stores a result loaded under generation gen. If the student was
// invalidated while loading, the result may predate the write and is dropped.
func (q *ProgressQueries) cacheSet(ctx context.Context, key progress.CacheKey, gen uint64, v progress.CachedMetric) {
	if q.cache == nil {
		return
	}
	if q.generation(key.StudentID) != gen {
		q.log.Debug("invalidated during load, not caching", logger.CacheKey(key.String()))
		return
	}
	q.cache.Set(ctx, key, v)
}

// generation is zero for caches that do not track invalidations.
func (q *ProgressQueries) generation(studentID string) uint64 {
	if g, ok := q.cache.(progress.GenerationSource); ok {
		return g.Generation(studentID)
	}
	return 0
}

// flightKey keeps loads started before and after an invalidation apart.
func flightKey(key progress.CacheKey, gen uint64) string {
	return key.String() + "#" + strconv.FormatUint(gen, 10)
}

// requireIDs rejects empty identifiers.
func requireIDs(op string, ids ...string) error {
	for _, id := range ids {
		if id == "" {
			return shared.InvalidInput("progress", op, "identifier is required")
		}
	}
	return nil
}

package command

import (
	"context"

	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INVALIDATION
// Writers call InvalidateAfterWrite after every successful log or assignment
// write so the next read recomputes from the store.
// ══════════════════════════════════════════════════════════════════════════════

// CacheInvalidator drops cached metrics for a student. Failures are logged
// and never returned; stale entries still expire by TTL.
type CacheInvalidator struct {
	cache progress.MetricCache
	log   *logger.Logger
}

// NewCacheInvalidator creates a new CacheInvalidator.
func NewCacheInvalidator(cache progress.MetricCache, log *logger.Logger) *CacheInvalidator {
	if log == nil {
		log = logger.NewNop()
	}
	return &CacheInvalidator{
		cache: cache,
		log:   log.With(logger.Component("cache_invalidator")),
	}
}

// InvalidateStudentTopicProgressCache drops the student's topic and lesson metrics.
func (i *CacheInvalidator) InvalidateStudentTopicProgressCache(ctx context.Context, studentID string) {
	i.invalidate(ctx, studentID, progress.ScopeTopic)
}

// InvalidateDualMetricsCache drops the student's dual metric.
func (i *CacheInvalidator) InvalidateDualMetricsCache(ctx context.Context, studentID string) {
	i.invalidate(ctx, studentID, progress.ScopeDual)
}

// InvalidateAfterWrite drops every metric derived from the student's logs
// and assignments.
func (i *CacheInvalidator) InvalidateAfterWrite(ctx context.Context, studentID string) {
	i.InvalidateStudentTopicProgressCache(ctx, studentID)
	i.InvalidateDualMetricsCache(ctx, studentID)
}

func (i *CacheInvalidator) invalidate(ctx context.Context, studentID string, kind progress.ScopeKind) {
	if i == nil || i.cache == nil || studentID == "" {
		return
	}
	if err := i.cache.Invalidate(ctx, studentID, kind); err != nil {
		i.log.Warn("cache invalidation failed",
			logger.StudentID(studentID),
			logger.String("scope", string(kind)),
			logger.Err(err))
	}
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/pkg/circuitbreaker"
	"github.com/edutrack/progress-engine/pkg/logger"
)

// DefaultTTL matches the in-memory backend.
const DefaultTTL = 5 * time.Minute

// MetricCache stores metrics as JSON strings. Every key a student owns is
// also recorded in IndexKey(student) so invalidation needs no SCAN.
type MetricCache struct {
	client  redis.Cmdable
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger

	// gens covers invalidations issued through this process only.
	gens progress.Generations
}

var (
	_ progress.MetricCache      = (*MetricCache)(nil)
	_ progress.GenerationSource = (*MetricCache)(nil)
)

// NewMetricCache wraps a client. A nil breaker gets circuitbreaker.CacheBreaker.
func NewMetricCache(client redis.Cmdable, ttl time.Duration, breaker *circuitbreaker.CircuitBreaker, log *logger.Logger) *MetricCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With(logger.Component("redis_metric_cache"))
	if breaker == nil {
		breaker = circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("cache circuit state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
	}
	return &MetricCache{client: client, ttl: ttl, breaker: breaker, log: log}
}

// Get reads a metric. Any failure is logged and reported as a miss.
func (c *MetricCache) Get(ctx context.Context, key progress.CacheKey) (progress.CachedMetric, bool) {
	var (
		out progress.CachedMetric
		hit bool
	)
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		data, err := c.client.Get(ctx, key.String()).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &out); err != nil {
			// A corrupt value is a miss, not a backend fault.
			c.log.Warn("dropping undecodable cache value", logger.CacheKey(key.String()), logger.Err(err))
			return nil
		}
		hit = true
		return nil
	})
	if err != nil {
		c.log.Warn("cache get failed", logger.CacheKey(key.String()), logger.Err(err))
		return progress.CachedMetric{}, false
	}
	return out, hit
}

// Set writes a metric with the cache TTL and records it in the student index.
func (c *MetricCache) Set(ctx context.Context, key progress.CacheKey, value progress.CachedMetric) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Error("cache value not serializable", logger.CacheKey(key.String()), logger.Err(err))
		return
	}

	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		idx := IndexKey(key.StudentID)
		pipe := c.client.TxPipeline()
		pipe.Set(ctx, key.String(), data, c.ttl)
		pipe.SAdd(ctx, idx, key.String())
		// The index outlives its members by one TTL at most.
		pipe.Expire(ctx, idx, c.ttl)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		c.log.Warn("cache set failed", logger.CacheKey(key.String()), logger.Err(err))
	}
}

// Invalidate deletes the student's keys of the requested kinds and their
// dependents.
func (c *MetricCache) Invalidate(ctx context.Context, studentID string, kinds ...progress.ScopeKind) error {
	c.gens.Bump(studentID)
	drop := progress.ExpandKinds(kinds)
	idx := IndexKey(studentID)

	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		members, err := c.client.SMembers(ctx, idx).Result()
		if err != nil {
			return fmt.Errorf("read index %s: %w", idx, err)
		}

		victims := matchKinds(members, studentID, drop)
		if len(victims) == 0 {
			return nil
		}

		pipe := c.client.TxPipeline()
		pipe.Del(ctx, victims...)
		args := make([]any, len(victims))
		for i, v := range victims {
			args[i] = v
		}
		pipe.SRem(ctx, idx, args...)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("delete %d keys: %w", len(victims), err)
		}
		return nil
	})
}

// Generation reports how many invalidations this process issued for the
// student.
func (c *MetricCache) Generation(studentID string) uint64 {
	return c.gens.Current(studentID)
}

// matchKinds filters index members down to keys whose kind is in drop.
func matchKinds(members []string, studentID string, drop map[progress.ScopeKind]struct{}) []string {
	var out []string
	for _, m := range members {
		kind, ok := kindOf(m, studentID)
		if !ok {
			continue
		}
		if _, ok := drop[kind]; ok {
			out = append(out, m)
		}
	}
	return out
}

// kindOf extracts the kind from "progress:<kind>:<student>[:<scope>]".
func kindOf(key, studentID string) (progress.ScopeKind, bool) {
	rest, ok := strings.CutPrefix(key, "progress:")
	if !ok {
		return "", false
	}
	kind, tail, ok := strings.Cut(rest, ":")
	if !ok {
		return "", false
	}
	if tail != studentID && !strings.HasPrefix(tail, studentID+":") {
		return "", false
	}
	return progress.ScopeKind(kind), true
}

// Package memory provides an in-process MetricCache.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/edutrack/progress-engine/internal/domain/progress"
)

// Default tuning.
const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 10000
)

// Config configures a MetricCache.
type Config struct {
	// TTL is how long an entry stays readable. Zero means DefaultTTL.
	TTL time.Duration

	// MaxEntries bounds the cache; the least recently used entry is evicted
	// when full. Zero means DefaultMaxEntries.
	MaxEntries int
}

// MetricCache is an expiring LRU of computed metrics with a per-student
// index for invalidation. Safe for concurrent use.
//
// Lock order is writeMu, then the LRU's own lock, then mu. The eviction
// callback runs under the LRU's lock and takes mu, so mu is never held while
// calling into the LRU. writeMu keeps Set's index update ahead of any
// Invalidate of the same key.
type MetricCache struct {
	lru *expirable.LRU[progress.CacheKey, progress.CachedMetric]

	writeMu sync.Mutex

	mu        sync.Mutex
	byStudent map[string]map[progress.CacheKey]struct{}

	gens progress.Generations
}

var (
	_ progress.MetricCache      = (*MetricCache)(nil)
	_ progress.GenerationSource = (*MetricCache)(nil)
)

// NewMetricCache creates an empty cache.
func NewMetricCache(cfg Config) *MetricCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	c := &MetricCache{
		byStudent: make(map[string]map[progress.CacheKey]struct{}),
	}
	c.lru = expirable.NewLRU[progress.CacheKey, progress.CachedMetric](cfg.MaxEntries, c.onEvict, cfg.TTL)
	return c
}

// Get returns a live entry and marks it recently used.
func (c *MetricCache) Get(_ context.Context, key progress.CacheKey) (progress.CachedMetric, bool) {
	return c.lru.Get(key)
}

// Set stores the value, replacing any previous one for the key.
func (c *MetricCache) Set(_ context.Context, key progress.CacheKey, value progress.CachedMetric) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.lru.Add(key, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.byStudent[key.StudentID]
	if !ok {
		idx = make(map[progress.CacheKey]struct{})
		c.byStudent[key.StudentID] = idx
	}
	idx[key] = struct{}{}
}

// Invalidate drops the student's entries of the given kinds and their
// dependents. It never fails.
func (c *MetricCache) Invalidate(_ context.Context, studentID string, kinds ...progress.ScopeKind) error {
	c.gens.Bump(studentID)
	drop := progress.ExpandKinds(kinds)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	var victims []progress.CacheKey
	for key := range c.byStudent[studentID] {
		if _, ok := drop[key.Kind]; ok {
			victims = append(victims, key)
		}
	}
	c.mu.Unlock()

	for _, key := range victims {
		if !c.lru.Remove(key) {
			// Expired and swept before Set indexed it.
			c.unindex(key)
		}
	}
	return nil
}

// Generation reports how many invalidations the student has seen.
func (c *MetricCache) Generation(studentID string) uint64 {
	return c.gens.Current(studentID)
}

// Len returns the number of stored entries. Expired entries count until the
// background sweep removes them.
func (c *MetricCache) Len() int {
	return c.lru.Len()
}

// Purge removes every entry.
func (c *MetricCache) Purge() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.lru.Purge()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byStudent = make(map[string]map[progress.CacheKey]struct{})
}

// indexed returns how many keys the student's index holds.
func (c *MetricCache) indexed(studentID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byStudent[studentID])
}

// onEvict runs for removals, capacity evictions and expiry.
func (c *MetricCache) onEvict(key progress.CacheKey, _ progress.CachedMetric) {
	c.unindex(key)
}

func (c *MetricCache) unindex(key progress.CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.byStudent[key.StudentID]
	if !ok {
		return
	}
	delete(idx, key)
	if len(idx) == 0 {
		delete(c.byStudent, key.StudentID)
	}
}

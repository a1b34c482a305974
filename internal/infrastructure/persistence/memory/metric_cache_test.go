package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrack/progress-engine/internal/domain/progress"
)

func scope(acc float64) progress.CachedMetric {
	return progress.CachedMetric{Scope: &progress.ScopeMetric{Accuracy: &acc}}
}

func TestMetricCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMetricCache(Config{})
	key := progress.TopicKey("s1", "tp1")

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Set(ctx, key, scope(76.92))
	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, 76.92, *got.Scope.Accuracy)

	c.Set(ctx, key, scope(80))
	got, _ = c.Get(ctx, key)
	assert.Equal(t, 80.0, *got.Scope.Accuracy, "last writer wins")
	assert.Equal(t, 1, c.Len())
}

func TestMetricCache_TTL(t *testing.T) {
	ctx := context.Background()
	c := NewMetricCache(Config{TTL: 50 * time.Millisecond})
	key := progress.DualKey("s1")

	c.Set(ctx, key, progress.CachedMetric{Dual: &progress.DualMetric{TotalAssigned: 650}})
	_, ok := c.Get(ctx, key)
	assert.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok := c.Get(ctx, key)
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return c.Len() == 0 && c.indexed("s1") == 0 },
		time.Second, 5*time.Millisecond, "expired entries leave the index too")
}

func TestMetricCache_LRUEviction(t *testing.T) {
	ctx := context.Background()
	c := NewMetricCache(Config{MaxEntries: 2})
	k1 := progress.TopicKey("s1", "a")
	k2 := progress.TopicKey("s1", "b")
	k3 := progress.TopicKey("s1", "c")

	c.Set(ctx, k1, scope(1))
	c.Set(ctx, k2, scope(2))
	_, _ = c.Get(ctx, k1) // k2 is now least recently used
	c.Set(ctx, k3, scope(3))

	_, ok := c.Get(ctx, k2)
	assert.False(t, ok)
	_, ok = c.Get(ctx, k1)
	assert.True(t, ok)
	_, ok = c.Get(ctx, k3)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, c.indexed("s1"), "evicted key is dropped from the index")
}

func TestMetricCache_InvalidateTopicDropsLesson(t *testing.T) {
	ctx := context.Background()
	c := NewMetricCache(Config{})

	c.Set(ctx, progress.TopicKey("s1", "tp1"), scope(50))
	c.Set(ctx, progress.LessonKey("s1", "l1"), scope(50))
	c.Set(ctx, progress.DualKey("s1"), progress.CachedMetric{Dual: &progress.DualMetric{}})
	c.Set(ctx, progress.TopicKey("s2", "tp1"), scope(90))

	require.NoError(t, c.Invalidate(ctx, "s1", progress.ScopeTopic))

	_, ok := c.Get(ctx, progress.TopicKey("s1", "tp1"))
	assert.False(t, ok)
	_, ok = c.Get(ctx, progress.LessonKey("s1", "l1"))
	assert.False(t, ok, "lesson depends on topic data")
	_, ok = c.Get(ctx, progress.DualKey("s1"))
	assert.True(t, ok)
	_, ok = c.Get(ctx, progress.TopicKey("s2", "tp1"))
	assert.True(t, ok, "other students untouched")
}

func TestMetricCache_InvalidateAll(t *testing.T) {
	ctx := context.Background()
	c := NewMetricCache(Config{})
	c.Set(ctx, progress.TopicKey("s1", "tp1"), scope(50))
	c.Set(ctx, progress.DualKey("s1"), progress.CachedMetric{Dual: &progress.DualMetric{}})

	require.NoError(t, c.Invalidate(ctx, "s1"))
	assert.Zero(t, c.Len())
	assert.Zero(t, c.indexed("s1"))

	require.NoError(t, c.Invalidate(ctx, "unknown"))
}

func TestMetricCache_GenerationCountsInvalidations(t *testing.T) {
	ctx := context.Background()
	c := NewMetricCache(Config{})
	assert.Zero(t, c.Generation("s1"))

	require.NoError(t, c.Invalidate(ctx, "s1", progress.ScopeTopic))
	require.NoError(t, c.Invalidate(ctx, "s1", progress.ScopeDual))
	assert.Equal(t, uint64(2), c.Generation("s1"))
	assert.Zero(t, c.Generation("s2"))

	c.Set(ctx, progress.TopicKey("s1", "tp1"), scope(50))
	assert.Equal(t, uint64(2), c.Generation("s1"), "writes to the cache do not move it")
}

func TestMetricCache_Purge(t *testing.T) {
	ctx := context.Background()
	c := NewMetricCache(Config{})
	c.Set(ctx, progress.TopicKey("s1", "tp1"), scope(50))
	c.Set(ctx, progress.DualKey("s2"), progress.CachedMetric{Dual: &progress.DualMetric{}})

	c.Purge()
	assert.Zero(t, c.Len())
	assert.Zero(t, c.indexed("s1"))
	assert.Zero(t, c.indexed("s2"))
}

func TestMetricCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewMetricCache(Config{MaxEntries: 64})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			student := fmt.Sprintf("s%d", w%3)
			for i := 0; i < 200; i++ {
				key := progress.TopicKey(student, fmt.Sprintf("tp%d", i%20))
				c.Set(ctx, key, scope(float64(i)))
				c.Get(ctx, key)
				if i%25 == 0 {
					_ = c.Invalidate(ctx, student, progress.ScopeTopic)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 64)
}

package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/moby/locker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrack/progress-engine/internal/domain/alert"
	"github.com/edutrack/progress-engine/internal/domain/shared"
	"github.com/edutrack/progress-engine/pkg/logger"
	"github.com/edutrack/progress-engine/pkg/timeutil"
)

func TestCheckAccuracyAlert_RepeatedBreachUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := f.alertHandler()

	first := h.Handle(ctx, CheckAccuracyAlertCommand{StudentID: "s1", Accuracy: ptr(65), Threshold: 70, TopicID: "tg"})
	require.NotNil(t, first)
	second := h.Handle(ctx, CheckAccuracyAlertCommand{StudentID: "s1", Accuracy: ptr(62.5), Threshold: 70, TopicID: "tg"})
	require.NotNil(t, second)

	assert.Equal(t, first.ID, second.ID)
	open := f.unresolved(t, "t1")
	require.Len(t, open, 1)
	assert.Equal(t, 62.5, open[0].Accuracy)
	assert.Equal(t, "tg", open[0].TopicID)
	assert.Equal(t, []shared.EventType{shared.EventAlertOpened, shared.EventAlertUpdated}, f.events.types())
}

func TestCheckAccuracyAlert_RecoveryThenNewBreach(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := f.alertHandler()
	cmd := CheckAccuracyAlertCommand{StudentID: "s1", Threshold: 70, TopicID: "tg"}

	cmd.Accuracy = ptr(65)
	opened := h.Handle(ctx, cmd)
	require.NotNil(t, opened)

	cmd.Accuracy = ptr(75)
	resolved := h.Handle(ctx, cmd)
	require.NotNil(t, resolved)
	assert.True(t, resolved.Resolved)

	stored, err := f.store.Alerts().GetByID(ctx, opened.ID)
	require.NoError(t, err)
	assert.True(t, stored.Resolved)
	require.NotNil(t, stored.ResolvedAt)
	assert.Equal(t, now, *stored.ResolvedAt)

	cmd.Accuracy = ptr(60)
	reopened := h.Handle(ctx, cmd)
	require.NotNil(t, reopened)
	assert.NotEqual(t, opened.ID, reopened.ID, "resolved alerts are never reopened")

	open := f.unresolved(t, "t1")
	require.Len(t, open, 1)
	assert.Equal(t, reopened.ID, open[0].ID)

	closed, err := f.store.Alerts().List(ctx, alert.ListFilter{TenantID: "t1", Resolved: true})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, opened.ID, closed[0].ID)
}

func TestCheckAccuracyAlert_NoChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := f.alertHandler()

	assert.Nil(t, h.Handle(ctx, CheckAccuracyAlertCommand{StudentID: "s1", Threshold: 70}), "nil accuracy")
	assert.Nil(t, h.Handle(ctx, CheckAccuracyAlertCommand{StudentID: "s1", Accuracy: ptr(70), Threshold: 70}), "equal is not a breach")
	assert.Nil(t, h.Handle(ctx, CheckAccuracyAlertCommand{StudentID: "s1", Accuracy: ptr(90), Threshold: 70}), "recovery without alert")
	assert.Nil(t, h.Handle(ctx, CheckAccuracyAlertCommand{Accuracy: ptr(10), Threshold: 70}), "missing student")

	assert.Empty(t, f.unresolved(t, "t1"))
	assert.Empty(t, f.events.types())
}

func TestCheckAccuracyAlert_ScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := f.alertHandler()

	require.NotNil(t, h.Handle(ctx, CheckAccuracyAlertCommand{StudentID: "s1", Accuracy: ptr(50), Threshold: 70, TopicID: "tg"}))
	require.NotNil(t, h.Handle(ctx, CheckAccuracyAlertCommand{StudentID: "s1", Accuracy: ptr(50), Threshold: 70, LessonID: "lg"}))
	require.NotNil(t, h.Handle(ctx, CheckAccuracyAlertCommand{StudentID: "s1", Accuracy: ptr(50), Threshold: 70}))

	assert.Len(t, f.unresolved(t, "t1"), 3)
}

func TestCheckAccuracyAlert_ConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := f.alertHandler()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Handle(ctx, CheckAccuracyAlertCommand{StudentID: "s1", Accuracy: ptr(float64(40 + i)), Threshold: 70, TopicID: "tg"})
		}(i)
	}
	wg.Wait()

	assert.Len(t, f.unresolved(t, "t1"), 1)
	// The last holder released the key's entry.
	assert.ErrorIs(t, h.locks.Unlock(lockName(alert.Key{StudentID: "s1", TopicID: "tg"})), locker.ErrNoSuchLock)
}

func TestCheckAccuracyAlert_CreateConflictUpdatesWinner(t *testing.T) {
	winner := &alert.Alert{ID: "winner", StudentID: "s1", TopicID: "tg", Accuracy: 60, Threshold: 70}
	lookups := 0
	var updated *alert.Alert

	repo := &stubAlerts{
		findUnresolved: func(alert.Key) (*alert.Alert, error) {
			lookups++
			if lookups == 1 {
				return nil, shared.ErrAlertNotFound
			}
			return winner, nil
		},
		create: func(*alert.Alert) error { return shared.ErrAlertAlreadyExists },
		update: func(a *alert.Alert) error { updated = a; return nil },
	}
	h := NewCheckAccuracyAlertHandler(repo, nil, timeutil.FixedClock(now), logger.NewNop())

	got := h.Handle(context.Background(), CheckAccuracyAlertCommand{StudentID: "s1", Accuracy: ptr(55), Threshold: 70, TopicID: "tg"})
	require.NotNil(t, got)
	assert.Equal(t, "winner", got.ID)
	require.NotNil(t, updated)
	assert.Equal(t, 55.0, updated.Accuracy)
	assert.Equal(t, now, updated.UpdatedAt)
}

func TestCheckAccuracyAlert_StorageErrorsAreSwallowed(t *testing.T) {
	ctx := context.Background()
	cmd := CheckAccuracyAlertCommand{StudentID: "s1", Accuracy: ptr(10), Threshold: 70}
	open := &alert.Alert{ID: "x", StudentID: "s1"}

	tests := []struct {
		name string
		repo *stubAlerts
		acc  float64
	}{
		{"lookup fails", &stubAlerts{}, 10},
		{"create fails", &stubAlerts{
			findUnresolved: func(alert.Key) (*alert.Alert, error) { return nil, shared.ErrAlertNotFound },
		}, 10},
		{"update fails", &stubAlerts{
			findUnresolved: func(alert.Key) (*alert.Alert, error) { return open, nil },
		}, 10},
		{"resolve fails", &stubAlerts{
			findUnresolved: func(alert.Key) (*alert.Alert, error) { return &alert.Alert{ID: "y"}, nil },
		}, 95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCheckAccuracyAlertHandler(tt.repo, nil, timeutil.FixedClock(now), nil)
			c := cmd
			c.Accuracy = ptr(tt.acc)
			assert.NotPanics(t, func() {
				assert.Nil(t, h.Handle(ctx, c))
			})
		})
	}
}

func TestAlertLocks_SerializePerKey(t *testing.T) {
	h := NewCheckAccuracyAlertHandler(&stubAlerts{}, nil, nil, nil)
	k1 := lockName(alert.Key{StudentID: "s1", TopicID: "t"})
	k2 := lockName(alert.Key{StudentID: "s1", LessonID: "t"})
	require.NotEqual(t, k1, k2, "topic and lesson scopes never share a lock")

	h.locks.Lock(k1)
	// A different key is not blocked.
	h.locks.Lock(k2)
	require.NoError(t, h.locks.Unlock(k2))

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		h.locks.Lock(k1)
		close(acquired)
		_ = h.locks.Unlock(k1)
		close(released)
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}
	require.NoError(t, h.locks.Unlock(k1))
	<-acquired
	<-released

	assert.ErrorIs(t, h.locks.Unlock(k1), locker.ErrNoSuchLock, "entry is dropped with its last holder")
}

package messaging

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrack/progress-engine/internal/domain/shared"
)

func alertEvent(t shared.EventType) shared.Event {
	return shared.NewAlertEvent(t, "al1", "s1", "t1", "", 65, 70, time.Unix(0, 0))
}

func TestInMemoryEventBus_Sync(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	var opened, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventAlertOpened, func(e shared.Event) error {
		opened = append(opened, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(alertEvent(shared.EventAlertOpened)))
	require.NoError(t, bus.Publish(alertEvent(shared.EventAlertResolved)))

	assert.Equal(t, []shared.EventType{shared.EventAlertOpened}, opened)
	assert.Equal(t, []shared.EventType{shared.EventAlertOpened, shared.EventAlertResolved}, all)
	assert.Equal(t, int64(2), bus.Metrics().Snapshot().TotalPublished)
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	var reached bool
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("bad handler") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { reached = true; return nil }))

	assert.NoError(t, bus.Publish(alertEvent(shared.EventAlertUpdated)))
	assert.True(t, reached)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(3), snap.TotalHandlerExecs)
	assert.Equal(t, int64(2), snap.HandlerFailures)
}

func TestInMemoryEventBus_AsyncDrainsOnClose(t *testing.T) {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = true
	cfg.WorkerPoolSize = 2
	bus := NewInMemoryEventBus(cfg)

	var (
		count atomic.Int32
		wg    sync.WaitGroup
	)
	wg.Add(5)
	require.NoError(t, bus.Subscribe(shared.EventProgressLogged, func(shared.Event) error {
		count.Add(1)
		wg.Done()
		return nil
	}))
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewProgressLoggedEvent("l", "s1", "a1", "2024-03-01", 3, time.Now())))
	}
	wg.Wait()
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(5), count.Load())
	assert.ErrorIs(t, bus.Publish(alertEvent(shared.EventAlertOpened)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBus_RejectsNil(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	assert.Error(t, bus.Subscribe(shared.EventAlertOpened, nil))
	assert.Error(t, bus.Publish(nil))
}

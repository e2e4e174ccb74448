package events

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenariokit/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Options{Level: "error", Writer: io.Discard})
	require.NoError(t, err)
	return log
}

func startBus(t *testing.T) *Bus {
	t.Helper()
	bus := NewBus(0, testLogger(t))
	go func() {
		_ = bus.Process(context.Background())
	}()
	t.Cleanup(bus.Stop)
	return bus
}

func TestBusDeliversInPublishOrder(t *testing.T) {
	bus := startBus(t)

	var mu sync.Mutex
	var seen []int
	bus.Subscribe("task.started", func(evt Event) {
		mu.Lock()
		seen = append(seen, evt.Data["seq"].(int))
		mu.Unlock()
	})

	const n = 50
	for i := 0; i < n; i++ {
		bus.Publish("task.started", map[string]any{"seq": i}, "test", "")
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == n
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, got := range seen {
		require.Equal(t, i, got, "events must arrive in publish order")
	}
}

func TestBusInvokesAllSubscribersForType(t *testing.T) {
	bus := startBus(t)

	var mu sync.Mutex
	calls := map[string]int{}
	for _, name := range []string{"first", "second", "third"} {
		name := name
		bus.Subscribe("task.completed", func(Event) {
			mu.Lock()
			calls[name]++
			mu.Unlock()
		})
	}
	bus.Subscribe("task.failed", func(Event) {
		mu.Lock()
		calls["wrong_type"]++
		mu.Unlock()
	})

	bus.Publish("task.completed", nil, "test", "")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls["first"] == 1 && calls["second"] == 1 && calls["third"] == 1
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls["wrong_type"], "exact-type matching only")
}

func TestBusIsolatesPanickingSubscriber(t *testing.T) {
	bus := startBus(t)

	var mu sync.Mutex
	var survived []string
	bus.Subscribe("file.processing_failed", func(Event) {
		panic("subscriber bug")
	})
	bus.Subscribe("file.processing_failed", func(evt Event) {
		mu.Lock()
		survived = append(survived, evt.CorrelationID)
		mu.Unlock()
	})

	bus.Publish("file.processing_failed", nil, "test", "corr-1")
	bus.Publish("file.processing_failed", nil, "test", "corr-2")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(survived) == 2
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"corr-1", "corr-2"}, survived)
}

func TestBusGeneratesCorrelationID(t *testing.T) {
	bus := startBus(t)

	got := make(chan Event, 1)
	bus.Subscribe("task.timeout", func(evt Event) { got <- evt })
	bus.Publish("task.timeout", nil, "test", "")

	select {
	case evt := <-got:
		assert.NotEmpty(t, evt.CorrelationID)
		assert.Equal(t, "test", evt.Source)
		assert.False(t, evt.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBusStopDrainsQueue(t *testing.T) {
	bus := NewBus(64, testLogger(t))

	var mu sync.Mutex
	count := 0
	bus.Subscribe("task.started", func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	for i := 0; i < 10; i++ {
		bus.Publish("task.started", map[string]any{"seq": i}, "test", "")
	}
	bus.Stop()

	err := bus.Process(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, count, "queued events must be delivered before exit")
}

func TestBusStopIsIdempotent(t *testing.T) {
	bus := NewBus(0, testLogger(t))
	bus.Stop()
	assert.NotPanics(t, bus.Stop)
}

func TestBusPublishAfterStopDoesNotBlock(t *testing.T) {
	bus := NewBus(1, testLogger(t))
	bus.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish("task.started", map[string]any{"seq": fmt.Sprint(i)}, "test", "")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked after stop")
	}
}

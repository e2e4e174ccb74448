package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agilira/go-timecache"
	"github.com/google/uuid"

	"scenariokit/internal/logger"
)

// Event is one lifecycle notification published on the bus. Payloads are
// plain mappings; consumers must not assume fields beyond those documented
// per event type.
type Event struct {
	Type          string
	Data          map[string]any
	Source        string
	CorrelationID string
	Timestamp     time.Time
}

// Callback consumes one event. Callbacks run on the bus's consumer goroutine,
// one event at a time, in publish order.
type Callback func(Event)

const defaultQueueSize = 256

// Bus is an asynchronous publish/subscribe channel between plugins and
// observers interested in lifecycle telemetry. Publishing only pays the cost
// of enqueueing; delivery happens on a single consumer goroutine started via
// Process.
type Bus struct {
	mu    sync.RWMutex
	subs  map[string][]Callback
	queue chan Event
	stop  chan struct{}
	once  sync.Once
	log   *logger.Logger
}

// NewBus creates a bus with the given queue capacity (0 uses the default).
func NewBus(queueSize int, log *logger.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Bus{
		subs:  make(map[string][]Callback),
		queue: make(chan Event, queueSize),
		stop:  make(chan struct{}),
		log:   log.WithComponent("event_bus"),
	}
}

// Subscribe registers a callback for an exact event-type string. Multiple
// subscribers per type are allowed and all are invoked.
func (b *Bus) Subscribe(eventType string, cb Callback) {
	if cb == nil {
		return
	}
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], cb)
	b.mu.Unlock()
}

// Publish enqueues an event. An empty correlation ID is replaced with a
// generated one so every event stays traceable.
func (b *Bus) Publish(eventType string, data map[string]any, source, correlationID string) {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	if data == nil {
		data = map[string]any{}
	}
	evt := Event{
		Type:          eventType,
		Data:          data,
		Source:        source,
		CorrelationID: correlationID,
		Timestamp:     timecache.CachedTime(),
	}

	select {
	case <-b.stop:
		b.log.Debug(fmt.Sprintf("dropping %s event published after stop", eventType))
	case b.queue <- evt:
	}
}

// Process consumes events until Stop is called or ctx is cancelled. It is
// intended to be started exactly once per bus, via the dispatcher's
// fire-and-forget path. A subscriber that panics is isolated and logged;
// later events are still delivered.
func (b *Bus) Process(ctx context.Context) error {
	for {
		select {
		case evt := <-b.queue:
			b.dispatch(evt)
		case <-b.stop:
			b.drain()
			return nil
		case <-ctx.Done():
			b.drain()
			return ctx.Err()
		}
	}
}

// Stop signals the processing loop to drain its queue and exit. Safe to call
// more than once.
func (b *Bus) Stop() {
	b.once.Do(func() {
		close(b.stop)
	})
}

func (b *Bus) drain() {
	for {
		select {
		case evt := <-b.queue:
			b.dispatch(evt)
		default:
			return
		}
	}
}

func (b *Bus) dispatch(evt Event) {
	b.mu.RLock()
	callbacks := append([]Callback(nil), b.subs[evt.Type]...)
	b.mu.RUnlock()

	for _, cb := range callbacks {
		b.invoke(cb, evt)
	}
}

func (b *Bus) invoke(cb Callback, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error(fmt.Errorf("%v", r), fmt.Sprintf("subscriber panicked on %s event", evt.Type))
		}
	}()
	cb(evt)
}

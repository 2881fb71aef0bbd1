package orchestrator

import (
	"sync"

	"github.com/gammazero/workerpool"
)

// EventType enumerates the orchestrator's lifecycle events.
type EventType int

const (
	ProcessStarted EventType = iota
	IntentParsed
	PlanBuilt
	SearchExecuted
	ArtifactGenerated
	OptimizationSuggested
	ProcessCompleted
	ErrorOccurred
	CancellationRequested
	ProcessCancelled
	ProcessCheckpoint
)

// Event is one published occurrence, carrying a free-form payload.
type Event struct {
	Type EventType
	Data any
}

type subscription struct {
	callback func(Event)
	pool     *workerpool.WorkerPool // nil for synchronous subscribers
}

// EventBus fans events out to subscribers registered per EventType.
type EventBus struct {
	mu          sync.Mutex
	subscribers map[EventType][]*subscription
}

// NewEventBus builds an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[EventType][]*subscription)}
}

// Subscribe registers a callback for an event type. Async subscribers
// each get their own single-worker pool so publish order is preserved
// per subscriber without ever blocking the publisher.
func (b *EventBus) Subscribe(eventType EventType, callback func(Event), async bool) {
	sub := &subscription{callback: callback}
	if async {
		sub.pool = workerpool.New(1)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], sub)
}

// Publish delivers an event to every subscriber of its type. Synchronous
// subscribers run inline, in registration order; asynchronous ones are
// submitted to their own single-worker pool.
func (b *EventBus) Publish(eventType EventType, data any) {
	b.mu.Lock()
	subs := append([]*subscription(nil), b.subscribers[eventType]...)
	b.mu.Unlock()

	ev := Event{Type: eventType, Data: data}
	for _, sub := range subs {
		if sub.pool == nil {
			sub.callback(ev)
			continue
		}
		sub.pool.Submit(func() { sub.callback(ev) })
	}
}

// StopWait drains and stops every async subscriber pool.
func (b *EventBus) StopWait() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subscribers {
		for _, sub := range subs {
			if sub.pool != nil {
				sub.pool.StopWait()
			}
		}
	}
}

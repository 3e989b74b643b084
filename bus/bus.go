package bus

import (
	"context"
	"sync"

	"github.com/linanwx/sharebridge/logger"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event *Event)

// subscriber owns a queue drained by its own goroutine, so each handler sees
// events in publish order.
type subscriber struct {
	id    uint64
	types map[EventType]struct{} // empty means every type
	fn    Handler
	queue chan *Event
}

func (s *subscriber) wants(t EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Bus fans share lifecycle events out to subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	nextID uint64
	buffer int
	closed bool
	wg     sync.WaitGroup
}

// New creates a bus whose subscribers each queue up to bufferSize events.
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		subs:   make(map[uint64]*subscriber),
		buffer: bufferSize,
	}
}

// Subscribe registers fn for the given event types, or for every type when
// none are given. The returned func removes the subscription; events already
// queued for it are still handled.
func (b *Bus) Subscribe(fn Handler, types ...EventType) (cancel func()) {
	sub := &subscriber{
		fn:    fn,
		types: make(map[EventType]struct{}, len(types)),
		queue: make(chan *Event, b.buffer),
	}
	for _, t := range types {
		sub.types[t] = struct{}{}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	b.wg.Add(1)
	b.mu.Unlock()

	go b.run(sub)
	logger.Debug("subscription added", "id", sub.id, "types", types)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub.id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.queue)
	logger.Debug("subscription removed", "id", id)
}

func (b *Bus) run(sub *subscriber) {
	defer b.wg.Done()
	ctx := context.Background()
	for event := range sub.queue {
		b.handle(ctx, sub, event)
	}
}

func (b *Bus) handle(ctx context.Context, sub *subscriber, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panic", "subscription", sub.id, "type", event.Type, "panic", r)
		}
	}()
	sub.fn(ctx, event)
}

// Publish queues event for every matching subscriber. A subscriber whose
// queue is full misses the event.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		logger.Warn("bus closed, event dropped", "type", event.Type)
		return
	}
	for _, sub := range b.subs {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.queue <- event:
		default:
			logger.Warn("subscriber queue full, event dropped", "subscription", sub.id, "type", event.Type)
		}
	}
}

// Emit builds and publishes an event, logging marshal failures instead of
// returning them. A nil bus is a no-op.
func (b *Bus) Emit(eventType EventType, source string, data any) {
	if b == nil {
		return
	}
	event, err := NewEvent(eventType, source, data)
	if err != nil {
		logger.Warn("event marshal failed", "type", eventType, "err", err)
		return
	}
	b.Publish(event)
}

// Close stops accepting events and waits until every queued event has been
// handled. Safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		for id, sub := range b.subs {
			delete(b.subs, id)
			close(sub.queue)
		}
	}
	b.mu.Unlock()
	b.wg.Wait()
}

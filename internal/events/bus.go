package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Bus distributes planning events to subscribers.
//
// All methods are safe for concurrent use. Publish never blocks on a
// slow subscriber: when a subscriber's buffer is full the event is
// dropped for that subscriber only and counted.
type Bus interface {
	// Publish sends an event to every matching subscriber. It returns
	// an error only once the bus is closed.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a subscriber. The returned cleanup function
	// must be called to release the subscription. bufferSize zero uses
	// the bus default.
	Subscribe(ctx context.Context, filter Filter, bufferSize int) (<-chan Event, func())

	// Close shuts the bus down and closes every subscriber channel.
	Close() error
}

// DropHandler is invoked when an event is dropped for a slow
// subscriber.
type DropHandler func(event Event, subscriberID string)

// busOptions holds DefaultBus configuration.
type busOptions struct {
	defaultBufferSize int
	dropHandler       DropHandler
}

// Option configures a DefaultBus.
type Option func(*busOptions)

// WithDefaultBufferSize sets the buffer size used when a subscriber
// asks for the default.
func WithDefaultBufferSize(size int) Option {
	return func(o *busOptions) {
		if size > 0 {
			o.defaultBufferSize = size
		}
	}
}

// WithDropHandler installs a callback for dropped events.
func WithDropHandler(h DropHandler) Option {
	return func(o *busOptions) {
		if h != nil {
			o.dropHandler = h
		}
	}
}

// DefaultBus implements Bus with one buffered channel per subscriber
// and non-blocking sends.
type DefaultBus struct {
	mu          sync.RWMutex
	subscribers map[int]*subscription
	nextID      int
	options     busOptions
	closed      bool
	dropped     atomic.Int64
}

type subscription struct {
	id     int
	ch     chan Event
	filter Filter
	ctx    context.Context
}

// NewBus creates a DefaultBus.
func NewBus(opts ...Option) *DefaultBus {
	options := busOptions{
		defaultBufferSize: 64,
		dropHandler:       func(Event, string) {},
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &DefaultBus{
		subscribers: make(map[int]*subscription),
		options:     options,
	}
}

// Publish implements Bus.
func (b *DefaultBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("event bus is closed")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, sub := range b.subscribers {
		select {
		case <-sub.ctx.Done():
			continue
		default:
		}
		if !sub.filter.Matches(event) {
			continue
		}

		select {
		case sub.ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			b.dropped.Add(1)
			b.options.dropHandler(event, fmt.Sprintf("subscriber-%d", sub.id))
		}
	}
	return nil
}

// Subscribe implements Bus.
func (b *DefaultBus) Subscribe(ctx context.Context, filter Filter, bufferSize int) (<-chan Event, func()) {
	if bufferSize <= 0 {
		bufferSize = b.options.defaultBufferSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{
		id:     b.nextID,
		ch:     make(chan Event, bufferSize),
		filter: filter,
		ctx:    ctx,
	}
	b.nextID++

	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subscribers[sub.id] = sub

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subscribers[sub.id]; ok {
				delete(b.subscribers, sub.id)
				close(sub.ch)
			}
		})
	}
	return sub.ch, cleanup
}

// Close implements Bus. It is safe to call more than once.
func (b *DefaultBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for id, sub := range b.subscribers {
		delete(b.subscribers, id)
		close(sub.ch)
	}
	return nil
}

// Dropped returns how many events were dropped for slow subscribers.
func (b *DefaultBus) Dropped() int64 {
	return b.dropped.Load()
}

// NopBus discards every event. It is the engine's default when the
// host installs no bus.
type NopBus struct{}

// Publish implements Bus.
func (NopBus) Publish(context.Context, Event) error { return nil }

// Subscribe implements Bus; the returned channel never receives.
func (NopBus) Subscribe(context.Context, Filter, int) (<-chan Event, func()) {
	ch := make(chan Event)
	return ch, func() {}
}

// Close implements Bus.
func (NopBus) Close() error { return nil }

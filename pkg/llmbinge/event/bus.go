package event

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
)

// Bus provides pub/sub event distribution with fan-out support.
type Bus interface {
	// Publish sends an event to all subscribers.
	Publish(ctx context.Context, evt Event) error

	// Subscribe creates a subscription for specific event types.
	Subscribe(types []Type, handler Handler) (Subscription, error)

	// SubscribeAll subscribes to all events.
	SubscribeAll(handler Handler) (Subscription, error)

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	// ID identifies the subscription in OnDrop and OnError callbacks.
	ID() string

	// Unsubscribe removes the subscription. It is safe to call more than once.
	Unsubscribe()

	// Pause temporarily stops delivery. Events published while paused are skipped.
	Pause()

	// Resume continues delivery after pause.
	Resume()

	// IsPaused returns true if the subscription is paused.
	IsPaused() bool
}

// BusConfig configures bus behavior.
type BusConfig struct {
	// BufferSize is the channel buffer size per subscription.
	// Default: 256
	BufferSize int

	// MaxSubscribers limits total subscriptions.
	// Default: 0 (unlimited)
	MaxSubscribers int

	// NonBlocking makes Publish non-blocking (drops events if buffer full).
	// Default: false (blocking)
	NonBlocking bool

	// OnDrop is called when an event is dropped (non-blocking mode).
	OnDrop func(evt Event, subscriberID string)

	// OnError is called when a handler returns an error.
	OnError func(evt Event, subscriberID string, err error)
}

// DefaultBusConfig provides reasonable defaults.
var DefaultBusConfig = BusConfig{
	BufferSize: 256,
}

// LocalBus is an in-memory event bus implementation.
type LocalBus struct {
	config BusConfig

	mu            sync.RWMutex
	subscriptions map[string]*subscription
	byType        map[Type]map[string]*subscription
	wildcards     map[string]*subscription

	nextID  atomic.Int64
	closed  atomic.Bool
	closeCh chan struct{}
}

// Compile-time interface check.
var _ Bus = (*LocalBus)(nil)

// NewBus creates a new local event bus.
func NewBus(config BusConfig) *LocalBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig.BufferSize
	}

	return &LocalBus{
		config:        config,
		subscriptions: make(map[string]*subscription),
		byType:        make(map[Type]map[string]*subscription),
		wildcards:     make(map[string]*subscription),
		closeCh:       make(chan struct{}),
	}
}

type subscription struct {
	id       string
	types    []Type
	handler  Handler
	events   chan Event
	paused   atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
	bus      *LocalBus
}

// Publish sends an event to all matching subscribers.
func (b *LocalBus) Publish(ctx context.Context, evt Event) error {
	if b.closed.Load() {
		return &PublishError{Event: evt, Err: ErrBusClosed}
	}

	b.mu.RLock()
	subs := b.matching(evt.Type)
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.paused.Load() {
			continue
		}

		if b.config.NonBlocking {
			select {
			case sub.events <- evt:
			default:
				if b.config.OnDrop != nil {
					b.config.OnDrop(evt, sub.id)
				}
			}
			continue
		}

		select {
		case sub.events <- evt:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		case <-b.closeCh:
			return &PublishError{Event: evt, Err: ErrBusClosed}
		}
	}

	return nil
}

// Subscribe creates a subscription for specific event types.
func (b *LocalBus) Subscribe(types []Type, handler Handler) (Subscription, error) {
	return b.subscribe(types, handler)
}

// SubscribeAll subscribes to all events.
func (b *LocalBus) SubscribeAll(handler Handler) (Subscription, error) {
	return b.subscribe(nil, handler)
}

func (b *LocalBus) subscribe(types []Type, handler Handler) (*subscription, error) {
	if b.closed.Load() {
		return nil, ErrBusClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.config.MaxSubscribers > 0 && len(b.subscriptions) >= b.config.MaxSubscribers {
		return nil, ErrTooManySubscribers
	}

	sub := &subscription{
		id:      "sub-" + strconv.FormatInt(b.nextID.Add(1), 10),
		types:   types,
		handler: handler,
		events:  make(chan Event, b.config.BufferSize),
		done:    make(chan struct{}),
		bus:     b,
	}

	b.subscriptions[sub.id] = sub
	if len(types) == 0 {
		b.wildcards[sub.id] = sub
	} else {
		for _, t := range types {
			if b.byType[t] == nil {
				b.byType[t] = make(map[string]*subscription)
			}
			b.byType[t][sub.id] = sub
		}
	}

	go sub.process()

	return sub, nil
}

// matching returns all subscriptions for an event type. Caller holds b.mu.
func (b *LocalBus) matching(t Type) []*subscription {
	subs := make([]*subscription, 0, len(b.byType[t])+len(b.wildcards))
	for _, sub := range b.byType[t] {
		subs = append(subs, sub)
	}
	for _, sub := range b.wildcards {
		subs = append(subs, sub)
	}
	return subs
}

// SubscriberCount returns the number of active subscriptions.
func (b *LocalBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}

// Close shuts down the bus. Events still buffered for a subscriber are
// discarded.
func (b *LocalBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(b.closeCh)

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subscriptions {
		sub.stop()
		delete(b.subscriptions, id)
	}
	b.byType = make(map[Type]map[string]*subscription)
	b.wildcards = make(map[string]*subscription)

	return nil
}

func (s *subscription) process() {
	for {
		select {
		case evt := <-s.events:
			if s.paused.Load() {
				continue
			}
			if err := s.handler.Handle(context.Background(), evt); err != nil && s.bus.config.OnError != nil {
				s.bus.config.OnError(evt, s.id, err)
			}

		case <-s.done:
			return
		}
	}
}

func (s *subscription) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// ID implements Subscription.
func (s *subscription) ID() string {
	return s.id
}

// Unsubscribe implements Subscription.
func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	delete(s.bus.subscriptions, s.id)
	delete(s.bus.wildcards, s.id)
	for _, t := range s.types {
		if typeSubs, ok := s.bus.byType[t]; ok {
			delete(typeSubs, s.id)
			if len(typeSubs) == 0 {
				delete(s.bus.byType, t)
			}
		}
	}

	s.stop()
}

// Pause implements Subscription.
func (s *subscription) Pause() {
	s.paused.Store(true)
}

// Resume implements Subscription.
func (s *subscription) Resume() {
	s.paused.Store(false)
}

// IsPaused implements Subscription.
func (s *subscription) IsPaused() bool {
	return s.paused.Load()
}

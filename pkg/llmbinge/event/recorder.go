package event

import (
	"context"
	"sync"
)

// Recorder is a Handler that keeps every event it receives. It is useful
// for tests and for replaying a generation's history.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// Handle implements Handler.
func (r *Recorder) Handle(_ context.Context, evt Event) error {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

// Events returns a copy of the recorded events in arrival order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in arrival order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// WaitFor blocks until an event of type t has been recorded or ctx ends.
func (r *Recorder) WaitFor(ctx context.Context, t Type) (Event, error) {
	for {
		r.mu.Lock()
		for _, e := range r.events {
			if e.Type == t {
				r.mu.Unlock()
				return e, nil
			}
		}
		r.mu.Unlock()

		select {
		case <-r.notify:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type names an event kind.
type Type string

// Generation lifecycle events.
const (
	GenerationStarted   Type = "generation.started"
	GenerationToken     Type = "generation.token"
	GenerationFlushed   Type = "generation.flushed"
	GenerationCompleted Type = "generation.completed"
	GenerationFailed    Type = "generation.failed"
	GenerationAborted   Type = "generation.aborted"
	MapPhase            Type = "map.phase"
)

// Terminal reports whether t ends a generation.
func (t Type) Terminal() bool {
	switch t {
	case GenerationCompleted, GenerationFailed, GenerationAborted:
		return true
	}
	return false
}

// Event is a single notification about a node's generation.
// Events are immutable once published.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	NodeID    string    `json:"nodeId"`
	SessionID string    `json:"sessionId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// Payloads carried by the lifecycle events.
type (
	// StartedPayload accompanies GenerationStarted.
	StartedPayload struct {
		Kind   string `json:"kind"`
		Topic  string `json:"topic"`
		Aspect string `json:"aspect,omitempty"`
	}

	// TokenPayload accompanies GenerationToken.
	TokenPayload struct {
		Token string `json:"token"`
		Chars int    `json:"chars"`
	}

	// FlushedPayload accompanies GenerationFlushed.
	FlushedPayload struct {
		Chars int    `json:"chars"`
		Error string `json:"error,omitempty"`
	}

	// CompletedPayload accompanies GenerationCompleted.
	CompletedPayload struct {
		Chars      int     `json:"chars"`
		DurationMs float64 `json:"durationMs"`
	}

	// FailedPayload accompanies GenerationFailed.
	FailedPayload struct {
		Error        string `json:"error"`
		PartialChars int    `json:"partialChars"`
		Retryable    bool   `json:"retryable"`
	}

	// PhasePayload accompanies MapPhase.
	PhasePayload struct {
		Phase string `json:"phase"`
	}
)

// Option configures event creation.
type Option func(*Event)

// WithSession sets the session the node belongs to.
func WithSession(id string) Option {
	return func(e *Event) {
		e.SessionID = id
	}
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) Option {
	return func(e *Event) {
		e.Timestamp = t
	}
}

// WithID sets a specific event ID (default: auto-generated UUID).
func WithID(id string) Option {
	return func(e *Event) {
		e.ID = id
	}
}

// New creates an event of the given type for nodeID.
func New(t Type, nodeID string, payload any, opts ...Option) Event {
	evt := Event{
		ID:        uuid.New().String(),
		Type:      t,
		NodeID:    nodeID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
	for _, opt := range opts {
		opt(&evt)
	}
	return evt
}

// PayloadBytes returns the JSON encoding of the payload, or nil when it
// cannot be encoded.
func (e Event) PayloadBytes() []byte {
	if e.Payload == nil {
		return nil
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil
	}
	return data
}

// Handler processes events delivered by a Bus.
type Handler interface {
	Handle(ctx context.Context, evt Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

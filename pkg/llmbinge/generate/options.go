package generate

import (
	"context"
	"log/slog"
	"time"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/event"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/observability"
)

// DefaultDebounce is the coalescing window for persistence flushes.
const DefaultDebounce = 500 * time.Millisecond

type settings struct {
	debounce   time.Duration
	maxPending int
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
	bus        event.Bus
}

func newSettings(opts []Option) settings {
	s := settings{
		debounce: DefaultDebounce,
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures an orchestrator.
type Option func(*settings)

// WithDebounce sets the coalescing window. The window opens at the first
// unflushed token and is not extended by later ones. Zero or less flushes
// after every token.
func WithDebounce(d time.Duration) Option {
	return func(s *settings) {
		s.debounce = d
	}
}

// WithMaxPendingTokens forces a flush once n tokens are unflushed, even
// inside the debounce window. Zero disables the bound.
func WithMaxPendingTokens(n int) Option {
	return func(s *settings) {
		s.maxPending = n
	}
}

// WithLogger sets the logger. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(s *settings) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSpans sets the span manager.
func WithSpans(sm observability.SpanManager) Option {
	return func(s *settings) {
		if sm != nil {
			s.spans = sm
		}
	}
}

// WithEventBus publishes lifecycle events to bus.
func WithEventBus(bus event.Bus) Option {
	return func(s *settings) {
		s.bus = bus
	}
}

// publish sends an event if a bus is configured. Delivery failures are
// logged and otherwise ignored.
func (s settings) publish(t event.Type, nodeID, sessionID string, payload any) {
	if s.bus == nil {
		return
	}
	evt := event.New(t, nodeID, payload, event.WithSession(sessionID))
	if err := s.bus.Publish(context.Background(), evt); err != nil && s.logger != nil {
		s.logger.Debug("event publish failed",
			slog.String("type", string(t)),
			slog.String("node_id", nodeID),
			slog.String("error", err.Error()),
		)
	}
}

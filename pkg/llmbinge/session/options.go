package session

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/observability"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for persistence failures. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics sets the recorder for storage operation metrics.
func WithMetrics(metrics observability.MetricsRecorder) Option {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// WithClock overrides the time source used for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

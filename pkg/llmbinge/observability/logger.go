// Package observability provides structured logging, metrics and tracing
// for llmbinge generations and persistence.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
// Every logging helper accepts a nil logger.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// NewLogger builds a logger writing to w. Level is one of debug, info, warn
// or error; format is text or json.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log format %q: want text or json", format)
	}
}

// EnrichLogger adds session and node context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "sess-1", "node-9")
//	enriched.Info("streaming") // includes session_id, node_id
func EnrichLogger(logger *slog.Logger, sessionID, nodeID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("session_id", sessionID),
		slog.String("node_id", nodeID),
	)
}

// LogGenerationStart logs the start of a generation.
func LogGenerationStart(logger *slog.Logger, nodeID, kind, topic string) {
	if logger == nil {
		return
	}
	logger.Info("generation starting",
		slog.String("node_id", nodeID),
		slog.String("kind", kind),
		slog.String("topic", topic),
	)
}

// LogGenerationComplete logs a finished generation.
func LogGenerationComplete(logger *slog.Logger, nodeID string, durationMs float64, tokens, chars int) {
	if logger == nil {
		return
	}
	logger.Info("generation completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("tokens", tokens),
		slog.Int("chars", chars),
	)
}

// LogGenerationError logs a failed generation. partialChars is the amount of
// text kept on the node.
func LogGenerationError(logger *slog.Logger, nodeID string, err error, partialChars int) {
	if logger == nil {
		return
	}
	logger.Error("generation failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
		slog.Int("partial_chars", partialChars),
	)
}

// LogGenerationAborted logs a generation cancelled by its caller.
func LogGenerationAborted(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Info("generation aborted",
		slog.String("node_id", nodeID),
	)
}

// LogMapPhase logs a map generation phase change.
func LogMapPhase(logger *slog.Logger, nodeID, phase string) {
	if logger == nil {
		return
	}
	logger.Debug("map phase",
		slog.String("node_id", nodeID),
		slog.String("phase", phase),
	)
}

// LogFlush logs a persisted snapshot of streaming content.
func LogFlush(logger *slog.Logger, nodeID string, chars int) {
	if logger == nil {
		return
	}
	logger.Debug("content flushed",
		slog.String("node_id", nodeID),
		slog.Int("chars", chars),
	)
}

// LogFlushError logs a failed persistence flush (non-fatal).
func LogFlushError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("content flush failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogStorageError logs a failed storage operation (non-fatal).
func LogStorageError(logger *slog.Logger, op, key string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("storage operation failed",
		slog.String("operation", op),
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}

package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindUnknown, "unknown"},
		{KindTransport, "transport"},
		{KindStream, "stream"},
		{KindParse, "parse"},
		{KindStorage, "storage"},
		{KindValidation, "validation"},
		{KindCanceled, "canceled"},
		{Kind(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.expected {
				t.Errorf("Kind(%d).String() = %s, want %s", tt.kind, got, tt.expected)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"nil", nil, KindUnknown},
		{"transport", &TransportError{StatusCode: 500}, KindTransport},
		{"wrapped transport", fmt.Errorf("generate: %w", &TransportError{StatusCode: 401}), KindTransport},
		{"stream", &StreamError{Message: "read failed"}, KindStream},
		{"parse", &ParseError{Message: "no groups"}, KindParse},
		{"storage", &StorageError{Op: "save", Err: errors.New("disk full")}, KindStorage},
		{"validation", &ValidationError{Field: "temperature"}, KindValidation},
		{"canceled", context.Canceled, KindCanceled},
		{"stream caused by cancel", &StreamError{Err: context.Canceled}, KindCanceled},
		{"plain", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.expected {
				t.Errorf("Classify() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"network", &TransportError{Err: errors.New("connection refused")}, true},
		{"429", &TransportError{StatusCode: 429}, true},
		{"502", &TransportError{StatusCode: 502}, true},
		{"401", &TransportError{StatusCode: 401}, false},
		{"400", &TransportError{StatusCode: 400}, false},
		{"stream", &StreamError{Partial: "abc"}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"parse", &ParseError{}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.expected {
				t.Errorf("Retryable() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"status", &TransportError{StatusCode: 503, Body: "overloaded"}, "LLM API error 503: overloaded"},
		{"network", &TransportError{Endpoint: "http://x", Err: errors.New("refused")}, "llm request to http://x failed: refused"},
		{"stream", &StreamError{Message: "body closed"}, "stream error: body closed"},
		{"parse", &ParseError{Message: "missing groups"}, "parse error: missing groups"},
		{"storage keyed", &StorageError{Op: "save node", Key: "n1", Err: errors.New("x")}, "storage save node n1: x"},
		{"storage", &StorageError{Op: "list sessions", Err: errors.New("x")}, "storage list sessions: x"},
		{"validation", &ValidationError{Field: "top_p", Message: "must be at most 1"}, "validation error on top_p: must be at most 1"},
		{"validation no field", &ValidationError{Message: "bad"}, "validation error: bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPartial(t *testing.T) {
	err := fmt.Errorf("generate: %w", &StreamError{Message: "reset", Partial: "Hello wor"})
	if got := Partial(err); got != "Hello wor" {
		t.Errorf("Partial() = %q, want %q", got, "Hello wor")
	}
	if got := Partial(errors.New("x")); got != "" {
		t.Errorf("Partial() = %q, want empty", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &StorageError{Op: "save", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("StorageError should unwrap to its cause")
	}

	streamErr := &StreamError{Err: context.Canceled}
	if !IsCanceled(streamErr) {
		t.Error("IsCanceled should see through StreamError")
	}
}

func TestExcerpt(t *testing.T) {
	if got := Excerpt("abcdef", 3); got != "abc..." {
		t.Errorf("Excerpt() = %q", got)
	}
	if got := Excerpt("ab", 3); got != "ab" {
		t.Errorf("Excerpt() = %q", got)
	}
}

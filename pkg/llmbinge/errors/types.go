package errors

import "fmt"

// TransportError is returned when a request to the completion endpoint
// fails before or instead of producing a stream. StatusCode is zero when
// the failure happened below HTTP (DNS, refused connection, TLS).
type TransportError struct {
	StatusCode int
	Endpoint   string
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("llm request to %s failed: %v", e.Endpoint, e.Err)
		}
		return fmt.Sprintf("llm request to %s failed", e.Endpoint)
	}
	return fmt.Sprintf("LLM API error %d: %s", e.StatusCode, e.Body)
}

// Unwrap returns the underlying network error, if any.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// StreamError indicates the response body could not be read to the end.
// Partial holds the text accumulated before the failure.
type StreamError struct {
	Message string
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stream error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("stream error: %s", e.Message)
}

// Unwrap returns the underlying read error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// ParseError indicates structured data could not be extracted from model
// output.
type ParseError struct {
	Input   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Message)
}

// Unwrap returns the decoder error, if any.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// StorageError wraps a backend failure with the operation and key involved.
type StorageError struct {
	Op  string
	Key string
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

// Unwrap returns the backend error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ValidationError indicates an invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Excerpt shortens s for inclusion in an error.
func Excerpt(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

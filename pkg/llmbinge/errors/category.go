// Package errors defines the error taxonomy shared by the llmbinge packages.
//
// Every failure a caller can observe is one of a small set of types:
//   - TransportError: the endpoint could not be reached or answered non-2xx
//   - StreamError: the response body failed mid-read (carries partial text)
//   - ParseError: model output did not contain the expected structure
//   - StorageError: a persistence backend failed
//   - ValidationError: configuration is out of range
//
// Nothing in llmbinge retries automatically. Retryable only reports whether
// offering the user a retry makes sense.
package errors

import (
	"context"
	"errors"
	"net/http"
)

// Kind classifies an error for display and handling.
type Kind int

const (
	// KindUnknown is any error not produced by llmbinge.
	KindUnknown Kind = iota

	// KindTransport covers network failures and non-2xx responses.
	KindTransport

	// KindStream covers body read failures after the stream started.
	KindStream

	// KindParse covers malformed structured model output.
	KindParse

	// KindStorage covers persistence backend failures.
	KindStorage

	// KindValidation covers invalid configuration.
	KindValidation

	// KindCanceled means the operation was aborted by its caller.
	KindCanceled
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStream:
		return "stream"
	case KindParse:
		return "parse"
	case KindStorage:
		return "storage"
	case KindValidation:
		return "validation"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Classify determines the kind of err by walking its chain.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	if IsCanceled(err) {
		return KindCanceled
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return KindTransport
	}

	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		return KindStream
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return KindParse
	}

	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return KindStorage
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return KindValidation
	}

	return KindUnknown
}

// IsCanceled reports whether err stems from a cancelled context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Retryable reports whether repeating the same request might succeed.
func Retryable(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		switch transportErr.StatusCode {
		case 0, http.StatusTooManyRequests, http.StatusRequestTimeout:
			return true
		default:
			return transportErr.StatusCode >= 500
		}
	}

	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}

// Partial returns the text a failed stream produced before failing.
func Partial(err error) string {
	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		return streamErr.Partial
	}
	return ""
}

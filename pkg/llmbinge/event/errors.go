package event

import (
	"errors"
	"fmt"
)

// ErrBusClosed is returned when publishing to or subscribing on a closed bus.
var ErrBusClosed = errors.New("event bus closed")

// ErrTooManySubscribers is returned when BusConfig.MaxSubscribers is reached.
var ErrTooManySubscribers = errors.New("subscriber limit reached")

// PublishError reports a failed delivery.
type PublishError struct {
	Event Event
	Err   error
}

// Error implements error interface.
func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s event %s: %v", e.Event.Type, e.Event.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *PublishError) Unwrap() error {
	return e.Err
}

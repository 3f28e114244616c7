package events

import (
	"errors"
	"fmt"
	"reflect"
	"time"
)

// ErrNotBound is returned by Off when the handle no longer names a listener.
var ErrNotBound = errors.New("events: listener not bound")

// OffError wraps a failed Off with the handle involved.
type OffError struct {
	Handle Handle
	Err    error
}

func (e *OffError) Error() string {
	return fmt.Sprintf("events: off %s #%d: %v", typeName(e.Handle.typ), e.Handle.id, e.Err)
}

func (e *OffError) Unwrap() error { return e.Err }

// TimeoutError is returned when Await gives up on an event.
type TimeoutError struct {
	Event   reflect.Type
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("events: timed out after %s waiting for %s", e.Timeout, typeName(e.Event))
}

// PayloadError means a trigger payload cannot stand in for the event type.
type PayloadError struct {
	Event reflect.Type
	Got   reflect.Type
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("events: payload of type %s cannot be delivered as %s", e.Got, typeName(e.Event))
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

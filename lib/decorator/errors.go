package decorator

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNotPointer is returned when a value with declarations is not a
	// non-nil pointer.
	ErrNotPointer = errors.New("decorator: decorated value must be a non-nil pointer")

	// ErrNotMethod is returned when a method-only behavior decorates a field.
	ErrNotMethod = errors.New("decorator: member is not a method")

	// ErrSignature is returned when a decorated method has a shape the
	// behavior cannot call.
	ErrSignature = errors.New("decorator: unsupported method signature")
)

// InitError reports a failed Initialize. Rollback holds errors raised while
// destroying the behaviors created before the failure.
type InitError struct {
	Type     reflect.Type
	Member   string
	Behavior string
	Err      error
	Rollback error
}

func (e *InitError) Error() string {
	msg := fmt.Sprintf("decorator: initialize %s", e.Type)
	if e.Member != "" {
		msg += fmt.Sprintf(".%s (%s)", e.Member, e.Behavior)
	}
	msg += ": " + e.Err.Error()
	if e.Rollback != nil {
		msg += "; rollback: " + e.Rollback.Error()
	}
	return msg
}

func (e *InitError) Unwrap() error { return e.Err }

// DestroyError reports a failed Destroyed call.
type DestroyError struct {
	Type reflect.Type
	Err  error
}

func (e *DestroyError) Error() string {
	return fmt.Sprintf("decorator: destroy %s: %v", e.Type, e.Err)
}

func (e *DestroyError) Unwrap() error { return e.Err }

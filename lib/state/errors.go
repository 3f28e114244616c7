package state

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrNotPointer is returned when a value to restore is not a non-nil pointer.
var ErrNotPointer = errors.New("state: restore target must be a non-nil pointer")

// CollisionError means two service/field pairs map to the same snapshot
// slot. Serialization stops and returns no snapshot.
type CollisionError struct {
	Key      string
	Property string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("state: key %q already holds property %q", e.Key, e.Property)
}

// ConvertError means a snapshot value cannot be stored in its field.
type ConvertError struct {
	Key      string
	Property string
	Type     reflect.Type
	Err      error
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("state: restore %s.%s into %s: %v", e.Key, e.Property, e.Type, e.Err)
}

func (e *ConvertError) Unwrap() error { return e.Err }

// IsCollision reports whether err is a CollisionError.
func IsCollision(err error) bool {
	var ce *CollisionError
	return errors.As(err, &ce)
}

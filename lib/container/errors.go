package container

import (
	"errors"
	"fmt"
	"strings"
)

// LockedError is returned when a locked container is asked to build or
// return a service.
type LockedError struct {
	Op string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("container: %s on locked container", e.Op)
}

// FrozenError is returned when a container created locked is modified after
// it was unlocked.
type FrozenError struct {
	Op string
}

func (e *FrozenError) Error() string {
	return fmt.Sprintf("container: %s after unlocking", e.Op)
}

// BindingNotFoundError is returned by Get for a key that was never bound.
type BindingNotFoundError struct {
	Key Key
}

func (e *BindingNotFoundError) Error() string {
	return fmt.Sprintf("container: no binding found for %s", e.Key)
}

// CircularDependencyError reports a dependency cycle. Path starts at the
// first key of the cycle chain and ends with the key seen twice.
type CircularDependencyError struct {
	Path []Key
}

func (e *CircularDependencyError) Error() string {
	names := make([]string, len(e.Path))
	for i, k := range e.Path {
		names[i] = k.String()
	}
	return fmt.Sprintf("container: circular dependency: %s", strings.Join(names, " -> "))
}

// NilProviderError is returned when a nil provider is bound or resolved.
type NilProviderError struct {
	Key Key
}

func (e *NilProviderError) Error() string {
	return fmt.Sprintf("container: nil provider for %s", e.Key)
}

// ConstructionError wraps an error returned by a provider.
type ConstructionError struct {
	Key Key
	Err error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("container: constructing %s: %v", e.Key, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// TypeMismatchError is returned when a bound value does not have the type
// it was requested as.
type TypeMismatchError struct {
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("container: type mismatch: expected %s, got %s", e.Expected, e.Got)
}

// IsConfigurationError reports whether err stems from a wiring mistake:
// locked or frozen containers, missing bindings, nil providers or cycles.
// These are programmer errors and are not worth retrying.
func IsConfigurationError(err error) bool {
	var (
		locked   *LockedError
		frozen   *FrozenError
		notFound *BindingNotFoundError
		circular *CircularDependencyError
		nilProv  *NilProviderError
	)
	return errors.As(err, &locked) ||
		errors.As(err, &frozen) ||
		errors.As(err, &notFound) ||
		errors.As(err, &circular) ||
		errors.As(err, &nilProv)
}

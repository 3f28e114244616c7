package hxioc

import (
	"errors"
	"fmt"

	"github.com/pthm/hxioc/lib/container"
	"github.com/pthm/hxioc/lib/encoding"
)

// Sentinel errors for component operations.
var (
	ErrNotFound         = errors.New("hxioc: component not found")
	ErrNoRoot           = errors.New("hxioc: context carries no root")
	ErrNoRender         = errors.New("hxioc: component has no Render method")
	ErrNoProps          = errors.New("hxioc: component does not accept props")
	ErrDecryptFailed    = errors.New("hxioc: state decryption failed")
	ErrSignatureInvalid = errors.New("hxioc: state signature verification failed")
	ErrInvalidFormat    = errors.New("hxioc: invalid state token")
)

// IsNotFound checks if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDecryptionError checks if err is a decryption or signature error.
func IsDecryptionError(err error) bool {
	return errors.Is(err, ErrDecryptFailed) || errors.Is(err, ErrSignatureInvalid) || errors.Is(err, ErrInvalidFormat)
}

// IsConfigurationError reports wiring mistakes: locked or frozen
// containers, missing bindings and dependency cycles.
func IsConfigurationError(err error) bool {
	return container.IsConfigurationError(err)
}

// HookError reports a lifecycle hook that could not be called or failed.
type HookError struct {
	Component string
	Hook      Hook
	Err       error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hxioc: %s hook %s: %v", e.Component, e.Hook, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// wrapEncodingError maps codec errors onto the package sentinels.
func wrapEncodingError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, encoding.ErrInvalidFormat):
		return fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	case errors.Is(err, encoding.ErrSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
	case errors.Is(err, encoding.ErrDecryptFailed):
		return fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}
	return err
}

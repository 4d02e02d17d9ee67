// Package errors holds the sentinel errors shared across the validator packages,
// plus a helper for turning recovered panics into errors.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrPanicRecovery wraps a value recovered from a panic in a callback or task.
	ErrPanicRecovery = errors.New("recovered from panic")

	// ErrClosed is returned when work is submitted to something that has been closed.
	ErrClosed = errors.New("closed")

	// ErrNoEndpoint is returned when a remote validator has an empty endpoint.
	ErrNoEndpoint = errors.New("validator endpoint is empty")

	// ErrNoVerdict marks a failed result that carried no cause.
	ErrNoVerdict = errors.New("validation produced no verdict")
)

// FromPanic converts a recovered panic value and an optional stack trace into
// an error wrapping ErrPanicRecovery. A nil value yields nil.
func FromPanic(recovered any, stack []byte) error {
	if recovered == nil {
		return nil
	}

	if err, ok := recovered.(error); ok {
		if stack != nil {
			return fmt.Errorf("%w: %w\nstack trace:\n%s", ErrPanicRecovery, err, string(stack))
		}

		return fmt.Errorf("%w: %w", ErrPanicRecovery, err)
	}

	if stack != nil {
		return fmt.Errorf("%w: %v\nstack trace:\n%s", ErrPanicRecovery, recovered, string(stack))
	}

	return fmt.Errorf("%w: %v", ErrPanicRecovery, recovered)
}

package requestcoord

import (
	"errors"
	"fmt"
)

var (
	// ErrRequestCancelled is returned when a request was superseded, its caller was
	// closed, or its context was cancelled
	ErrRequestCancelled = errors.New("request cancelled")
	ErrInvalidRequest   = errors.New("invalid request")
	// ErrWaitTimeout is returned when waiting for an identical in-flight request took too long
	ErrWaitTimeout = errors.New("timed out waiting for in-flight request")
)

var (
	errSuperseded   = errors.New("superseded by a newer request")
	errCallerClosed = errors.New("caller closed")
)

// cancelledError describes why a request was cancelled without exposing the
// underlying cause in the error chain
func cancelledError(cause error) error {
	if cause == nil {
		return ErrRequestCancelled
	}
	return fmt.Errorf("%w: %s", ErrRequestCancelled, cause.Error())
}

// Package orchestrator owns the run queue: a single-worker FIFO that executes
// collection runs one at a time and exposes point-in-time status snapshots.
package orchestrator

import (
	"errors"
	"fmt"
)

// ErrRunNotFound is returned by GetStatus when no run is known for the account.
var ErrRunNotFound = errors.New("no run found for account")

// ErrQueueFull is returned by Enqueue when the queue is at capacity.
var ErrQueueFull = errors.New("execution queue is full")

// ValidationError wraps an invalid enqueue request.
type ValidationError struct {
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid run request: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid run request: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

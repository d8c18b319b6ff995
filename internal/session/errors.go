// Package session builds authenticated browser sessions against the fiscal portal.
package session

import "fmt"

// CreationError represents a failure to launch or configure the browser session.
type CreationError struct {
	Message string
	Cause   error
}

func (e *CreationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("session creation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("session creation error: %s", e.Message)
}

func (e *CreationError) Unwrap() error {
	return e.Cause
}

// AuthenticationError represents a login flow that did not reach the
// authenticated dashboard.
type AuthenticationError struct {
	Message string
	Cause   error
}

func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

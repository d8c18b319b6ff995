// Package scanner walks paginated report tables and finds rows matching a
// target accounting period.
package scanner

import (
	"fmt"

	"github.com/rodrigo/nfse-collector/internal/types"
)

// TableTimeoutError indicates the results table did not render within the
// bounded wait. It is recoverable: the scan for that direction ends, the run
// continues.
type TableTimeoutError struct {
	Direction types.Direction
	Cause     error
}

func (e *TableTimeoutError) Error() string {
	return fmt.Sprintf("table did not render for %s listing: %v", e.Direction, e.Cause)
}

func (e *TableTimeoutError) Unwrap() error {
	return e.Cause
}

// RowError indicates one row could not be processed. Row errors are logged
// and the scan continues; they are never fatal to the scan.
type RowError struct {
	Index int
	Cause error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Index+1, e.Cause)
}

func (e *RowError) Unwrap() error {
	return e.Cause
}

// NavigationError indicates the listing could not be opened.
type NavigationError struct {
	Direction types.Direction
	Cause     error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("failed to open %s listing: %v", e.Direction, e.Cause)
}

func (e *NavigationError) Unwrap() error {
	return e.Cause
}

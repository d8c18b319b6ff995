// Package capture resolves, downloads and stores the artifacts of a matched
// table row. Capture never fails a scan: every internal error is caught,
// logged, and the corresponding artifact path is simply absent.
package capture

import (
	"fmt"

	"github.com/rodrigo/nfse-collector/internal/types"
)

// LinkResolutionError indicates no download link for an artifact kind could
// be located in the row's action menu.
type LinkResolutionError struct {
	Kind    types.ArtifactKind
	Message string
}

func (e *LinkResolutionError) Error() string {
	return fmt.Sprintf("could not resolve %s download link: %s", e.Kind, e.Message)
}

// DownloadHTTPError indicates the direct download request returned a
// non-200 status. It affects only the artifact being fetched.
type DownloadHTTPError struct {
	URL    string
	Status int
}

func (e *DownloadHTTPError) Error() string {
	return fmt.Sprintf("download request failed with status %d: %s", e.Status, e.URL)
}

// MenuError indicates the row's action menu could not be opened or closed.
type MenuError struct {
	Message string
	Cause   error
}

func (e *MenuError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("action menu: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("action menu: %s", e.Message)
}

func (e *MenuError) Unwrap() error {
	return e.Cause
}

// FileWriteError indicates the fetched bytes could not be written to disk.
type FileWriteError struct {
	Path  string
	Cause error
}

func (e *FileWriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Cause)
}

func (e *FileWriteError) Unwrap() error {
	return e.Cause
}

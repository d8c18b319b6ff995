package server

import (
	"errors"
	"net/http"

	"github.com/rodrigo/nfse-collector/internal/certstore"
	"github.com/rodrigo/nfse-collector/internal/orchestrator"
)

// ErrInvalidCredentials indicates a wrong operator password.
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid operator password"
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var validation *orchestrator.ValidationError
	var invalidCert *certstore.InvalidCertificateError
	switch {
	case errors.As(err, &validation), errors.As(err, &invalidCert):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrRunNotFound), errors.Is(err, certstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		var creds *ErrInvalidCredentials
		if errors.As(err, &creds) {
			return http.StatusUnauthorized
		}
		return http.StatusInternalServerError
	}
}

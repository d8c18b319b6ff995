// Package certstore stores client certificates encrypted at rest, keyed by tax id.
package certstore

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates no certificate is stored for the requested tax id.
var ErrNotFound = errors.New("certificate not found")

// DecryptionError represents a failure to decrypt stored certificate material.
type DecryptionError struct {
	TaxID string
	Cause error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("failed to decrypt certificate for %s: %v", e.TaxID, e.Cause)
}

func (e *DecryptionError) Unwrap() error {
	return e.Cause
}

// InvalidCertificateError represents certificate bytes that do not decode as
// a PKCS#12 bundle with the given passphrase.
type InvalidCertificateError struct {
	Message string
	Cause   error
}

func (e *InvalidCertificateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid certificate: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid certificate: %s", e.Message)
}

func (e *InvalidCertificateError) Unwrap() error {
	return e.Cause
}

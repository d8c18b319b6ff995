package session

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodrigo/nfse-collector/internal/certstore"
)

func TestClientCertificate_RejectsGarbage(t *testing.T) {
	_, err := clientCertificate([]byte("not a pkcs12 bundle"), "pw")
	assert.Error(t, err)
}

func TestOrigin(t *testing.T) {
	u, err := url.Parse("https://www.nfse.gov.br/EmissorNacional/Login")
	require.NoError(t, err)
	assert.Equal(t, "https://www.nfse.gov.br", origin(u))
}

func TestIsCredentialError(t *testing.T) {
	assert.True(t, IsCredentialError(certstore.ErrNotFound))
	assert.True(t, IsCredentialError(&certstore.InvalidCertificateError{Message: "bad"}))
	assert.True(t, IsCredentialError(&certstore.DecryptionError{TaxID: "12345678000199"}))
	assert.False(t, IsCredentialError(errors.New("portal down")))
	assert.False(t, IsCredentialError(&AuthenticationError{Message: "timeout"}))
}

func TestBuild_MissingCredentialSurfacesNotFound(t *testing.T) {
	key, err := certstore.GenerateKey()
	require.NoError(t, err)
	certs, err := certstore.New(t.TempDir(), key)
	require.NoError(t, err)

	b := &Builder{Certs: certs, PortalURL: "https://portal.example/"}
	_, err = b.Build(context.Background(), "12345678000199", true)

	assert.True(t, errors.Is(err, certstore.ErrNotFound))
}

func TestBuild_UndecodableCertificate(t *testing.T) {
	key, err := certstore.GenerateKey()
	require.NoError(t, err)
	certs, err := certstore.New(t.TempDir(), key)
	require.NoError(t, err)
	require.NoError(t, certs.Save("12345678000199", []byte("not pkcs12"), "pw"))

	b := &Builder{Certs: certs, PortalURL: "https://portal.example/"}
	_, err = b.Build(context.Background(), "12345678000199", true)

	var invalid *certstore.InvalidCertificateError
	assert.True(t, errors.As(err, &invalid))
	assert.True(t, IsCredentialError(err))
}

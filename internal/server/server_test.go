package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodrigo/nfse-collector/internal/certstore"
	"github.com/rodrigo/nfse-collector/internal/orchestrator"
	"github.com/rodrigo/nfse-collector/internal/types"
)

type stubSession struct{}

func (stubSession) Collect(types.Direction, string, string, types.LogFunc) (types.ScanOutcome, error) {
	return types.ScanOutcome{}, nil
}

func (stubSession) Close() {}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("OPERATOR_PASSWORD_HASH", "")
	t.Setenv("OPERATOR_PASSWORD", "hunter2")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	key, err := certstore.GenerateKey()
	require.NoError(t, err)
	certs, err := certstore.New(t.TempDir(), key)
	require.NoError(t, err)

	orch := orchestrator.New(orchestrator.Options{
		Factory: orchestrator.SessionFactoryFunc(
			func(context.Context, string, bool) (orchestrator.Session, error) {
				return stubSession{}, nil
			}),
		DownloadsPath: t.TempDir(),
		IdleTimeout:   100 * time.Millisecond,
		QueueCapacity: 4,
	})

	srv, err := New(Config{Port: 0, Orchestrator: orch, Certs: certs})
	require.NoError(t, err)
	return srv
}

func issueToken(t *testing.T, srv *Server) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/token",
		strings.NewReader(`{"password":"hunter2"}`))
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["token"])
	return body["token"]
}

func TestHealth_NoAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestIssueToken_WrongPassword(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/token",
		strings.NewReader(`{"password":"nope"}`))
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutes_RejectMissingToken(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEnqueueRun_AcceptedAndStatusVisible(t *testing.T) {
	srv := newTestServer(t)
	token := issueToken(t, srv)

	body := `{"account_id":"acct-1","tax_id":"12345678000199","period":"11/2025","direction":"issued"}`
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var snap types.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "acct-1", snap.AccountID)

	req = httptest.NewRequest(http.MethodGet, "/runs/acct-1/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"account_id":"acct-1"`)
}

func TestEnqueueRun_ValidationRejected(t *testing.T) {
	srv := newTestServer(t)
	token := issueToken(t, srv)

	body := `{"account_id":"acct-1","tax_id":"123","period":"13/2025"}`
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunStatus_UnknownAccount(t *testing.T) {
	srv := newTestServer(t)
	token := issueToken(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/runs/ghost/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompanies_NotImplementedWithoutDatabase(t *testing.T) {
	srv := newTestServer(t)
	token := issueToken(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/companies", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestUploadCertificate_RejectsBadBase64(t *testing.T) {
	srv := newTestServer(t)
	token := issueToken(t, srv)

	body := `{"pfx":"%%%not-base64%%%","passphrase":"pw"}`
	req := httptest.NewRequest(http.MethodPost, "/companies/12345678000199/certificate",
		strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJWTService_RoundTrip(t *testing.T) {
	srv := newTestServer(t)

	token, err := srv.jwtService.GenerateToken()
	require.NoError(t, err)

	claims, err := srv.jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Subject)

	_, err = srv.jwtService.ValidateToken("not-a-token")
	assert.Error(t, err)

	_, err = srv.jwtService.ValidateToken("")
	assert.Error(t, err)
}

func TestHTTPStatus_Mapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(orchestrator.ErrRunNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(orchestrator.ErrQueueFull))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(&orchestrator.ValidationError{Message: "bad"}))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(&certstore.InvalidCertificateError{Message: "bad"}))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(certstore.ErrNotFound))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(&ErrInvalidCredentials{}))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(assertAnError()))
}

func assertAnError() error {
	return context.DeadlineExceeded
}

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/medchain/identity-service/internal/cache"
	"github.com/medchain/identity-service/internal/crypto"
	"github.com/medchain/identity-service/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireJSONRejectsWrongContentType(t *testing.T) {
	h := RequireJSON(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireJSONIgnoresReads(t *testing.T) {
	h := RequireJSON(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/auth/csrf-token", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestRecoveryTurnsPanicInto500(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func testCSRF(t *testing.T) *CSRF {
	t.Helper()
	key := make([]byte, 32)
	vault, err := crypto.NewVault(key, []byte("pepper"), []byte("phone"), []byte("sig"))
	require.NoError(t, err)
	return NewCSRF(session.NewStore(cache.NewMemoryCache(), vault), vault)
}

func TestCSRFTokenSingleUse(t *testing.T) {
	csrf := testCSRF(t)
	h := csrf.Require(okHandler())

	token, err := csrf.Issue(context.Background())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set("X-CSRF-Token", token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// replay with the same token fails
	req = httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set("X-CSRF-Token", token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRFRejectsBadSignature(t *testing.T) {
	csrf := testCSRF(t)
	h := csrf.Require(okHandler())

	for _, token := range []string{"", "missing-dot", "id.badsignature"} {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.Header.Set("X-CSRF-Token", token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	}
}

func TestCSRFSkipsSafeMethods(t *testing.T) {
	csrf := testCSRF(t)
	h := csrf.Require(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/auth/csrf-token", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterEnforcesCeiling(t *testing.T) {
	rl := NewRateLimiter(map[string]RouteLimit{
		"register": {PerMinute: 3, Burst: 3},
	}, RouteLimit{PerMinute: 60, Burst: 20})
	h := rl.Limit("register")(okHandler())

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/auth/register", nil)
		req.RemoteAddr = "10.0.0.1:50000"
		req.Header.Set("User-Agent", "test-agent")
		return req
	}

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, newReq())
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newReq())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// a different client IP gets its own bucket
	other := httptest.NewRequest(http.MethodPost, "/auth/register", nil)
	other.RemoteAddr = "10.0.0.2:50000"
	other.Header.Set("User-Agent", "test-agent")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientKeyDerivation(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "192.168.1.5:42810"
	req.Header.Set("User-Agent", "a-very-long-user-agent-string-that-keeps-going")

	key := clientKey(req, "login")
	assert.Equal(t, "192.168.1.5:login:a-very-long-user-age", key)
}

package api

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenantlabs/covenant/pkg/identity"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	// A client-supplied ID is reused.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client-id-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "client-id-1", rec.Header().Get("X-Request-ID"))
}

func TestJWTValidator(t *testing.T) {
	secret := []byte("s3cret")
	v := NewJWTValidator(secret)
	require.NotNil(t, v)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	principal, err := v.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", string(principal))

	// Wrong secret fails.
	wrong, err := token.SignedString([]byte("other"))
	require.NoError(t, err)
	_, err = v.Validate(wrong)
	assert.Error(t, err)

	// A token without a subject is useless.
	empty := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{})
	signedEmpty, err := empty.SignedString(secret)
	require.NoError(t, err)
	_, err = v.Validate(signedEmpty)
	assert.Error(t, err)

	// Expired tokens are rejected.
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	signedExpired, err := expired.SignedString(secret)
	require.NoError(t, err)
	_, err = v.Validate(signedExpired)
	assert.Error(t, err)

	// An empty secret disables validation entirely.
	assert.Nil(t, NewJWTValidator(nil))
}

func TestAuthMiddlewareFailsClosed(t *testing.T) {
	// A nil validator rejects everything non-public.
	handler := AuthMiddleware(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/contracts/0", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Public paths still pass.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareInjectsPrincipal(t *testing.T) {
	secret := []byte("s3cret")
	var caller string
	handler := AuthMiddleware(NewJWTValidator(secret))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := identity.PrincipalFromContext(r.Context())
		require.NoError(t, err)
		caller = string(p)
		w.WriteHeader(http.StatusOK)
	}))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/contracts/0", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", caller)
}

func TestRateLimiter(t *testing.T) {
	rl := NewGlobalRateLimiter(1, 2)
	handler := rl.Middleware(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", func() string {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		out := httptest.NewRecorder()
		handler.ServeHTTP(out, req)
		return out.Header().Get("Retry-After")
	}())
}

func TestIdempotencyMiddleware(t *testing.T) {
	var calls atomic.Int32
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":0}`))
	})
	handler := IdempotencyMiddleware(NewIdempotencyStore(time.Minute))(inner)

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/contracts", nil)
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send("key-1")
	second := send("key-1")
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int32(1), calls.Load(), "second request replays the cached response")

	send("key-2")
	assert.Equal(t, int32(2), calls.Load())

	// Without a key every request reaches the handler.
	send("")
	send("")
	assert.Equal(t, int32(4), calls.Load())
}

package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crealith/authcore/internal/infrastructure/ratelimit"
	"github.com/stretchr/testify/require"
)

func doRequest(t *testing.T, handler http.Handler, remoteAddr string) int {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec.Code
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestLimiter_Middleware_Throttles(t *testing.T) {
	t.Parallel()

	l := ratelimit.NewLimiter(ratelimit.Config{RPS: 1, Burst: 2})
	t.Cleanup(l.Close)
	handler := l.Middleware(okHandler())

	require.Equal(t, http.StatusOK, doRequest(t, handler, "10.0.0.1:1111"))
	require.Equal(t, http.StatusOK, doRequest(t, handler, "10.0.0.1:1111"))
	require.Equal(t, http.StatusTooManyRequests, doRequest(t, handler, "10.0.0.1:1111"))
}

func TestLimiter_Middleware_PerIP(t *testing.T) {
	t.Parallel()

	l := ratelimit.NewLimiter(ratelimit.Config{RPS: 1, Burst: 1})
	t.Cleanup(l.Close)
	handler := l.Middleware(okHandler())

	require.Equal(t, http.StatusOK, doRequest(t, handler, "10.0.0.1:1111"))
	require.Equal(t, http.StatusTooManyRequests, doRequest(t, handler, "10.0.0.1:2222"))
	require.Equal(t, http.StatusOK, doRequest(t, handler, "10.0.0.2:1111"))
}

func TestLimiter_Close_Idempotent(t *testing.T) {
	t.Parallel()

	l := ratelimit.NewLimiter(ratelimit.Config{})

	require.NotPanics(t, func() {
		l.Close()
		l.Close()
	})

	// The middleware keeps working after Close; only eviction stops.
	require.Equal(t, http.StatusOK, doRequest(t, l.Middleware(okHandler()), "10.0.0.3:1111"))
}

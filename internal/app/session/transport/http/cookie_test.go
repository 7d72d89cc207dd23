package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crealith/authcore/internal/app/session"
	sessionhttp "github.com/crealith/authcore/internal/app/session/transport/http"
	"github.com/crealith/authcore/internal/infrastructure/contextx"
	"github.com/stretchr/testify/require"
)

func findCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == sessionhttp.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestSetSessionCookie(t *testing.T) {
	t.Parallel()

	t.Run("development defaults", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		sessionhttp.SetSessionCookie(rec, sessionhttp.CookieConfig{MaxAge: 24 * time.Hour}, "abc")

		cookie := findCookie(rec.Result())
		require.NotNil(t, cookie)
		require.Equal(t, "abc", cookie.Value)
		require.True(t, cookie.HttpOnly)
		require.False(t, cookie.Secure)
		require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
		require.Equal(t, int((24 * time.Hour).Seconds()), cookie.MaxAge)
	})

	t.Run("secure tightens SameSite", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		sessionhttp.SetSessionCookie(rec, sessionhttp.CookieConfig{Secure: true, MaxAge: time.Hour}, "abc")

		cookie := findCookie(rec.Result())
		require.NotNil(t, cookie)
		require.True(t, cookie.Secure)
		require.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	})
}

func TestClearSessionCookie(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	sessionhttp.ClearSessionCookie(rec, sessionhttp.CookieConfig{})

	cookie := findCookie(rec.Result())
	require.NotNil(t, cookie)
	require.Empty(t, cookie.Value)
	require.Negative(t, cookie.MaxAge)
}

func TestSessionIDFromRequest(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Empty(t, sessionhttp.SessionIDFromRequest(req))

	req.AddCookie(&http.Cookie{Name: sessionhttp.SessionCookieName, Value: "abc"})
	require.Equal(t, "abc", sessionhttp.SessionIDFromRequest(req))
}

func TestRequestContextOf(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	req.Header.Set("User-Agent", "test-agent/1.0")
	req.Header.Set("Accept-Language", "en-US")

	reqCtx := sessionhttp.RequestContextOf(req)
	require.Equal(t, "10.0.0.1", reqCtx.IP, "port is stripped")
	require.Equal(t, "test-agent/1.0", reqCtx.UserAgent)
	require.Equal(t, "en-US", reqCtx.AcceptLanguage)
}

type fakeValidator struct {
	data *session.Data
	err  error
}

func (v *fakeValidator) Validate(_ context.Context, _ string, _ session.RequestContext) (*session.Data, error) {
	return v.data, v.err
}

func TestSessionMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		cookie        string
		validator     *fakeValidator
		wantSessionID string
	}{
		{
			name:      "no cookie passes through",
			validator: &fakeValidator{},
		},
		{
			name:      "dead session passes through without id",
			cookie:    "dead-session",
			validator: &fakeValidator{data: nil},
		},
		{
			name:      "validator error never fails the request",
			cookie:    "some-session",
			validator: &fakeValidator{err: context.DeadlineExceeded},
		},
		{
			name:          "live session lands in the context",
			cookie:        "live-session",
			validator:     &fakeValidator{data: &session.Data{ID: "live-session"}},
			wantSessionID: "live-session",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotSessionID string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotSessionID, _ = contextx.GetSessionID(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: sessionhttp.SessionCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			sessionhttp.SessionMiddleware(tt.validator)(next).ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, tt.wantSessionID, gotSessionID)
		})
	}
}

package logger_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crealith/authcore/internal/infrastructure/apperr"
	"github.com/crealith/authcore/internal/infrastructure/contextx"
	"github.com/crealith/authcore/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestLogger_Middleware(t *testing.T) {
	var buf bytes.Buffer
	orig := zlog.Logger
	zlog.Logger = zerolog.New(&buf)
	t.Cleanup(func() { zlog.Logger = orig })

	handler := logger.Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	out := buf.String()
	require.Contains(t, out, "request completed")
	require.Contains(t, out, `"method":"GET"`)
	require.Contains(t, out, `"status":418`)
}

func TestError_CarriesContextFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := zerolog.New(&buf)
	ctx := l.WithContext(context.Background())

	userID := uuid.New()
	ctx = contextx.SetUserID(ctx, userID)
	ctx = contextx.SetSessionID(ctx, "sess-1")

	err := apperr.New("boom", "internal", apperr.ClassInternal, apperr.LogLevelError)
	logger.Error(ctx, err).Msg("something failed")

	out := buf.String()
	require.Contains(t, out, `"level":"error"`)
	require.Contains(t, out, userID.String())
	require.Contains(t, out, `"session_id":"sess-1"`)
	require.Contains(t, out, "boom")
}

func TestWarn_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := zerolog.New(&buf)
	ctx := l.WithContext(context.Background())

	logger.Warn(ctx, nil).Msg("suspicious")

	require.Contains(t, buf.String(), `"level":"warn"`)
}

package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(log *Logger, seen *string) *gin.Engine {
	r := gin.New()
	r.Use(RequestLoggingMiddleware(log))
	r.GET("/x", func(c *gin.Context) {
		*seen, _ = c.Request.Context().Value(ContextKeyRequestID).(string)
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequestLoggingMiddleware_ReusesIncomingID(t *testing.T) {
	var seen string
	r := newTestRouter(NewNop(), &seen)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-123", seen)
}

func TestRequestLoggingMiddleware_GeneratesID(t *testing.T) {
	var seen string
	r := newTestRouter(NewNop(), &seen)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	id := w.Header().Get(RequestIDHeader)
	require.NotEmpty(t, id)
	assert.Equal(t, id, seen)
}

func TestWithContext_AddsFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf})

	ctx := WithRequestID(context.Background(), "r1")
	ctx = WithUserID(ctx, "u1")
	ctx = WithConversationID(ctx, "c1")
	log.WithContext(ctx).WithComponent("test").Info("hello")

	out := buf.String()
	for _, want := range []string{`"request_id":"r1"`, `"user_id":"u1"`, `"conversation_id":"c1"`, `"component":"test"`} {
		assert.True(t, strings.Contains(out, want), "missing %s in %s", want, out)
	}
}

func TestFromConfig(t *testing.T) {
	t.Setenv("APP_ENV", "")
	cfg := FromConfig("warn", "")
	assert.Equal(t, slog.LevelWarn, cfg.Level)
	assert.Equal(t, "text", cfg.Format)

	t.Setenv("APP_ENV", "production")
	assert.Equal(t, "json", FromConfig("info", "text").Format)
}

func TestLogOperation(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf})
	ctx := WithRequestID(context.Background(), "r2")

	boom := errors.New("upstream down")
	err := log.LogOperation(ctx, "chat_completion", func() error { return boom })
	require.ErrorIs(t, err, boom)

	out := buf.String()
	assert.Contains(t, out, `"msg":"operation failed"`)
	assert.Contains(t, out, `"operation":"chat_completion"`)
	assert.Contains(t, out, `"request_id":"r2"`)

	buf.Reset()
	require.NoError(t, log.LogOperation(ctx, "chat_completion", func() error { return nil }))
	assert.Contains(t, buf.String(), `"msg":"operation completed"`)
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf})

	log.LogError(WithUserID(context.Background(), "u9"), errors.New("store gone"), "chat turn failed", slog.String("model", "gpt-4o"))

	out := buf.String()
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, `"error":"store gone"`)
	assert.Contains(t, out, `"user_id":"u9"`)
	assert.Contains(t, out, `"model":"gpt-4o"`)
}

package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eternisai/chat-relay/internal/chat"
	"github.com/eternisai/chat-relay/internal/config"
	"github.com/eternisai/chat-relay/internal/conversation"
	"github.com/eternisai/chat-relay/internal/logger"
	"github.com/eternisai/chat-relay/internal/metrics"
	"github.com/eternisai/chat-relay/internal/storage/memory"
	"github.com/eternisai/chat-relay/internal/upload"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, model string, messages []openai.ChatCompletionMessage) (string, error) {
	return model + ": " + messages[0].Content, nil
}

type nopUploader struct{}

func (nopUploader) Provider() string { return "nop" }

func (nopUploader) Upload(_ context.Context, f upload.File) (*upload.Result, error) {
	_, _ = io.Copy(io.Discard, f.Body)
	return &upload.Result{URL: "https://cdn.example/" + f.Name, PublicID: f.Name}, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	log := logger.NewNop()
	models := config.DefaultModelsConfig()
	m := metrics.New(models.Default, models.Vision)
	store := metrics.InstrumentStore(memory.New(), m)

	router := NewRouter(Handlers{
		Chat:          chat.NewHandler(chat.NewService(store, echoCompleter{}, models, log, m), log),
		Conversations: conversation.NewHandler(store, models.Default, log),
		Upload:        upload.NewHandler(nopUploader{}, 1<<20, log, m),
	}, Options{
		Logger:         log,
		Metrics:        m,
		AllowedOrigins: "*",
	})
	return router
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRootBanner(t *testing.T) {
	r := newTestRouter(t)
	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Server is alive", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))
}

func TestPing(t *testing.T) {
	r := newTestRouter(t)
	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "alive", body["status"])
	assert.NotEmpty(t, body["timestamp"])
	assert.Equal(t, logger.GetInstanceID(), body["instance_id"])
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://chat.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	// Browsers send the requested header names lowercased.
	req.Header.Set("Access-Control-Request-Headers", "content-type")

	w := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestCORSRestrictedOrigins(t *testing.T) {
	r := gin.New()
	r.Use(CORS("https://a.example, https://b.example"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://b.example")
	assert.Equal(t, "https://b.example", serve(r, req).Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.Empty(t, serve(r, req).Header().Get("Access-Control-Allow-Origin"))
}

func TestConversationFlow(t *testing.T) {
	r := newTestRouter(t)

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return serve(r, req)
	}

	w := post("/api/conversations", `{"userId":"u1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var created struct {
		ConversationID string `json:"conversationId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = post("/api/chat", `{"userId":"u1","message":"Hello there","conversationId":"`+created.ConversationID+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"reply":"gpt-4.1-nano: Hello there","conversationId":"`+created.ConversationID+`","title":"Hello there"}`, w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/conversations/"+created.ConversationID+"/messages", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Conversation conversation.Conversation `json:"conversation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got.Conversation.Messages, 2)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/conversations/u1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.ConversationID)

	w = serve(r, httptest.NewRequest(http.MethodDelete, "/api/conversations/"+created.ConversationID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `chat_relay_http_requests_total{method="POST",route="/api/chat",status="200"} 1`)
	assert.Contains(t, w.Body.String(), `chat_relay_chat_turns_total{model="gpt-4.1-nano",outcome="ok"} 1`)
}

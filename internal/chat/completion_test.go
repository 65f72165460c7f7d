package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompletionServer(t *testing.T, handler func(req map[string]any) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		status, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAICompleterReturnsFirstChoice(t *testing.T) {
	var got map[string]any
	srv := newCompletionServer(t, func(req map[string]any) (int, any) {
		got = req
		return http.StatusOK, openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "Hello!"}},
			},
		}
	})

	c := NewOpenAICompleter("test-key", srv.URL+"/v1", 5*time.Second)
	payload, err := testAssembler.Assemble("Look", testImage, testVision)
	require.NoError(t, err)

	reply, err := c.Complete(context.Background(), testVision, payload.Payload)
	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply)

	// The wire format is what the upstream API actually sees.
	assert.Equal(t, testVision, got["model"])
	messages := got["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	assert.Equal(t, "text", content[0].(map[string]any)["type"])
	image := content[1].(map[string]any)
	assert.Equal(t, "image_url", image["type"])
	assert.Equal(t, testImage, image["image_url"].(map[string]any)["url"])
}

func TestOpenAICompleterErrors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		srv := newCompletionServer(t, func(map[string]any) (int, any) {
			return http.StatusTooManyRequests, map[string]any{
				"error": map[string]any{"message": "slow down", "type": "rate_limit"},
			}
		})
		_, err := NewOpenAICompleter("test-key", srv.URL+"/v1", time.Second).
			Complete(context.Background(), "gpt-4.1-nano", []openai.ChatCompletionMessage{{Role: "user", Content: "hi"}})
		require.Error(t, err)
	})

	t.Run("no choices", func(t *testing.T) {
		srv := newCompletionServer(t, func(map[string]any) (int, any) {
			return http.StatusOK, openai.ChatCompletionResponse{}
		})
		_, err := NewOpenAICompleter("test-key", srv.URL+"/v1", time.Second).
			Complete(context.Background(), "gpt-4.1-nano", []openai.ChatCompletionMessage{{Role: "user", Content: "hi"}})
		assert.ErrorIs(t, err, errNoChoices)
	})
}

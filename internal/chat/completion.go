package chat

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Completer sends one payload to an OpenAI-compatible chat completion API
// and returns the assistant's reply text.
type Completer interface {
	Complete(ctx context.Context, model string, messages []openai.ChatCompletionMessage) (string, error)
}

var errNoChoices = errors.New("completion returned no choices")

type OpenAICompleter struct {
	client *openai.Client
}

// NewOpenAICompleter targets baseURL (for example https://api.openai.com/v1).
// timeout bounds each HTTP round trip; zero means no client-side limit.
func NewOpenAICompleter(apiKey, baseURL string, timeout time.Duration) *OpenAICompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAICompleter{client: openai.NewClientWithConfig(cfg)}
}

func (o *OpenAICompleter) Complete(ctx context.Context, model string, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

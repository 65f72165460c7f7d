package chat

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eternisai/chat-relay/internal/config"
	"github.com/eternisai/chat-relay/internal/conversation"
	"github.com/eternisai/chat-relay/internal/logger"
	"github.com/eternisai/chat-relay/internal/storage/memory"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeCompleter struct {
	mu     sync.Mutex
	reply  string
	err    error
	calls  int
	models []string
	last   []openai.ChatCompletionMessage
}

func (f *fakeCompleter) Complete(_ context.Context, model string, messages []openai.ChatCompletionMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.models = append(f.models, model)
	f.last = messages
	return f.reply, f.err
}

func (f *fakeCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestService(t *testing.T, completer Completer) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewService(store, completer, config.DefaultModelsConfig(), logger.NewNop(), nil), store
}

func TestChatCreatesConversation(t *testing.T) {
	completer := &fakeCompleter{reply: "Hello!"}
	svc, store := newTestService(t, completer)
	ctx := context.Background()

	resp, err := svc.Chat(ctx, Request{UserID: "u1", Message: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", resp.Reply)
	assert.Equal(t, "Hi", resp.Title)
	assert.NotEmpty(t, resp.ConversationID)

	assert.Equal(t, []string{config.DefaultModel}, completer.models)
	require.Len(t, completer.last, 1)
	assert.Equal(t, "Hi", completer.last[0].Content)

	conv, err := store.FindByID(ctx, resp.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "u1", conv.UserID)
	assert.Equal(t, config.DefaultModel, conv.Model)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, conversation.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "Hi", conv.Messages[0].Content)
	assert.Equal(t, conversation.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, "Hello!", conv.Messages[1].Content)
}

func TestChatLongFirstMessageTitle(t *testing.T) {
	svc, _ := newTestService(t, &fakeCompleter{reply: "ok"})

	resp, err := svc.Chat(context.Background(), Request{UserID: "u1", Message: "Hello world, this is a long message"})
	require.NoError(t, err)
	assert.Equal(t, "Hello world, this is a long me...", resp.Title)
}

func TestChatImageOnlyShortCircuits(t *testing.T) {
	completer := &fakeCompleter{reply: "should not be used"}
	svc, store := newTestService(t, completer)
	ctx := context.Background()

	resp, err := svc.Chat(ctx, Request{UserID: "u1", ImageURL: testImage, Model: "gpt-4.1-nano"})
	require.NoError(t, err)
	assert.Equal(t, testReply, resp.Reply)
	assert.Equal(t, conversation.ImageTitle, resp.Title)
	assert.Equal(t, 0, completer.Calls())

	conv, err := store.FindByID(ctx, resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "", conv.Messages[0].Content)
	require.NotNil(t, conv.Messages[0].ImageURL)
	assert.Equal(t, testImage, *conv.Messages[0].ImageURL)
	assert.Equal(t, testReply, conv.Messages[1].Content)
}

func TestChatImageOnlyShortCircuitKeepsExistingTitle(t *testing.T) {
	completer := &fakeCompleter{reply: "should not be used"}
	svc, store := newTestService(t, completer)
	ctx := context.Background()

	conv := conversation.New("u1", config.DefaultModel, "")
	require.NoError(t, store.Create(ctx, conv))

	resp, err := svc.Chat(ctx, Request{UserID: "u1", ImageURL: testImage, ConversationID: conv.ID})
	require.NoError(t, err)
	assert.Equal(t, testReply, resp.Reply)
	assert.Equal(t, conversation.DefaultTitle, resp.Title)
	assert.Equal(t, 0, completer.Calls())

	stored, err := store.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conversation.DefaultTitle, stored.Title)
	assert.Len(t, stored.Messages, 2)
}

func TestChatImageOnlyVisionModelCallsUpstream(t *testing.T) {
	completer := &fakeCompleter{reply: "A cat."}
	svc, _ := newTestService(t, completer)

	resp, err := svc.Chat(context.Background(), Request{UserID: "u1", ImageURL: testImage, Model: config.DefaultVisionModel})
	require.NoError(t, err)
	assert.Equal(t, "A cat.", resp.Reply)
	assert.Equal(t, conversation.ImageTitle, resp.Title)
	assert.Equal(t, 1, completer.Calls())
	require.Len(t, completer.last[0].MultiContent, 1)
}

func TestChatExplicitTitleIsKept(t *testing.T) {
	svc, store := newTestService(t, &fakeCompleter{reply: "ok"})
	ctx := context.Background()

	resp, err := svc.Chat(ctx, Request{UserID: "u1", Message: "Hi there", Title: "Trip"})
	require.NoError(t, err)
	assert.Equal(t, "Trip", resp.Title)

	conv, err := store.FindByID(ctx, resp.ConversationID)
	require.NoError(t, err)
	assert.True(t, conv.TitleLocked)
}

func TestChatDerivesTitleForEmptyExistingConversation(t *testing.T) {
	svc, store := newTestService(t, &fakeCompleter{reply: "ok"})
	ctx := context.Background()

	conv := conversation.New("u1", config.DefaultModel, "")
	require.NoError(t, store.Create(ctx, conv))

	resp, err := svc.Chat(ctx, Request{UserID: "u1", Message: "Plan a trip to Lisbon", ConversationID: conv.ID})
	require.NoError(t, err)
	assert.Equal(t, "Plan a trip to Lisbon", resp.Title)
	assert.Equal(t, conv.ID, resp.ConversationID)

	// The second turn leaves the title alone.
	resp, err = svc.Chat(ctx, Request{UserID: "u1", Message: "And Porto?", ConversationID: conv.ID})
	require.NoError(t, err)
	assert.Equal(t, "Plan a trip to Lisbon", resp.Title)

	stored, err := store.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 4)
}

func TestChatLockedTitleIsNotRederived(t *testing.T) {
	svc, store := newTestService(t, &fakeCompleter{reply: "ok"})
	ctx := context.Background()

	conv := conversation.New("u1", config.DefaultModel, "")
	require.NoError(t, store.Create(ctx, conv))
	_, err := store.UpdateTitle(ctx, conv.ID, "Renamed")
	require.NoError(t, err)

	resp, err := svc.Chat(ctx, Request{UserID: "u1", Message: "First message", ConversationID: conv.ID})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", resp.Title)
}

func TestChatValidation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"missing message and image", Request{UserID: "u1", Message: "  "}},
		{"missing user", Request{Message: "Hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{reply: "ok"}
			svc, store := newTestService(t, completer)

			_, err := svc.Chat(context.Background(), tt.req)
			assert.ErrorIs(t, err, conversation.ErrInvalidInput)
			assert.Equal(t, 0, completer.Calls())
			assert.Equal(t, 0, store.Len())
		})
	}
}

func TestChatUnknownConversation(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	svc, store := newTestService(t, completer)

	_, err := svc.Chat(context.Background(), Request{UserID: "u1", Message: "Hi", ConversationID: "does-not-exist"})
	assert.ErrorIs(t, err, conversation.ErrNotFound)
	assert.Equal(t, 0, completer.Calls())
	assert.Equal(t, 0, store.Len())
}

func TestChatUpstreamFailurePersistsNothing(t *testing.T) {
	upstreamErr := errors.New("connection reset")
	svc, store := newTestService(t, &fakeCompleter{err: upstreamErr})
	ctx := context.Background()

	_, err := svc.Chat(ctx, Request{UserID: "u1", Message: "Hi"})
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.ErrorIs(t, err, upstreamErr)
	assert.Equal(t, 0, store.Len())

	conv := conversation.New("u1", config.DefaultModel, "")
	require.NoError(t, store.Create(ctx, conv))
	_, err = svc.Chat(ctx, Request{UserID: "u1", Message: "Hi", ConversationID: conv.ID})
	require.Error(t, err)

	stored, err := store.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Messages)
}

func TestChatRejectsTurnOverCap(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	svc, store := newTestService(t, completer)
	ctx := context.Background()

	conv := conversation.New("u1", config.DefaultModel, "")
	for i := 0; i < conversation.MaxMessages-1; i++ {
		require.NoError(t, conv.Append(conversation.NewMessage(conversation.RoleUser, "x", "")))
	}
	require.NoError(t, store.Create(ctx, conv))

	_, err := svc.Chat(ctx, Request{UserID: "u1", Message: "one more", ConversationID: conv.ID})
	assert.ErrorIs(t, err, conversation.ErrValidation)
	assert.Equal(t, 0, completer.Calls())
}

type conflictingStore struct {
	*memory.Store
}

func (conflictingStore) Save(context.Context, *conversation.Conversation) error {
	return conversation.ErrConflict
}

type brokenStore struct {
	*memory.Store
}

func (brokenStore) Create(context.Context, *conversation.Conversation) error {
	return errors.New("disk full")
}

func TestChatStoreErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("conflict passes through", func(t *testing.T) {
		inner := memory.New()
		conv := conversation.New("u1", config.DefaultModel, "")
		require.NoError(t, inner.Create(ctx, conv))

		svc := NewService(conflictingStore{inner}, &fakeCompleter{reply: "ok"}, config.DefaultModelsConfig(), logger.NewNop(), nil)
		_, err := svc.Chat(ctx, Request{UserID: "u1", Message: "Hi", ConversationID: conv.ID})
		assert.ErrorIs(t, err, conversation.ErrConflict)
	})

	t.Run("other failures are upstream errors", func(t *testing.T) {
		svc := NewService(brokenStore{memory.New()}, &fakeCompleter{reply: "ok"}, config.DefaultModelsConfig(), logger.NewNop(), nil)
		_, err := svc.Chat(ctx, Request{UserID: "u1", Message: "Hi"})
		var ue *UpstreamError
		require.True(t, errors.As(err, &ue))
		assert.True(t, strings.Contains(ue.Error(), "disk full"))
	})
}

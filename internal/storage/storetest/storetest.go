// Package storetest is the behavioral contract every conversation.Store
// backend must satisfy.
package storetest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eternisai/chat-relay/internal/conversation"
)

// Factory returns a store for one subtest. Stores may be shared between
// subtests; every subtest works under its own random user id.
type Factory func(t *testing.T) conversation.Store

// Run executes the full contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s conversation.Store)
	}{
		{"CreateAndFind", testCreateAndFind},
		{"CreateRejectsInvalid", testCreateRejectsInvalid},
		{"CreateNormalizesTitle", testCreateNormalizesTitle},
		{"FindByIDMissing", testFindByIDMissing},
		{"FindByUserOrdering", testFindByUserOrdering},
		{"UpdateTitle", testUpdateTitle},
		{"Delete", testDelete},
		{"SaveAppendsMessages", testSaveAppendsMessages},
		{"SaveConflict", testSaveConflict},
		{"SaveDeleted", testSaveDeleted},
		{"SaveRejectsOverCap", testSaveRejectsOverCap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			tt.fn(t, s)
		})
	}
}

func newUser() string {
	return "user-" + uuid.NewString()
}

func mustCreate(t *testing.T, s conversation.Store, userID, title string) *conversation.Conversation {
	t.Helper()
	c := conversation.New(userID, "gpt-4.1-nano", title)
	require.NoError(t, s.Create(context.Background(), c))
	return c
}

func testCreateAndFind(t *testing.T, s conversation.Store) {
	ctx := context.Background()
	userID := newUser()
	c := mustCreate(t, s, userID, "")

	assert.Equal(t, int64(1), c.Version)
	assert.False(t, c.CreatedAt.IsZero())

	first, err := s.FindByID(ctx, c.ID)
	require.NoError(t, err)
	second, err := s.FindByID(ctx, c.ID)
	require.NoError(t, err)

	assert.Equal(t, c.ID, first.ID)
	assert.Equal(t, userID, first.UserID)
	assert.Equal(t, "gpt-4.1-nano", first.Model)
	assert.Equal(t, conversation.DefaultTitle, first.Title)
	assert.False(t, first.TitleLocked)
	assert.NotNil(t, first.Messages)
	assert.Empty(t, first.Messages)
	assert.WithinDuration(t, c.CreatedAt, first.CreatedAt, time.Millisecond)
	assert.WithinDuration(t, c.UpdatedAt, first.UpdatedAt, time.Millisecond)

	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, first.Version, second.Version)
	assert.WithinDuration(t, first.UpdatedAt, second.UpdatedAt, 0)
}

func testCreateRejectsInvalid(t *testing.T, s conversation.Store) {
	ctx := context.Background()

	c := conversation.New("", "gpt-4.1-nano", "")
	err := s.Create(ctx, c)
	require.ErrorIs(t, err, conversation.ErrValidation)

	_, err = s.FindByID(ctx, c.ID)
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}

func testCreateNormalizesTitle(t *testing.T, s conversation.Store) {
	c := mustCreate(t, s, newUser(), "  "+strings.Repeat("t", 150)+"  ")

	got, err := s.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("t", 97)+"...", got.Title)
	assert.True(t, got.TitleLocked)
}

func testFindByIDMissing(t *testing.T, s conversation.Store) {
	_, err := s.FindByID(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}

func testFindByUserOrdering(t *testing.T, s conversation.Store) {
	ctx := context.Background()
	userID := newUser()

	oldest := mustCreate(t, s, userID, "oldest")
	time.Sleep(5 * time.Millisecond)
	middle := mustCreate(t, s, userID, "middle")
	time.Sleep(5 * time.Millisecond)
	newest := mustCreate(t, s, userID, "newest")
	mustCreate(t, s, newUser(), "someone else")

	got, err := s.FindByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{newest.ID, middle.ID, oldest.ID}, ids(got))

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, oldest.Append(conversation.NewMessage(conversation.RoleUser, "bump", "")))
	require.NoError(t, s.Save(ctx, oldest))

	got, err = s.FindByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []string{oldest.ID, newest.ID, middle.ID}, ids(got))
	require.Len(t, got[0].Messages, 1)
	assert.Equal(t, "bump", got[0].Messages[0].Content)

	none, err := s.FindByUser(ctx, newUser())
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func testUpdateTitle(t *testing.T, s conversation.Store) {
	ctx := context.Background()
	c := mustCreate(t, s, newUser(), "")

	time.Sleep(2 * time.Millisecond)
	updated, err := s.UpdateTitle(ctx, c.ID, "  Trip planning ")
	require.NoError(t, err)
	assert.Equal(t, "Trip planning", updated.Title)
	assert.True(t, updated.TitleLocked)
	assert.True(t, updated.UpdatedAt.After(c.UpdatedAt))
	assert.WithinDuration(t, c.CreatedAt, updated.CreatedAt, time.Millisecond)

	got, err := s.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trip planning", got.Title)

	_, err = s.UpdateTitle(ctx, c.ID, "   ")
	assert.ErrorIs(t, err, conversation.ErrValidation)

	_, err = s.UpdateTitle(ctx, uuid.NewString(), "x")
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}

func testDelete(t *testing.T, s conversation.Store) {
	ctx := context.Background()
	c := mustCreate(t, s, newUser(), "")

	require.NoError(t, s.Delete(ctx, c.ID))

	_, err := s.FindByID(ctx, c.ID)
	assert.ErrorIs(t, err, conversation.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, c.ID), conversation.ErrNotFound)
}

func testSaveAppendsMessages(t *testing.T, s conversation.Store) {
	ctx := context.Background()
	c := mustCreate(t, s, newUser(), "")

	loaded, err := s.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.NoError(t, loaded.Append(
		conversation.NewMessage(conversation.RoleUser, "what is this?", "https://img.example/cat.png"),
		conversation.NewMessage(conversation.RoleAssistant, "A cat.", ""),
	))
	require.NoError(t, s.Save(ctx, loaded))
	assert.Equal(t, int64(2), loaded.Version)

	got, err := s.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)

	assert.Equal(t, conversation.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "what is this?", got.Messages[0].Content)
	require.NotNil(t, got.Messages[0].ImageURL)
	assert.Equal(t, "https://img.example/cat.png", *got.Messages[0].ImageURL)

	assert.Equal(t, conversation.RoleAssistant, got.Messages[1].Role)
	assert.Equal(t, "A cat.", got.Messages[1].Content)
	assert.Nil(t, got.Messages[1].ImageURL)
	assert.False(t, got.Messages[1].CreatedAt.IsZero())

	assert.Equal(t, int64(2), got.Version)
	assert.WithinDuration(t, c.CreatedAt, got.CreatedAt, time.Millisecond)
}

func testSaveConflict(t *testing.T, s conversation.Store) {
	ctx := context.Background()
	c := mustCreate(t, s, newUser(), "")

	a, err := s.FindByID(ctx, c.ID)
	require.NoError(t, err)
	b, err := s.FindByID(ctx, c.ID)
	require.NoError(t, err)

	require.NoError(t, a.Append(conversation.NewMessage(conversation.RoleUser, "from a", "")))
	require.NoError(t, s.Save(ctx, a))

	require.NoError(t, b.Append(conversation.NewMessage(conversation.RoleUser, "from b", "")))
	err = s.Save(ctx, b)
	require.ErrorIs(t, err, conversation.ErrConflict)
	assert.Equal(t, int64(1), b.Version)

	got, err := s.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "from a", got.Messages[0].Content)
}

func testSaveDeleted(t *testing.T, s conversation.Store) {
	ctx := context.Background()
	c := mustCreate(t, s, newUser(), "")
	require.NoError(t, s.Delete(ctx, c.ID))

	require.NoError(t, c.Append(conversation.NewMessage(conversation.RoleUser, "late", "")))
	assert.ErrorIs(t, s.Save(ctx, c), conversation.ErrNotFound)
}

func testSaveRejectsOverCap(t *testing.T, s conversation.Store) {
	ctx := context.Background()
	c := mustCreate(t, s, newUser(), "")

	c.Messages = make([]conversation.Message, conversation.MaxMessages+1)
	for i := range c.Messages {
		c.Messages[i] = conversation.NewMessage(conversation.RoleUser, "x", "")
	}
	assert.ErrorIs(t, s.Save(ctx, c), conversation.ErrValidation)

	got, err := s.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Messages)
}

func ids(cs []*conversation.Conversation) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

// Package memory keeps conversations in a process-local map. It backs tests
// and local development; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/eternisai/chat-relay/internal/conversation"
)

type Store struct {
	mu            sync.RWMutex
	conversations map[string]*conversation.Conversation
	now           func() time.Time
}

type Option func(*Store)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		conversations: make(map[string]*conversation.Conversation),
		now:           conversation.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Create(_ context.Context, c *conversation.Conversation) error {
	if err := conversation.PrepareCreate(c, s.now()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[c.ID]; exists {
		return fmt.Errorf("%w: id %s already exists", conversation.ErrConflict, c.ID)
	}
	s.conversations[c.ID] = c.Clone()
	return nil
}

func (s *Store) FindByID(_ context.Context, id string) (*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, conversation.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *Store) FindByUser(_ context.Context, userID string) ([]*conversation.Conversation, error) {
	s.mu.RLock()
	out := make([]*conversation.Conversation, 0)
	for _, c := range s.conversations {
		if c.UserID == userID {
			out = append(out, c.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *Store) UpdateTitle(_ context.Context, id, title string) (*conversation.Conversation, error) {
	title, err := conversation.PrepareTitle(title)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, conversation.ErrNotFound
	}
	c.Title = title
	c.TitleLocked = true
	c.UpdatedAt = s.now()
	c.Version++
	return c.Clone(), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return conversation.ErrNotFound
	}
	delete(s.conversations, id)
	return nil
}

func (s *Store) Save(_ context.Context, c *conversation.Conversation) error {
	expected, err := conversation.PrepareSave(c, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.conversations[c.ID]
	if !ok {
		c.Version = expected
		return conversation.ErrNotFound
	}
	if stored.Version != expected {
		c.Version = expected
		return conversation.ErrConflict
	}
	s.conversations[c.ID] = c.Clone()
	return nil
}

func (s *Store) Close(context.Context) error {
	return nil
}

// Len returns the number of stored conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

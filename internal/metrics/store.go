package metrics

import (
	"context"
	"time"

	"github.com/eternisai/chat-relay/internal/conversation"
)

type instrumentedStore struct {
	next    conversation.Store
	metrics *Metrics
}

// InstrumentStore times every call on next. A nil m returns next unchanged.
func InstrumentStore(next conversation.Store, m *Metrics) conversation.Store {
	if m == nil {
		return next
	}
	return &instrumentedStore{next: next, metrics: m}
}

func (s *instrumentedStore) observe(op string, start time.Time, err error) {
	s.metrics.ObserveStore(op, time.Since(start), err)
}

func (s *instrumentedStore) Create(ctx context.Context, c *conversation.Conversation) error {
	start := time.Now()
	err := s.next.Create(ctx, c)
	s.observe("create", start, err)
	return err
}

func (s *instrumentedStore) FindByID(ctx context.Context, id string) (*conversation.Conversation, error) {
	start := time.Now()
	c, err := s.next.FindByID(ctx, id)
	s.observe("find_by_id", start, err)
	return c, err
}

func (s *instrumentedStore) FindByUser(ctx context.Context, userID string) ([]*conversation.Conversation, error) {
	start := time.Now()
	cs, err := s.next.FindByUser(ctx, userID)
	s.observe("find_by_user", start, err)
	return cs, err
}

func (s *instrumentedStore) UpdateTitle(ctx context.Context, id, title string) (*conversation.Conversation, error) {
	start := time.Now()
	c, err := s.next.UpdateTitle(ctx, id, title)
	s.observe("update_title", start, err)
	return c, err
}

func (s *instrumentedStore) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.next.Delete(ctx, id)
	s.observe("delete", start, err)
	return err
}

func (s *instrumentedStore) Save(ctx context.Context, c *conversation.Conversation) error {
	start := time.Now()
	err := s.next.Save(ctx, c)
	s.observe("save", start, err)
	return err
}

func (s *instrumentedStore) Close(ctx context.Context) error {
	return s.next.Close(ctx)
}

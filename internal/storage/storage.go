// Package storage builds the conversation.Store selected by configuration.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eternisai/chat-relay/internal/config"
	"github.com/eternisai/chat-relay/internal/conversation"
	"github.com/eternisai/chat-relay/internal/logger"
	"github.com/eternisai/chat-relay/internal/storage/dynamo"
	"github.com/eternisai/chat-relay/internal/storage/firestore"
	"github.com/eternisai/chat-relay/internal/storage/memory"
	"github.com/eternisai/chat-relay/internal/storage/mongo"
	"github.com/eternisai/chat-relay/internal/storage/pg"
)

// Open connects to the configured backend. Every call on the returned store
// is bounded by cfg.StoreTimeout.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (conversation.Store, error) {
	log = log.WithComponent("storage")

	store, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}

	log.Info("conversation store ready",
		slog.String("backend", cfg.StoreBackend),
		slog.Duration("timeout", cfg.StoreTimeout()))
	return WithTimeout(store, cfg.StoreTimeout()), nil
}

func open(ctx context.Context, cfg *config.Config) (conversation.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		return memory.New(), nil

	case config.StoreBackendMongo:
		return mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)

	case config.StoreBackendFirestore:
		client, err := firestore.NewClient(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredJSON)
		if err != nil {
			return nil, err
		}
		return firestore.New(client, cfg.FirestoreCollection), nil

	case config.StoreBackendPostgres:
		db, err := pg.InitDatabase(cfg.DatabaseURL, pg.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		return pg.NewStore(db), nil

	case config.StoreBackendDynamo:
		client, err := dynamo.NewClient(ctx, cfg.DynamoRegion, cfg.DynamoEndpoint)
		if err != nil {
			return nil, err
		}
		s := dynamo.New(client, cfg.DynamoTable)
		if cfg.DynamoEndpoint != "" {
			if err := s.EnsureTable(ctx); err != nil {
				return nil, err
			}
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

type timeoutStore struct {
	next    conversation.Store
	timeout time.Duration
}

// WithTimeout bounds every call on next by d. A non-positive d returns next.
func WithTimeout(next conversation.Store, d time.Duration) conversation.Store {
	if d <= 0 {
		return next
	}
	return &timeoutStore{next: next, timeout: d}
}

func (s *timeoutStore) Create(ctx context.Context, c *conversation.Conversation) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Create(ctx, c)
}

func (s *timeoutStore) FindByID(ctx context.Context, id string) (*conversation.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.FindByID(ctx, id)
}

func (s *timeoutStore) FindByUser(ctx context.Context, userID string) ([]*conversation.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.FindByUser(ctx, userID)
}

func (s *timeoutStore) UpdateTitle(ctx context.Context, id, title string) (*conversation.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.UpdateTitle(ctx, id, title)
}

func (s *timeoutStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Delete(ctx, id)
}

func (s *timeoutStore) Save(ctx context.Context, c *conversation.Conversation) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Save(ctx, c)
}

func (s *timeoutStore) Close(ctx context.Context) error {
	return s.next.Close(ctx)
}

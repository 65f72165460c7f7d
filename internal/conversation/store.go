package conversation

import "context"

// Store is durable CRUD over conversations. Implementations live under
// internal/storage and share their contract tests in storage/storetest.
type Store interface {
	// Create persists a new conversation, stamping createdAt/updatedAt and
	// the initial version.
	Create(ctx context.Context, c *Conversation) error

	// FindByID returns ErrNotFound when no conversation has that id.
	FindByID(ctx context.Context, id string) (*Conversation, error)

	// FindByUser returns the owner's conversations, most recently updated first.
	FindByUser(ctx context.Context, userID string) ([]*Conversation, error)

	// UpdateTitle sets and locks the title.
	UpdateTitle(ctx context.Context, id, title string) (*Conversation, error)

	// Delete removes the conversation permanently.
	Delete(ctx context.Context, id string) error

	// Save writes back in-memory mutations and refreshes updatedAt. It fails
	// with ErrConflict when another write landed since c was read.
	Save(ctx context.Context, c *Conversation) error

	Close(ctx context.Context) error
}

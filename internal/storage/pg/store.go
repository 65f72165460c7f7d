package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/eternisai/chat-relay/internal/conversation"
)

const uniqueViolation = "23505"

const selectColumns = `id, user_id, model, title, title_locked, messages, version, created_at, updated_at`

// Store keeps conversations in the conversations table with the message
// history in a JSONB column.
type Store struct {
	db *sql.DB
}

func NewStore(db *Database) *Store {
	return &Store{db: db.DB}
}

func (s *Store) Create(ctx context.Context, c *conversation.Conversation) error {
	if err := conversation.PrepareCreate(c, conversation.Now()); err != nil {
		return err
	}

	messages, err := json.Marshal(c.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (`+selectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.UserID, c.Model, c.Title, c.TitleLocked, messages, c.Version, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: id %s already exists", conversation.ErrConflict, c.ID)
		}
		return fmt.Errorf("failed to insert conversation %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*conversation.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM conversations WHERE id = $1`, id)
	c, err := scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, conversation.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find conversation %s: %w", id, err)
	}
	return c, nil
}

func (s *Store) FindByUser(ctx context.Context, userID string) ([]*conversation.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations for user %s: %w", userID, err)
	}
	defer rows.Close()

	out := make([]*conversation.Conversation, 0)
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateTitle(ctx context.Context, id, title string) (*conversation.Conversation, error) {
	title, err := conversation.PrepareTitle(title)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE conversations
		SET title = $2, title_locked = TRUE, updated_at = $3, version = version + 1
		WHERE id = $1
		RETURNING `+selectColumns,
		id, title, conversation.Now(),
	)
	c, err := scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, conversation.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update title of %s: %w", id, err)
	}
	return c, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	if n == 0 {
		return conversation.ErrNotFound
	}
	return nil
}

func (s *Store) Save(ctx context.Context, c *conversation.Conversation) error {
	expected, err := conversation.PrepareSave(c, conversation.Now())
	if err != nil {
		return err
	}

	messages, err := json.Marshal(c.Messages)
	if err != nil {
		c.Version = expected
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET title = $3, title_locked = $4, messages = $5, version = $6, updated_at = $7
		WHERE id = $1 AND version = $2`,
		c.ID, expected, c.Title, c.TitleLocked, messages, c.Version, c.UpdatedAt,
	)
	if err != nil {
		c.Version = expected
		return fmt.Errorf("failed to save conversation %s: %w", c.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil
	}

	c.Version = expected
	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1)`, c.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check conversation %s: %w", c.ID, err)
	}
	if !exists {
		return conversation.ErrNotFound
	}
	return conversation.ErrConflict
}

func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*conversation.Conversation, error) {
	var (
		c        conversation.Conversation
		messages []byte
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Model, &c.Title, &c.TitleLocked, &messages, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(messages, &c.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages of %s: %w", c.ID, err)
	}
	if c.Messages == nil {
		c.Messages = []conversation.Message{}
	}
	return &c, nil
}

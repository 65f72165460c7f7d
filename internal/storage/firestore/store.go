// Package firestore keeps conversations in a Cloud Firestore collection, one
// document per conversation keyed by its id.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/eternisai/chat-relay/internal/conversation"
)

type Store struct {
	client     *firestore.Client
	collection string
}

// NewClient creates a Firestore client through the Firebase app for projectID.
func NewClient(ctx context.Context, projectID, credJSON string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %v", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Firestore client: %w", err)
	}
	return client, nil
}

func New(client *firestore.Client, collection string) *Store {
	return &Store{client: client, collection: collection}
}

func (s *Store) doc(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

func (s *Store) Create(ctx context.Context, c *conversation.Conversation) error {
	if err := conversation.PrepareCreate(c, conversation.Now()); err != nil {
		return err
	}

	if _, err := s.doc(c.ID).Create(ctx, c); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%w: id %s already exists", conversation.ErrConflict, c.ID)
		}
		return fmt.Errorf("failed to create conversation %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*conversation.Conversation, error) {
	snap, err := s.doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, conversation.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	return decode(snap)
}

// FindByUser needs the composite index (userId ASC, updatedAt DESC).
func (s *Store) FindByUser(ctx context.Context, userID string) ([]*conversation.Conversation, error) {
	snaps, err := s.client.Collection(s.collection).
		Where("userId", "==", userID).
		OrderBy("updatedAt", firestore.Desc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations for user %s: %w", userID, err)
	}

	out := make([]*conversation.Conversation, 0, len(snaps))
	for _, snap := range snaps {
		c, err := decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) UpdateTitle(ctx context.Context, id, title string) (*conversation.Conversation, error) {
	title, err := conversation.PrepareTitle(title)
	if err != nil {
		return nil, err
	}

	var updated *conversation.Conversation
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := s.doc(id)
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return conversation.ErrNotFound
			}
			return err
		}
		c, err := decode(snap)
		if err != nil {
			return err
		}

		c.Title = title
		c.TitleLocked = true
		c.UpdatedAt = conversation.Now()
		c.Version++
		updated = c
		return tx.Set(ref, c)
	})
	if err != nil {
		return nil, wrap(err, "failed to update title of %s", id)
	}
	return updated, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.doc(id).Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return conversation.ErrNotFound
		}
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, c *conversation.Conversation) error {
	expected, err := conversation.PrepareSave(c, conversation.Now())
	if err != nil {
		return err
	}

	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := s.doc(c.ID)
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return conversation.ErrNotFound
			}
			return err
		}

		var stored struct {
			Version int64 `firestore:"version"`
		}
		if err := snap.DataTo(&stored); err != nil {
			return err
		}
		if stored.Version != expected {
			return conversation.ErrConflict
		}
		return tx.Set(ref, c)
	})
	if err != nil {
		c.Version = expected
		return wrap(err, "failed to save conversation %s", c.ID)
	}
	return nil
}

func (s *Store) Close(context.Context) error {
	return s.client.Close()
}

func decode(snap *firestore.DocumentSnapshot) (*conversation.Conversation, error) {
	var c conversation.Conversation
	if err := snap.DataTo(&c); err != nil {
		return nil, fmt.Errorf("failed to parse conversation %s: %w", snap.Ref.ID, err)
	}
	if c.Messages == nil {
		c.Messages = []conversation.Message{}
	}
	return &c, nil
}

// wrap leaves domain sentinels untouched so callers can match them.
func wrap(err error, format string, args ...any) error {
	switch {
	case errors.Is(err, conversation.ErrNotFound), errors.Is(err, conversation.ErrConflict):
		return err
	default:
		return fmt.Errorf(format+": %w", append(args, err)...)
	}
}

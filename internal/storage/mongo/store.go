// Package mongo stores each conversation as one MongoDB document with its
// messages embedded.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/eternisai/chat-relay/internal/conversation"
)

const textIndexName = "title_messages_content_text"

type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Connect dials uri, verifies the connection and ensures indexes exist.
func Connect(ctx context.Context, uri, database, collection string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	s := &Store{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "updatedAt", Value: -1}},
		},
		{
			Keys: bson.D{
				{Key: "title", Value: "text"},
				{Key: "messages.content", Value: "text"},
			},
			Options: options.Index().SetName(textIndexName),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, c *conversation.Conversation) error {
	if err := conversation.PrepareCreate(c, conversation.Now()); err != nil {
		return err
	}

	if _, err := s.collection.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: id %s already exists", conversation.ErrConflict, c.ID)
		}
		return fmt.Errorf("failed to insert conversation %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*conversation.Conversation, error) {
	var c conversation.Conversation
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, conversation.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find conversation %s: %w", id, err)
	}
	return normalize(&c), nil
}

func (s *Store) FindByUser(ctx context.Context, userID string) ([]*conversation.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations for user %s: %w", userID, err)
	}

	var out []*conversation.Conversation
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode conversations for user %s: %w", userID, err)
	}
	if out == nil {
		out = []*conversation.Conversation{}
	}
	for _, c := range out {
		normalize(c)
	}
	return out, nil
}

func (s *Store) UpdateTitle(ctx context.Context, id, title string) (*conversation.Conversation, error) {
	title, err := conversation.PrepareTitle(title)
	if err != nil {
		return nil, err
	}

	update := bson.M{
		"$set": bson.M{
			"title":       title,
			"titleLocked": true,
			"updatedAt":   conversation.Now(),
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var c conversation.Conversation
	err = s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, conversation.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update title of %s: %w", id, err)
	}
	return normalize(&c), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return conversation.ErrNotFound
	}
	return nil
}

func (s *Store) Save(ctx context.Context, c *conversation.Conversation) error {
	expected, err := conversation.PrepareSave(c, conversation.Now())
	if err != nil {
		return err
	}

	res, err := s.collection.ReplaceOne(ctx, bson.M{"_id": c.ID, "version": expected}, c)
	if err != nil {
		c.Version = expected
		return fmt.Errorf("failed to save conversation %s: %w", c.ID, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	c.Version = expected
	n, err := s.collection.CountDocuments(ctx, bson.M{"_id": c.ID})
	if err != nil {
		return fmt.Errorf("failed to check conversation %s: %w", c.ID, err)
	}
	if n == 0 {
		return conversation.ErrNotFound
	}
	return conversation.ErrConflict
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func normalize(c *conversation.Conversation) *conversation.Conversation {
	if c.Messages == nil {
		c.Messages = []conversation.Message{}
	}
	return c
}

// Package dynamo keeps conversations in a DynamoDB table keyed by id, with a
// global secondary index for listing a user's conversations by recency.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/eternisai/chat-relay/internal/conversation"
)

const UserIndex = "userId-updatedAt-index"

type Store struct {
	client *ddb.Client
	table  string
}

// NewClient loads the default AWS configuration for region. A non-empty
// endpoint points the client at DynamoDB Local with static credentials.
func NewClient(ctx context.Context, region, endpoint string) (*ddb.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: endpoint}, nil
		})
		opts = append(opts,
			config.WithEndpointResolverWithOptions(resolver),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")),
		)
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return ddb.NewFromConfig(cfg), nil
}

func New(client *ddb.Client, table string) *Store {
	return &Store{client: client, table: table}
}

// EnsureTable creates the table and its user index when missing.
func (s *Store) EnsureTable(ctx context.Context) error {
	_, err := s.client.CreateTable(ctx, &ddb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("userId"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("updatedAt"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{{
			IndexName: aws.String(UserIndex),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("userId"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String("updatedAt"), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, c *conversation.Conversation) error {
	if err := conversation.PrepareCreate(c, conversation.Now()); err != nil {
		return err
	}

	_, err := s.client.PutItem(ctx, &ddb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                encodeItem(c),
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("%w: id %s already exists", conversation.ErrConflict, c.ID)
		}
		if isItemTooLarge(err) {
			return fmt.Errorf("%w: conversation %s exceeds the 400 KB item limit", conversation.ErrValidation, c.ID)
		}
		return fmt.Errorf("failed to put conversation %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*conversation.Conversation, error) {
	out, err := s.client.GetItem(ctx, &ddb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            map[string]types.AttributeValue{"id": str(id)},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	if out.Item == nil {
		return nil, conversation.ErrNotFound
	}
	return decodeItem(out.Item)
}

func (s *Store) FindByUser(ctx context.Context, userID string) ([]*conversation.Conversation, error) {
	out := make([]*conversation.Conversation, 0)

	var startKey map[string]types.AttributeValue
	for {
		page, err := s.client.Query(ctx, &ddb.QueryInput{
			TableName:              aws.String(s.table),
			IndexName:              aws.String(UserIndex),
			KeyConditionExpression: aws.String("#userId = :u"),
			ExpressionAttributeNames: map[string]string{
				"#userId": "userId",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":u": str(userID),
			},
			ExclusiveStartKey: startKey,
			ScanIndexForward:  aws.Bool(false),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query conversations for user %s: %w", userID, err)
		}

		for _, item := range page.Items {
			c, err := decodeItem(item)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}

		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		startKey = page.LastEvaluatedKey
	}
}

func (s *Store) UpdateTitle(ctx context.Context, id, title string) (*conversation.Conversation, error) {
	title, err := conversation.PrepareTitle(title)
	if err != nil {
		return nil, err
	}

	out, err := s.client.UpdateItem(ctx, &ddb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 map[string]types.AttributeValue{"id": str(id)},
		UpdateExpression:    aws.String("SET #title = :t, #titleLocked = :l, #updatedAt = :u ADD #version :one"),
		ConditionExpression: aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id":          "id",
			"#title":       "title",
			"#titleLocked": "titleLocked",
			"#updatedAt":   "updatedAt",
			"#version":     "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":   str(title),
			":l":   &types.AttributeValueMemberBOOL{Value: true},
			":u":   str(formatTime(conversation.Now())),
			":one": num(1),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, conversation.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update title of %s: %w", id, err)
	}
	return decodeItem(out.Attributes)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &ddb.DeleteItemInput{
		TableName:           aws.String(s.table),
		Key:                 map[string]types.AttributeValue{"id": str(id)},
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
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

	_, err = s.client.PutItem(ctx, &ddb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                encodeItem(c),
		ConditionExpression: aws.String("attribute_exists(#id) AND #version = :expected"),
		ExpressionAttributeNames: map[string]string{
			"#id":      "id",
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": num(expected),
		},
	})
	if err == nil {
		return nil
	}

	c.Version = expected
	if isItemTooLarge(err) {
		return fmt.Errorf("%w: conversation %s exceeds the 400 KB item limit", conversation.ErrValidation, c.ID)
	}
	if !isConditionFailed(err) {
		return fmt.Errorf("failed to save conversation %s: %w", c.ID, err)
	}
	if _, err := s.FindByID(ctx, c.ID); err != nil {
		return err
	}
	return conversation.ErrConflict
}

func (s *Store) Close(context.Context) error {
	return nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// isItemTooLarge reports the ValidationException DynamoDB returns for items
// over its 400 KB size limit.
func isItemTooLarge(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "ValidationException" {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "item size")
}

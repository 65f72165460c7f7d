package dynamo

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/eternisai/chat-relay/internal/conversation"
)

// Fixed-width UTC layout so updatedAt sorts lexicographically in the GSI.
const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func str(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

func num(v int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}

func encodeItem(c *conversation.Conversation) map[string]types.AttributeValue {
	messages := make([]types.AttributeValue, len(c.Messages))
	for i, m := range c.Messages {
		image := types.AttributeValue(&types.AttributeValueMemberNULL{Value: true})
		if m.ImageURL != nil {
			image = str(*m.ImageURL)
		}
		messages[i] = &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"role":      str(string(m.Role)),
			"content":   str(m.Content),
			"imageUrl":  image,
			"createdAt": str(formatTime(m.CreatedAt)),
		}}
	}

	return map[string]types.AttributeValue{
		"id":          str(c.ID),
		"userId":      str(c.UserID),
		"model":       str(c.Model),
		"title":       str(c.Title),
		"titleLocked": &types.AttributeValueMemberBOOL{Value: c.TitleLocked},
		"messages":    &types.AttributeValueMemberL{Value: messages},
		"version":     num(c.Version),
		"createdAt":   str(formatTime(c.CreatedAt)),
		"updatedAt":   str(formatTime(c.UpdatedAt)),
	}
}

func decodeItem(item map[string]types.AttributeValue) (*conversation.Conversation, error) {
	c := &conversation.Conversation{
		ID:       attrS(item, "id"),
		UserID:   attrS(item, "userId"),
		Model:    attrS(item, "model"),
		Title:    attrS(item, "title"),
		Messages: []conversation.Message{},
	}

	if v, ok := item["titleLocked"].(*types.AttributeValueMemberBOOL); ok {
		c.TitleLocked = v.Value
	}

	if v, ok := item["version"].(*types.AttributeValueMemberN); ok {
		n, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid version on %s: %w", c.ID, err)
		}
		c.Version = n
	}

	var err error
	if c.CreatedAt, err = parseTime(attrS(item, "createdAt")); err != nil {
		return nil, fmt.Errorf("invalid createdAt on %s: %w", c.ID, err)
	}
	if c.UpdatedAt, err = parseTime(attrS(item, "updatedAt")); err != nil {
		return nil, fmt.Errorf("invalid updatedAt on %s: %w", c.ID, err)
	}

	list, _ := item["messages"].(*types.AttributeValueMemberL)
	if list == nil {
		return c, nil
	}
	for i, av := range list.Value {
		m, ok := av.(*types.AttributeValueMemberM)
		if !ok {
			return nil, fmt.Errorf("message %d on %s is not a map", i, c.ID)
		}
		msg := conversation.Message{
			Role:    conversation.Role(attrS(m.Value, "role")),
			Content: attrS(m.Value, "content"),
		}
		if url, ok := m.Value["imageUrl"].(*types.AttributeValueMemberS); ok {
			u := url.Value
			msg.ImageURL = &u
		}
		if msg.CreatedAt, err = parseTime(attrS(m.Value, "createdAt")); err != nil {
			return nil, fmt.Errorf("invalid createdAt on message %d of %s: %w", i, c.ID, err)
		}
		c.Messages = append(c.Messages, msg)
	}
	return c, nil
}

func attrS(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Role is the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

const (
	// MaxMessages is the hard cap on messages stored in one conversation.
	MaxMessages = 1000
	// MaxTitleLength is measured in characters (runes), not bytes.
	MaxTitleLength = 100
)

// Message is one entry of a conversation's history.
type Message struct {
	Role      Role      `json:"role" bson:"role" firestore:"role"`
	Content   string    `json:"content" bson:"content" firestore:"content"`
	ImageURL  *string   `json:"imageUrl" bson:"imageUrl" firestore:"imageUrl"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt" firestore:"createdAt"`
}

// Conversation is a titled, owned thread of chat messages.
type Conversation struct {
	ID     string `json:"id" bson:"_id" firestore:"id"`
	UserID string `json:"userId" bson:"userId" firestore:"userId"`
	Model  string `json:"model" bson:"model" firestore:"model"`
	Title  string `json:"title" bson:"title" firestore:"title"`
	// TitleLocked is set once a title was chosen explicitly; derived titles
	// never overwrite a locked one.
	TitleLocked bool      `json:"titleLocked" bson:"titleLocked" firestore:"titleLocked"`
	Messages    []Message `json:"messages" bson:"messages" firestore:"messages"`
	// Version is bumped by every successful write and checked by Save.
	Version   int64     `json:"-" bson:"version" firestore:"version"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt" firestore:"updatedAt"`
}

// New returns an unsaved conversation with a fresh ID and no messages.
// An explicit title locks it against later derivation; an empty one falls
// back to DefaultTitle.
func New(userID, model, explicitTitle string) *Conversation {
	c := &Conversation{
		ID:       uuid.New().String(),
		UserID:   userID,
		Model:    model,
		Title:    DefaultTitle,
		Messages: []Message{},
	}
	if title := NormalizeTitle(explicitTitle); title != "" {
		c.Title = title
		c.TitleLocked = true
	}
	return c
}

// NewMessage builds a message stamped with the current time. An empty
// imageURL is stored as null.
func NewMessage(role Role, content, imageURL string) Message {
	m := Message{
		Role:      role,
		Content:   content,
		CreatedAt: Now(),
	}
	if imageURL != "" {
		m.ImageURL = &imageURL
	}
	return m
}

// Append adds messages to the end of the history. It refuses the whole batch
// when it would push the conversation past MaxMessages.
func (c *Conversation) Append(msgs ...Message) error {
	if err := c.CheckAppend(len(msgs)); err != nil {
		return err
	}
	c.Messages = append(c.Messages, msgs...)
	return nil
}

// CheckAppend reports whether n more messages still fit under MaxMessages.
func (c *Conversation) CheckAppend(n int) error {
	if len(c.Messages)+n > MaxMessages {
		return validationf("maximum %d messages per conversation", MaxMessages)
	}
	return nil
}

// Clone returns a deep copy.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		if m.ImageURL != nil {
			url := *m.ImageURL
			m.ImageURL = &url
		}
		out.Messages[i] = m
	}
	return &out
}

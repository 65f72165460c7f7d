package conversation

import "strings"

// Prepare normalizes c in place and checks every invariant a store enforces
// at write time. Backends call it before each Create and Save.
func Prepare(c *Conversation) error {
	if c == nil {
		return validationf("conversation is nil")
	}
	if strings.TrimSpace(c.ID) == "" {
		return validationf("id is required")
	}
	if strings.TrimSpace(c.UserID) == "" {
		return validationf("userId is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		return validationf("model is required")
	}

	c.Title = NormalizeTitle(c.Title)
	if c.Title == "" {
		return validationf("title is required")
	}

	if len(c.Messages) > MaxMessages {
		return validationf("maximum %d messages per conversation", MaxMessages)
	}
	for i, m := range c.Messages {
		if !m.Role.Valid() {
			return validationf("message %d has invalid role %q", i, m.Role)
		}
	}
	if c.Messages == nil {
		c.Messages = []Message{}
	}

	return nil
}

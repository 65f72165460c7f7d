package chat

import (
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/eternisai/chat-relay/internal/conversation"
)

// Assembly is the outcome of turning one client turn into an upstream payload.
type Assembly struct {
	// Payload is nil when ShortCircuit is set.
	Payload []openai.ChatCompletionMessage
	// UserMessage is appended to the conversation whether or not the
	// upstream model is called.
	UserMessage conversation.Message
	// ShortCircuit means the turn is answered locally with Reply.
	ShortCircuit bool
	Reply        string
}

// Assembler builds upstream payloads. Image-only turns need VisionModel;
// any other model gets VisionRequiredReply instead of an upstream call.
type Assembler struct {
	VisionModel         string
	VisionRequiredReply string
}

// Assemble validates the turn and builds the payload for targetModel.
func (a Assembler) Assemble(text, imageURL, targetModel string) (*Assembly, error) {
	hasText := strings.TrimSpace(text) != ""
	imageURL = strings.TrimSpace(imageURL)
	hasImage := imageURL != ""

	if !hasText && !hasImage {
		return nil, conversation.ErrMessageRequired
	}
	if !hasText {
		text = ""
	}

	out := &Assembly{
		UserMessage: conversation.NewMessage(conversation.RoleUser, text, imageURL),
	}

	switch {
	case !hasText && targetModel != a.VisionModel:
		out.ShortCircuit = true
		out.Reply = a.VisionRequiredReply

	case !hasText:
		out.Payload = []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				imagePart(imageURL),
			},
		}}

	case hasImage:
		out.Payload = []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: text},
				imagePart(imageURL),
			},
		}}

	default:
		out.Payload = []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: text,
		}}
	}

	return out, nil
}

func imagePart(url string) openai.ChatMessagePart {
	return openai.ChatMessagePart{
		Type:     openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{URL: url},
	}
}

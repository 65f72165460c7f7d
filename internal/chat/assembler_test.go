package chat

import (
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eternisai/chat-relay/internal/conversation"
)

const (
	testVision = "gpt-4o"
	testReply  = "Use GPT-4o to get responses for image input."
	testImage  = "https://img.example/cat.png"
)

var testAssembler = Assembler{VisionModel: testVision, VisionRequiredReply: testReply}

func TestAssembleTextOnly(t *testing.T) {
	out, err := testAssembler.Assemble("Hi", "", "gpt-4.1-nano")
	require.NoError(t, err)

	assert.False(t, out.ShortCircuit)
	require.Len(t, out.Payload, 1)
	assert.Equal(t, openai.ChatMessageRoleUser, out.Payload[0].Role)
	assert.Equal(t, "Hi", out.Payload[0].Content)
	assert.Empty(t, out.Payload[0].MultiContent)

	assert.Equal(t, conversation.RoleUser, out.UserMessage.Role)
	assert.Equal(t, "Hi", out.UserMessage.Content)
	assert.Nil(t, out.UserMessage.ImageURL)
}

func TestAssembleTextAndImageKeepsPartOrder(t *testing.T) {
	out, err := testAssembler.Assemble("What is this?", testImage, "gpt-4.1-nano")
	require.NoError(t, err)

	require.Len(t, out.Payload, 1)
	parts := out.Payload[0].MultiContent
	require.Len(t, parts, 2)
	assert.Equal(t, openai.ChatMessagePartTypeText, parts[0].Type)
	assert.Equal(t, "What is this?", parts[0].Text)
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, parts[1].Type)
	require.NotNil(t, parts[1].ImageURL)
	assert.Equal(t, testImage, parts[1].ImageURL.URL)
	assert.Empty(t, out.Payload[0].Content)

	assert.Equal(t, "What is this?", out.UserMessage.Content)
	require.NotNil(t, out.UserMessage.ImageURL)
	assert.Equal(t, testImage, *out.UserMessage.ImageURL)
}

func TestAssembleImageOnlyVisionModel(t *testing.T) {
	out, err := testAssembler.Assemble("", testImage, testVision)
	require.NoError(t, err)

	assert.False(t, out.ShortCircuit)
	require.Len(t, out.Payload, 1)
	parts := out.Payload[0].MultiContent
	require.Len(t, parts, 1)
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, parts[0].Type)
	assert.Equal(t, testImage, parts[0].ImageURL.URL)

	assert.Equal(t, "", out.UserMessage.Content)
}

func TestAssembleImageOnlyShortCircuits(t *testing.T) {
	out, err := testAssembler.Assemble("   ", testImage, "gpt-4.1-nano")
	require.NoError(t, err)

	assert.True(t, out.ShortCircuit)
	assert.Nil(t, out.Payload)
	assert.Equal(t, testReply, out.Reply)
	assert.Equal(t, "", out.UserMessage.Content)
	require.NotNil(t, out.UserMessage.ImageURL)
	assert.Equal(t, testImage, *out.UserMessage.ImageURL)
}

func TestAssembleRequiresTextOrImage(t *testing.T) {
	for _, text := range []string{"", "  \n\t"} {
		_, err := testAssembler.Assemble(text, "", "gpt-4o")
		assert.ErrorIs(t, err, conversation.ErrInvalidInput)
	}
}

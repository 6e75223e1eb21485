package translate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/llmrouter/internal/message"
)

func decodeOpenAIRequest(t *testing.T, body string) *OpenAIRequest {
	t.Helper()
	var req OpenAIRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return &req
}

func TestOpenAIToCanonicalTextMessage(t *testing.T) {
	req := decodeOpenAIRequest(t, `{
		"model": "gpt-4o",
		"messages": [
			{"role": "system", "content": "be terse"},
			{"role": "user", "content": "hi"}
		]
	}`)

	canon := OpenAIToCanonical(req)

	require.NotNil(t, canon.System)
	assert.Equal(t, "be terse", canon.System.Flatten())
	require.Len(t, canon.Messages, 1)
	assert.Equal(t, "user", canon.Messages[0].Role)
	assert.False(t, canon.Messages[0].Content.IsBlocks())
	assert.Equal(t, "hi", canon.Messages[0].Content.Text)
	assert.Equal(t, message.DefaultMaxTokens, canon.MaxTokens)
}

// S3 from the spec: an image_url part with a data: URL splits into media
// type + base64 payload.
func TestOpenAIToCanonicalWithImage(t *testing.T) {
	req := decodeOpenAIRequest(t, `{
		"model": "gpt-4o",
		"messages": [
			{"role": "user", "content": [
				{"type": "text", "text": "hi"},
				{"type": "image_url", "image_url": {"url": "data:image/jpeg;base64,AAA"}}
			]}
		]
	}`)

	canon := OpenAIToCanonical(req)

	require.Len(t, canon.Messages, 1)
	content := canon.Messages[0].Content
	require.True(t, content.IsBlocks())
	require.Len(t, content.Blocks, 2)

	assert.Equal(t, message.BlockText, content.Blocks[0].Type)
	assert.Equal(t, "hi", content.Blocks[0].Text)

	assert.Equal(t, message.BlockImage, content.Blocks[1].Type)
	require.NotNil(t, content.Blocks[1].Source)
	assert.Equal(t, "base64", content.Blocks[1].Source.Type)
	assert.Equal(t, "image/jpeg", content.Blocks[1].Source.MediaType)
	assert.Equal(t, "AAA", content.Blocks[1].Source.Data)
}

func TestOpenAIToCanonicalExternalImageURL(t *testing.T) {
	req := decodeOpenAIRequest(t, `{
		"model": "gpt-4o",
		"messages": [
			{"role": "user", "content": [
				{"type": "image_url", "image_url": {"url": "https://example.com/cat.png"}}
			]}
		]
	}`)

	canon := OpenAIToCanonical(req)
	block := canon.Messages[0].Content.Blocks[0]
	assert.Equal(t, "url", block.Source.Type)
	assert.Equal(t, "https://example.com/cat.png", block.Source.URL)
}

func TestOpenAIToCanonicalUnknownMediaTypeFallsBackToPNG(t *testing.T) {
	req := decodeOpenAIRequest(t, `{
		"model": "gpt-4o",
		"messages": [
			{"role": "user", "content": [
				{"type": "image_url", "image_url": {"url": "data:image/bmp;base64,AAA"}}
			]}
		]
	}`)

	canon := OpenAIToCanonical(req)
	assert.Equal(t, "image/png", canon.Messages[0].Content.Blocks[0].Source.MediaType)
}

func TestOpenAIToCanonicalSkipsToolRole(t *testing.T) {
	req := decodeOpenAIRequest(t, `{
		"model": "gpt-4o",
		"messages": [
			{"role": "user", "content": "hi"},
			{"role": "tool", "content": "result", "name": "lookup"}
		]
	}`)

	canon := OpenAIToCanonical(req)
	require.Len(t, canon.Messages, 1)
	assert.Equal(t, "user", canon.Messages[0].Role)
}

func TestOpenAIToCanonicalMultipleSystemMessagesJoinWithNewline(t *testing.T) {
	req := decodeOpenAIRequest(t, `{
		"model": "gpt-4o",
		"messages": [
			{"role": "system", "content": "first"},
			{"role": "system", "content": "second"},
			{"role": "user", "content": "hi"}
		]
	}`)

	canon := OpenAIToCanonical(req)
	assert.Equal(t, "first\nsecond", canon.System.Flatten())
}

func TestCanonicalToOpenAIResponseConcatenatesTextBlocks(t *testing.T) {
	stop := "end_turn"
	resp := &message.CanonicalResponse{
		ID:         "msg_1",
		Role:       "assistant",
		Model:      "claude-haiku-4-5-20251001",
		StopReason: &stop,
		Content: []message.ContentBlock{
			message.TextBlock("hello"),
			message.TextBlock("world"),
			{Type: message.BlockToolUse, Name: "lookup"},
		},
		Usage: message.Usage{InputTokens: 3, OutputTokens: 5},
	}

	out := CanonicalToOpenAIResponse(resp)

	require.Len(t, out.Choices, 1)
	require.NotNil(t, out.Choices[0].Message.Content)
	assert.Equal(t, "hello\nworld", *out.Choices[0].Message.Content)
	require.NotNil(t, out.Choices[0].FinishReason)
	assert.Equal(t, "stop", *out.Choices[0].FinishReason)
	assert.Equal(t, "chat.completion", out.Object)
	assert.Equal(t, 3, out.Usage.PromptTokens)
	assert.Equal(t, 5, out.Usage.CompletionTokens)
	assert.Equal(t, 8, out.Usage.TotalTokens)
}

func TestCanonicalToOpenAIResponseEmptyContentIsNull(t *testing.T) {
	resp := &message.CanonicalResponse{
		ID:      "msg_1",
		Role:    "assistant",
		Model:   "claude-haiku-4-5-20251001",
		Content: []message.ContentBlock{{Type: message.BlockToolUse, Name: "lookup"}},
	}

	out := CanonicalToOpenAIResponse(resp)
	assert.Nil(t, out.Choices[0].Message.Content)
}

func TestMapStopReasonToOpenAI(t *testing.T) {
	assert.Equal(t, "stop", mapStopReasonToOpenAI("end_turn"))
	assert.Equal(t, "stop", mapStopReasonToOpenAI("stop_sequence"))
	assert.Equal(t, "length", mapStopReasonToOpenAI("max_tokens"))
	assert.Equal(t, "stop", mapStopReasonToOpenAI("unknown_reason"))
}

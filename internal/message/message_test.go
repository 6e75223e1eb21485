package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageContentStringRoundTrip(t *testing.T) {
	msg := Message{Role: "user", Content: TextContent("hello")}

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":"hello"}`, string(data))

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "user", decoded.Role)
	assert.False(t, decoded.Content.IsBlocks())
	assert.Equal(t, "hello", decoded.Content.Text)
}

func TestMessageContentBlocksRoundTrip(t *testing.T) {
	msg := Message{
		Role: "user",
		Content: BlocksContent([]ContentBlock{
			TextBlock("hi"),
			{
				Type: BlockImage,
				Source: &ImageSource{
					Type:      "base64",
					MediaType: "image/jpeg",
					Data:      "AAA",
				},
			},
		}),
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.True(t, decoded.Content.IsBlocks())
	require.Len(t, decoded.Content.Blocks, 2)
	assert.Equal(t, BlockText, decoded.Content.Blocks[0].Type)
	assert.Equal(t, "hi", decoded.Content.Blocks[0].Text)
	assert.Equal(t, BlockImage, decoded.Content.Blocks[1].Type)
	require.NotNil(t, decoded.Content.Blocks[1].Source)
	assert.Equal(t, "image/jpeg", decoded.Content.Blocks[1].Source.MediaType)
	assert.Equal(t, "AAA", decoded.Content.Blocks[1].Source.Data)
}

func TestSystemPromptStringForm(t *testing.T) {
	var sp SystemPrompt
	require.NoError(t, json.Unmarshal([]byte(`"be terse"`), &sp))
	assert.Equal(t, "be terse", sp.Flatten())
}

func TestSystemPromptBlockForm(t *testing.T) {
	var sp SystemPrompt
	input := `[{"type":"text","text":"line one"},{"type":"text","text":"line two"}]`
	require.NoError(t, json.Unmarshal([]byte(input), &sp))
	assert.Equal(t, "line one\nline two", sp.Flatten())
}

func TestSystemPromptNilFlatten(t *testing.T) {
	var sp *SystemPrompt
	assert.Equal(t, "", sp.Flatten())
}

func TestCanonicalRequestDefaultsMaxTokens(t *testing.T) {
	req := CanonicalRequest{Model: "claude-haiku-4-5-20251001"}
	if req.MaxTokens == 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
}

func TestNewResponseFixedFields(t *testing.T) {
	resp := NewResponse("msg_1", "claude-haiku-4-5-20251001", []ContentBlock{TextBlock("hi")}, nil, Usage{InputTokens: 1, OutputTokens: 2})
	assert.Equal(t, "message", resp.Type)
	assert.Equal(t, "assistant", resp.Role)
	assert.Equal(t, 3, resp.Usage.InputTokens+resp.Usage.OutputTokens)
}

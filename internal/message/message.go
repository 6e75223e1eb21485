// Package message defines the canonical chat request/response shape that
// every wire translator and provider backend in llmrouter works with.
//
// The gateway accepts two inbound shapes (Anthropic Messages, OpenAI Chat
// Completions) and talks to several outbound shapes (Anthropic-compatible,
// OpenAI-compatible, Gemini). Rather than writing N×M translators, every
// inbound shape is converted once into the types in this package, and every
// outbound shape is built once from them. This is the "lingua franca" the
// rest of the gateway is built around.
//
// The canonical shape mirrors Anthropic's Messages API on the wire: content
// is either a plain JSON string or an array of tagged content blocks. Go
// doesn't have sum types, so MessageContent and ContentBlock implement
// MarshalJSON/UnmarshalJSON by hand — similar to how a TypeScript
// `string | Block[]` union gets narrowed at runtime with a typeof check.
package message

import (
	"encoding/json"
	"fmt"
)

// CanonicalRequest is the internal representation of a chat request, shared
// by every inbound translator and every outbound provider backend.
type CanonicalRequest struct {
	Model         string        `json:"model"`
	Messages      []Message     `json:"messages"`
	System        *SystemPrompt `json:"system,omitempty"`
	MaxTokens     int           `json:"max_tokens"`
	Temperature   *float64      `json:"temperature,omitempty"`
	TopP          *float64      `json:"top_p,omitempty"`
	TopK          *int          `json:"top_k,omitempty"`
	StopSequences []string      `json:"stop_sequences,omitempty"`
	Stream        bool          `json:"stream,omitempty"`
	Tools         []Tool        `json:"tools,omitempty"`
}

// DefaultMaxTokens is used whenever an inbound request omits max_tokens.
// Anthropic's API rejects requests without it, so every translator that
// produces a CanonicalRequest applies this default up front rather than
// leaving it to each backend to guess.
const DefaultMaxTokens = 4096

// Message is one turn in the conversation. Only "user" and "assistant" are
// valid canonical roles — inbound translators pull system-role content out
// into CanonicalRequest.System before a Message is ever constructed.
type Message struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// Tool describes a callable function a model may invoke. InputSchema is
// kept as raw JSON rather than a typed struct: it's an arbitrary JSON Schema
// document supplied by the caller, and the gateway never inspects it except
// to strip metadata keys Gemini rejects (see the translate package).
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// Usage holds token counts, normalized across every provider's own naming
// (input_tokens/output_tokens, promptTokenCount/candidatesTokenCount, ...).
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// CanonicalResponse is the internal representation of a complete chat
// response. Every provider backend builds one of these from its own wire
// response shape.
type CanonicalResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason *string        `json:"stop_reason,omitempty"`
	Usage      Usage          `json:"usage"`
}

// NewResponse builds a CanonicalResponse with the fixed fields every backend
// shares (type and role never vary per the Messages API shape).
func NewResponse(id, model string, content []ContentBlock, stopReason *string, usage Usage) CanonicalResponse {
	return CanonicalResponse{
		ID:         id,
		Type:       "message",
		Role:       "assistant",
		Content:    content,
		Model:      model,
		StopReason: stopReason,
		Usage:      usage,
	}
}

// ---------------------------------------------------------------------------
// MessageContent: string | []ContentBlock
// ---------------------------------------------------------------------------

// MessageContent holds the content of one message. On the wire it's either
// a JSON string (the common case) or a JSON array of content blocks
// (multimodal or tool-bearing turns). Exactly one of Text/Blocks is set;
// IsBlocks reports which.
type MessageContent struct {
	Text     string
	Blocks   []ContentBlock
	isBlocks bool
}

// TextContent builds a plain-string MessageContent.
func TextContent(text string) MessageContent {
	return MessageContent{Text: text}
}

// BlocksContent builds a content-block-array MessageContent.
func BlocksContent(blocks []ContentBlock) MessageContent {
	return MessageContent{Blocks: blocks, isBlocks: true}
}

// IsBlocks reports whether this content is the array form.
func (c MessageContent) IsBlocks() bool {
	return c.isBlocks
}

// MarshalJSON emits a bare string when the content is text, or an array of
// tagged blocks otherwise.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.isBlocks {
		return json.Marshal(c.Blocks)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts either shape. A leading '"' means a plain string;
// anything else (an array) is decoded as content blocks. This is the same
// "peek at the first byte" trick used below for SystemPrompt — cheaper than
// attempting one shape and falling back to the other on error.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("message: empty content")
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("message: decoding string content: %w", err)
		}
		*c = MessageContent{Text: s}
		return nil
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("message: decoding block content: %w", err)
	}
	*c = MessageContent{Blocks: blocks, isBlocks: true}
	return nil
}

// ---------------------------------------------------------------------------
// SystemPrompt: string | []text block
// ---------------------------------------------------------------------------

// SystemPrompt holds a system message, which Anthropic's API accepts as
// either a bare string or an array of `{"type":"text","text":"..."}` blocks.
// Flatten joins the array form with newlines, matching the spec's flattening
// rule used by every translator that only needs the text.
type SystemPrompt struct {
	Text   string
	Blocks []string
	blocky bool
}

// NewSystemText builds a string-form SystemPrompt.
func NewSystemText(text string) *SystemPrompt {
	return &SystemPrompt{Text: text}
}

// Flatten returns the system prompt as a single string, joining block-form
// prompts with newlines.
func (s *SystemPrompt) Flatten() string {
	if s == nil {
		return ""
	}
	if !s.blocky {
		return s.Text
	}
	out := ""
	for i, b := range s.Blocks {
		if i > 0 {
			out += "\n"
		}
		out += b
	}
	return out
}

type systemTextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MarshalJSON emits a bare string; the gateway never needs to emit the
// block form itself, only parse it from inbound Anthropic-shaped requests.
func (s SystemPrompt) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Flatten())
}

// UnmarshalJSON accepts either the string or block-array form.
func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("message: empty system prompt")
	}

	if data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("message: decoding system text: %w", err)
		}
		*s = SystemPrompt{Text: text}
		return nil
	}

	var blocks []systemTextBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("message: decoding system blocks: %w", err)
	}
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}
	*s = SystemPrompt{Blocks: texts, blocky: true}
	return nil
}

// ---------------------------------------------------------------------------
// ContentBlock: tagged union of Text, Image, Thinking, ToolUse, ToolResult
// ---------------------------------------------------------------------------

// Content block type discriminators, matching Anthropic's "type" field.
const (
	BlockText       = "text"
	BlockImage      = "image"
	BlockThinking   = "thinking"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// ContentBlock is one piece of message content. Only the fields relevant to
// Type are populated; the rest are left at their zero values. A real sum
// type would make this unrepresentable, but Go doesn't have one — this is
// the same "one struct, many optional fields, a Type discriminator" shape
// the teacher used for Anthropic's streaming events.
type ContentBlock struct {
	Type string `json:"type"`

	// Text (BlockText) and Thinking (BlockThinking) content.
	Text string `json:"text,omitempty"`

	// Image (BlockImage) content.
	Source *ImageSource `json:"source,omitempty"`

	// ToolUse (BlockToolUse) content.
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// ToolResult (BlockToolResult) content.
	ToolUseID string `json:"tool_use_id,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// TextBlock builds a BlockText content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ImageSource describes where image bytes come from: either inline base64
// data or an external URL. Exactly one of (MediaType, Data) or URL is set,
// mirroring Type.
type ImageSource struct {
	Type      string `json:"type"` // "base64" or "url"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

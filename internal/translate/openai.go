// Package translate implements the pure, bidirectional wire translators
// between the canonical message model and the OpenAI and Gemini wire
// shapes. Anthropic's wire shape is close enough to canonical that no
// translator is needed for it — provider.AnthropicCompatible talks the
// canonical shape almost directly.
package translate

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/howard-nolan/llmrouter/internal/message"
)

// ---------------------------------------------------------------------------
// OpenAI wire types
// ---------------------------------------------------------------------------

// OpenAIRequest is the inbound shape for POST /v1/chat/completions.
type OpenAIRequest struct {
	Model       string          `json:"model"`
	Messages    []OpenAIMessage `json:"messages"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Stream      *bool           `json:"stream,omitempty"`
	Tools       json.RawMessage `json:"tools,omitempty"`
	ToolChoice  json.RawMessage `json:"tool_choice,omitempty"`
}

// OpenAIMessage is one entry in an OpenAIRequest's messages array.
type OpenAIMessage struct {
	Role    string          `json:"role"`
	Content *OpenAIContent  `json:"content,omitempty"`
	Name    string          `json:"name,omitempty"`
}

// OpenAIContent holds a message's content, which is either a bare string
// or an array of typed parts (text / image_url) — the same string-or-array
// shape as message.MessageContent, but OpenAI's own part vocabulary.
type OpenAIContent struct {
	Text  string
	Parts []OpenAIContentPart
	array bool
}

// UnmarshalJSON accepts either a JSON string or a JSON array of parts.
func (c *OpenAIContent) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("translate: empty openai content")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("translate: decoding openai string content: %w", err)
		}
		*c = OpenAIContent{Text: s}
		return nil
	}
	var parts []OpenAIContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("translate: decoding openai content parts: %w", err)
	}
	*c = OpenAIContent{Parts: parts, array: true}
	return nil
}

// OpenAIContentPart is one multimodal part: either {"type":"text",...} or
// {"type":"image_url",...}.
type OpenAIContentPart struct {
	Type     string             `json:"type"`
	Text     string             `json:"text,omitempty"`
	ImageURL *OpenAIImageURL    `json:"image_url,omitempty"`
}

// OpenAIImageURL carries either a data: URL or an external image URL.
type OpenAIImageURL struct {
	URL string `json:"url"`
}

// OpenAIResponse is the outbound shape for a non-streaming chat completion.
type OpenAIResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []OpenAIChoice `json:"choices"`
	Usage   OpenAIUsage    `json:"usage"`
}

// OpenAIChoice holds one generated completion. The gateway always returns
// exactly one, at index 0 — it never fans a single upstream call out into
// OpenAI's n>1 multi-choice shape.
type OpenAIChoice struct {
	Index        int                   `json:"index"`
	Message      OpenAIResponseMessage `json:"message"`
	FinishReason *string               `json:"finish_reason"`
}

// OpenAIResponseMessage is the assistant turn returned in a choice.
// Content is nil (JSON null) when the canonical response had no text
// blocks at all.
type OpenAIResponseMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

// OpenAIUsage mirrors message.Usage under OpenAI's field names.
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ---------------------------------------------------------------------------
// OpenAI -> Canonical
// ---------------------------------------------------------------------------

// known image media types recognized in a data: URL header, checked by
// substring match in header order — the same fallback-to-png rule the
// source applies when none match.
var imageMediaTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// OpenAIToCanonical converts an inbound OpenAI Chat Completions request
// into the canonical shape. System messages are flattened into
// CanonicalRequest.System; "tool" and "function" roles are dropped with a
// logged warning (tool-call translation is not implemented — see
// DESIGN.md's Open Questions). The request's tools and tool_choice fields
// are not translated either: the canonical request carries no tools.
func OpenAIToCanonical(req *OpenAIRequest) *message.CanonicalRequest {
	out := &message.CanonicalRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}

	var systemParts []string

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			systemParts = append(systemParts, flattenOpenAIContent(msg.Content))

		case "user", "assistant":
			out.Messages = append(out.Messages, message.Message{
				Role:    msg.Role,
				Content: openAIContentToCanonical(msg.Content),
			})

		default:
			log.Printf("translate: skipping unsupported openai message role %q", msg.Role)
		}
	}

	if len(systemParts) > 0 {
		out.System = message.NewSystemText(strings.Join(systemParts, "\n"))
	}

	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	} else {
		out.MaxTokens = message.DefaultMaxTokens
	}

	if req.Stop != nil {
		out.StopSequences = req.Stop
	}
	if req.Stream != nil {
		out.Stream = *req.Stream
	}

	return out
}

func flattenOpenAIContent(c *OpenAIContent) string {
	if c == nil {
		return ""
	}
	if !c.array {
		return c.Text
	}
	var parts []string
	for _, p := range c.Parts {
		if p.Type == "text" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func openAIContentToCanonical(c *OpenAIContent) message.MessageContent {
	if c == nil {
		return message.TextContent("")
	}
	if !c.array {
		return message.TextContent(c.Text)
	}

	var blocks []message.ContentBlock
	for _, part := range c.Parts {
		switch part.Type {
		case "text":
			blocks = append(blocks, message.TextBlock(part.Text))

		case "image_url":
			if part.ImageURL == nil {
				continue
			}
			blocks = append(blocks, imageBlockFromURL(part.ImageURL.URL))
		}
	}

	if len(blocks) == 0 {
		return message.TextContent("")
	}
	return message.BlocksContent(blocks)
}

// imageBlockFromURL builds an Image content block from an image_url value.
// A data: URL is split at the first comma into a media-type header and a
// base64 payload; the header is matched against the known image media
// types by substring, falling back to image/png. Anything else is treated
// as an external URL reference.
func imageBlockFromURL(url string) message.ContentBlock {
	if !strings.HasPrefix(url, "data:") {
		return message.ContentBlock{
			Type:   message.BlockImage,
			Source: &message.ImageSource{Type: "url", URL: url},
		}
	}

	commaIdx := strings.IndexByte(url, ',')
	if commaIdx < 0 {
		return message.ContentBlock{
			Type:   message.BlockImage,
			Source: &message.ImageSource{Type: "url", URL: url},
		}
	}

	header := url[:commaIdx]
	data := url[commaIdx+1:]

	mediaType := "image/png"
	for _, mt := range imageMediaTypes {
		if strings.Contains(header, mt) {
			mediaType = mt
			break
		}
	}

	return message.ContentBlock{
		Type: message.BlockImage,
		Source: &message.ImageSource{
			Type:      "base64",
			MediaType: mediaType,
			Data:      data,
		},
	}
}

// ---------------------------------------------------------------------------
// Canonical -> OpenAI response
// ---------------------------------------------------------------------------

// CanonicalToOpenAIResponse converts a CanonicalResponse into the OpenAI
// Chat Completions response shape. All Text content blocks are
// concatenated with "\n"; non-text blocks (tool_use, image, thinking) are
// dropped — OpenAI's chat-completion shape has no room for them in a
// single content string.
func CanonicalToOpenAIResponse(resp *message.CanonicalResponse) *OpenAIResponse {
	var textParts []string
	for _, block := range resp.Content {
		if block.Type == message.BlockText {
			textParts = append(textParts, block.Text)
		}
	}

	var content *string
	if joined := strings.Join(textParts, "\n"); joined != "" {
		content = &joined
	}

	var finishReason *string
	if resp.StopReason != nil {
		reason := mapStopReasonToOpenAI(*resp.StopReason)
		finishReason = &reason
	}

	return &OpenAIResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   resp.Model,
		Choices: []OpenAIChoice{
			{
				Index: 0,
				Message: OpenAIResponseMessage{
					Role:    resp.Role,
					Content: content,
				},
				FinishReason: finishReason,
			},
		},
		Usage: OpenAIUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}

func mapStopReasonToOpenAI(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	default:
		return "stop"
	}
}

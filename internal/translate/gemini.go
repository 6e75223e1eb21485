package translate

import (
	"encoding/json"
	"fmt"

	"github.com/howard-nolan/llmrouter/internal/message"
)

// ---------------------------------------------------------------------------
// Gemini wire types
// ---------------------------------------------------------------------------

// GeminiRequest is the body posted to a generateContent endpoint.
type GeminiRequest struct {
	Contents          []GeminiContent          `json:"contents"`
	SystemInstruction *GeminiSystemInstruction `json:"systemInstruction,omitempty"`
	GenerationConfig  *GeminiGenerationConfig  `json:"generationConfig,omitempty"`
	Tools             []GeminiTool             `json:"tools,omitempty"`
}

// GeminiContent is one turn: a role plus an array of parts (Gemini is
// multimodal-native, so even plain text is wrapped in a one-element array).
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart is either a text part or an inline-data (image) part. Exactly
// one of Text or InlineData is set.
type GeminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *GeminiInlineData `json:"inlineData,omitempty"`
}

// GeminiInlineData carries base64 image bytes and their MIME type.
type GeminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// GeminiSystemInstruction wraps the flattened system prompt the same way
// Gemini wraps every message — as one content with a parts array.
type GeminiSystemInstruction struct {
	Parts []GeminiPart `json:"parts"`
}

// GeminiGenerationConfig mirrors the canonical sampling parameters under
// Gemini's camelCase field names.
type GeminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

// GeminiTool groups the function declarations exposed to the model for one
// tool-providing call, matching Gemini's one-tool-object convention.
type GeminiTool struct {
	FunctionDeclarations []GeminiFunctionDeclaration `json:"functionDeclarations"`
}

// GeminiFunctionDeclaration is one callable function, with its JSON Schema
// parameters cleaned of metadata keys Gemini rejects (see CleanJSONSchema).
type GeminiFunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// GeminiResponse is the body returned by generateContent.
type GeminiResponse struct {
	Candidates    []GeminiCandidate    `json:"candidates"`
	UsageMetadata *GeminiUsageMetadata `json:"usageMetadata,omitempty"`
}

// GeminiCandidate is one generated response. Only the first is used —
// Gemini can return several, but the gateway never asks for more than one.
type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

// GeminiUsageMetadata holds token counts under Gemini's field names.
type GeminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// geminiTopKDefault is Gemini's hard-coded top_k — applied regardless of
// what the caller passed, per the spec's generationConfig rule.
const geminiTopKDefault = 40

// ---------------------------------------------------------------------------
// Canonical -> Gemini
// ---------------------------------------------------------------------------

// CanonicalToGemini converts a CanonicalRequest into a Gemini generateContent
// body. Roles map user->user, assistant->model; anything else is skipped.
// Image blocks are only forwarded when both MediaType and Data are present
// (a URL-only image cannot be expressed in Gemini's inlineData shape and is
// silently dropped, matching the source). Thinking blocks are demoted to
// plain text; ToolUse/ToolResult blocks are dropped.
func CanonicalToGemini(req *message.CanonicalRequest) *GeminiRequest {
	out := &GeminiRequest{}

	if req.System != nil {
		text := req.System.Flatten()
		if text != "" {
			out.SystemInstruction = &GeminiSystemInstruction{
				Parts: []GeminiPart{{Text: text}},
			}
		}
	}

	for _, msg := range req.Messages {
		role := geminiRole(msg.Role)
		if role == "" {
			continue
		}

		out.Contents = append(out.Contents, GeminiContent{
			Role:  role,
			Parts: geminiPartsFromContent(msg.Content),
		})
	}

	out.GenerationConfig = &GeminiGenerationConfig{
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		TopK:            intPtr(geminiTopKDefault),
		MaxOutputTokens: req.MaxTokens,
		StopSequences:   req.StopSequences,
	}

	if len(req.Tools) > 0 {
		out.Tools = []GeminiTool{{FunctionDeclarations: geminiFunctionDeclarations(req.Tools)}}
	}

	return out
}

func geminiRole(role string) string {
	switch role {
	case "user":
		return "user"
	case "assistant":
		return "model"
	default:
		return ""
	}
}

func geminiPartsFromContent(content message.MessageContent) []GeminiPart {
	if !content.IsBlocks() {
		return []GeminiPart{{Text: content.Text}}
	}

	var parts []GeminiPart
	for _, block := range content.Blocks {
		switch block.Type {
		case message.BlockText:
			parts = append(parts, GeminiPart{Text: block.Text})

		case message.BlockThinking:
			parts = append(parts, GeminiPart{Text: block.Text})

		case message.BlockImage:
			if block.Source == nil || block.Source.MediaType == "" || block.Source.Data == "" {
				continue
			}
			parts = append(parts, GeminiPart{
				InlineData: &GeminiInlineData{
					MimeType: block.Source.MediaType,
					Data:     block.Source.Data,
				},
			})

		// ToolUse and ToolResult blocks have no Gemini representation and
		// are dropped, matching the source.
		default:
		}
	}
	return parts
}

func geminiFunctionDeclarations(tools []message.Tool) []GeminiFunctionDeclaration {
	decls := make([]GeminiFunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		params := tool.InputSchema
		if len(params) == 0 {
			params = json.RawMessage("{}")
		}
		cleaned, err := CleanJSONSchema(params)
		if err != nil {
			// A malformed schema can't be cleaned; forward it unmodified
			// rather than dropping the tool entirely.
			cleaned = params
		}
		decls = append(decls, GeminiFunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  cleaned,
		})
	}
	return decls
}

func intPtr(v int) *int { return &v }

// ---------------------------------------------------------------------------
// Gemini -> Canonical response
// ---------------------------------------------------------------------------

// GeminiToCanonical converts a Gemini generateContent response into the
// canonical response shape, using the given model name (Gemini doesn't
// echo the model back) and response ID (synthesized by the caller, since
// Gemini doesn't return one either).
func GeminiToCanonical(resp *GeminiResponse, model, id string) (*message.CanonicalResponse, error) {
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("translate: gemini response has no candidates")
	}
	candidate := resp.Candidates[0]

	content := make([]message.ContentBlock, 0, len(candidate.Content.Parts))
	for _, part := range candidate.Content.Parts {
		if part.InlineData == nil {
			content = append(content, message.TextBlock(part.Text))
		} else {
			content = append(content, message.TextBlock(""))
		}
	}

	var stopReason *string
	switch candidate.FinishReason {
	case "STOP":
		r := "end_turn"
		stopReason = &r
	case "MAX_TOKENS":
		r := "max_tokens"
		stopReason = &r
	}

	var usage message.Usage
	if resp.UsageMetadata != nil {
		usage = message.Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}

	out := message.NewResponse(id, model, content, stopReason, usage)
	return &out, nil
}

// ---------------------------------------------------------------------------
// JSON Schema cleaning
// ---------------------------------------------------------------------------

// schemaMetadataKeys are the JSON Schema keys Gemini's function-calling API
// rejects. They're stripped at every depth, recursively, before a tool's
// input_schema is forwarded as a Gemini functionDeclaration's parameters.
var schemaMetadataKeys = []string{
	"$schema", "$id", "$ref", "$comment",
	"exclusiveMinimum", "exclusiveMaximum",
	"definitions", "$defs",
}

// CleanJSONSchema parses the given JSON Schema document, removes the
// metadata keys above from every object at every depth (recursing into
// nested objects and array elements), and re-serializes the result.
func CleanJSONSchema(schema json.RawMessage) (json.RawMessage, error) {
	var v any
	if err := json.Unmarshal(schema, &v); err != nil {
		return nil, fmt.Errorf("translate: decoding json schema: %w", err)
	}

	cleaned := cleanSchemaValue(v)

	out, err := json.Marshal(cleaned)
	if err != nil {
		return nil, fmt.Errorf("translate: re-encoding cleaned schema: %w", err)
	}
	return out, nil
}

func cleanSchemaValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for _, key := range schemaMetadataKeys {
			delete(val, key)
		}
		for k, nested := range val {
			val[k] = cleanSchemaValue(nested)
		}
		return val

	case []any:
		for i, item := range val {
			val[i] = cleanSchemaValue(item)
		}
		return val

	default:
		return val
	}
}

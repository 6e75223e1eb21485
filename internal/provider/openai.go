package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/howard-nolan/llmrouter/internal/gwerr"
	"github.com/howard-nolan/llmrouter/internal/message"
	"github.com/howard-nolan/llmrouter/internal/translate"
)

// openAIBaseURLs holds the default base URL for each preset
// OpenAI-compatible aggregator. A configured base_url always overrides
// these.
var openAIBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"deepinfra":  "https://api.deepinfra.com/v1/openai",
	"novita":     "https://api.novita.ai/v3/openai",
	"baseten":    "https://inference.baseten.co/v1",
	"together":   "https://api.together.xyz/v1",
	"fireworks":  "https://api.fireworks.ai/inference/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"nebius":     "https://api.studio.nebius.com/v1",
	"cerebras":   "https://api.cerebras.ai/v1",
	"moonshot":   "https://api.moonshot.cn/v1",
}

// OpenAICompatible translates a canonical request into the OpenAI chat
// completions wire shape, posts it to any of the preset aggregators (or a
// custom base_url), and translates the response back.
type OpenAICompatible struct {
	name          string
	baseURL       string
	apiKey        string
	models        []string
	client        *http.Client
	customHeaders map[string]string
}

// OpenAICompatibleConfig is the subset of ProviderConfig an
// OpenAICompatible backend needs.
type OpenAICompatibleConfig struct {
	Name          string
	ProviderType  string
	BaseURL       string
	APIKey        string
	Models        []string
	CustomHeaders map[string]string
}

// NewOpenAICompatible builds a backend speaking the OpenAI chat
// completions wire shape.
func NewOpenAICompatible(cfg OpenAICompatibleConfig, client *http.Client) (*OpenAICompatible, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAIBaseURLs[cfg.ProviderType]
	}
	if baseURL == "" {
		return nil, gwerr.NewConfigError(fmt.Sprintf("openai-compatible provider %q: no base_url and no known default for provider_type %q", cfg.Name, cfg.ProviderType))
	}
	if cfg.APIKey == "" {
		return nil, gwerr.NewConfigError(fmt.Sprintf("openai-compatible provider %q requires an api_key", cfg.Name))
	}

	return &OpenAICompatible{
		name:          cfg.Name,
		baseURL:       baseURL,
		apiKey:        cfg.APIKey,
		models:        cfg.Models,
		client:        client,
		customHeaders: cfg.CustomHeaders,
	}, nil
}

func (o *OpenAICompatible) Name() string { return o.name }

func (o *OpenAICompatible) SupportsModel(name string) bool { return supportsModel(o.models, name) }

func (o *OpenAICompatible) SendMessageStream(ctx context.Context, req *message.CanonicalRequest) (<-chan message.ContentBlock, error) {
	return notImplementedStream(ctx, req)
}

func (o *OpenAICompatible) CountTokens(ctx context.Context, req *message.CanonicalRequest) (int, error) {
	return notImplementedCount(ctx, req)
}

// canonicalToOpenAIRequest is the inverse of translate.OpenAIToCanonical:
// it builds an outbound OpenAI request from a canonical one. It lives here
// rather than in internal/translate because, unlike the inbound OpenAI
// surface, this direction is never exercised by the HTTP handler directly
// — only by this backend, to talk to an upstream that speaks OpenAI.
func canonicalToOpenAIRequest(req *message.CanonicalRequest) *translate.OpenAIRequest {
	out := &translate.OpenAIRequest{Model: req.Model}

	if req.System != nil {
		out.Messages = append(out.Messages, translate.OpenAIMessage{
			Role:    "system",
			Content: &translate.OpenAIContent{Text: req.System.Flatten()},
		})
	}

	for _, msg := range req.Messages {
		content := &translate.OpenAIContent{}
		if msg.Content.IsBlocks() {
			var parts []translate.OpenAIContentPart
			for _, b := range msg.Content.Blocks {
				if b.Type == message.BlockText || b.Type == message.BlockThinking {
					parts = append(parts, translate.OpenAIContentPart{Type: "text", Text: b.Text})
				}
			}
			content.Parts = parts
		} else {
			content.Text = msg.Content.Text
		}
		out.Messages = append(out.Messages, translate.OpenAIMessage{Role: msg.Role, Content: content})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = message.DefaultMaxTokens
	}
	out.MaxTokens = &maxTokens
	out.Temperature = req.Temperature
	out.TopP = req.TopP
	if len(req.StopSequences) > 0 {
		out.Stop = req.StopSequences
	}
	return out
}

// SendMessage posts to {base_url}/chat/completions and translates the
// response back into the canonical shape.
func (o *OpenAICompatible) SendMessage(ctx context.Context, req *message.CanonicalRequest) (*message.CanonicalResponse, error) {
	wireReq := canonicalToOpenAIRequest(req)

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("openai-compatible: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai-compatible: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	applyCustomHeaders(httpReq.Header, o.customHeaders)

	httpResp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, gwerr.NewTransport(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		raw, _ := io.ReadAll(httpResp.Body)
		return nil, &gwerr.ApiError{Status: httpResp.StatusCode, Body: string(raw)}
	}

	var wireResp translate.OpenAIResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&wireResp); err != nil {
		return nil, gwerr.NewDecode(err)
	}

	return openAIResponseToCanonical(&wireResp), nil
}

// openAIResponseToCanonical is the inverse of
// translate.CanonicalToOpenAIResponse — needed because this backend
// receives an OpenAI-shaped response from upstream and must hand the rest
// of the gateway a canonical one.
func openAIResponseToCanonical(resp *translate.OpenAIResponse) *message.CanonicalResponse {
	var content []message.ContentBlock
	var stopReason *string

	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		if choice.Message.Content != nil && *choice.Message.Content != "" {
			content = append(content, message.TextBlock(*choice.Message.Content))
		}
		if choice.FinishReason != nil {
			reason := mapOpenAIFinishReasonToCanonical(*choice.FinishReason)
			stopReason = &reason
		}
	}

	return &message.CanonicalResponse{
		ID:         resp.ID,
		Type:       "message",
		Role:       "assistant",
		Content:    content,
		Model:      resp.Model,
		StopReason: stopReason,
		Usage: message.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
}

func mapOpenAIFinishReasonToCanonical(reason string) string {
	switch reason {
	case "stop":
		return "end_turn"
	case "length":
		return "max_tokens"
	default:
		return "end_turn"
	}
}

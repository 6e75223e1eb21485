package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/howard-nolan/llmrouter/internal/gwerr"
	"github.com/howard-nolan/llmrouter/internal/message"
	"github.com/howard-nolan/llmrouter/internal/oauth"
)

// anthropicAPIVersion pins the Anthropic Messages API version header.
// Anthropic versions its API with a date string rather than a URL path
// segment, so every vendor speaking this dialect — Anthropic itself,
// z.ai, minimax, zenmux, kimi-coding — gets the same header.
const anthropicAPIVersion = "2023-06-01"

// anthropicBaseURLs holds the default base URL for each known vendor
// speaking the Anthropic Messages wire shape. A configured base_url
// always overrides these.
var anthropicBaseURLs = map[string]string{
	"anthropic":   "https://api.anthropic.com",
	"z.ai":        "https://api.z.ai/api/anthropic",
	"minimax":     "https://api.minimax.chat/anthropic",
	"zenmux":      "https://zenmux.ai/api/anthropic",
	"kimi-coding": "https://api.moonshot.cn/anthropic",
}

// AnthropicCompatible forwards a canonical request to any vendor speaking
// Anthropic's Messages API wire shape nearly verbatim — no translation
// layer is needed since the canonical model is already modelled on this
// shape (§4.1). Only auth header assembly differs between ApiKey and
// OAuth-authenticated vendors.
type AnthropicCompatible struct {
	name          string
	baseURL       string
	models        []string
	client        *http.Client
	customHeaders map[string]string

	// Exactly one of these is set, depending on auth_type.
	apiKey      string
	oauthClient *oauth.Client
	oauthID     string
}

// AnthropicCompatibleConfig is the subset of ProviderConfig an
// AnthropicCompatible backend needs.
type AnthropicCompatibleConfig struct {
	Name          string
	ProviderType  string
	BaseURL       string
	Models        []string
	APIKey        string
	OAuthClient   *oauth.Client
	OAuthID       string
	CustomHeaders map[string]string
}

// NewAnthropicCompatible builds a backend speaking the Anthropic Messages
// wire shape. cfg.APIKey and cfg.OAuthClient are mutually exclusive —
// whichever is set determines the auth header this backend sends.
func NewAnthropicCompatible(cfg AnthropicCompatibleConfig, client *http.Client) (*AnthropicCompatible, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicBaseURLs[cfg.ProviderType]
	}
	if baseURL == "" {
		return nil, gwerr.NewConfigError(fmt.Sprintf("anthropic-compatible provider %q: no base_url and no known default for provider_type %q", cfg.Name, cfg.ProviderType))
	}

	return &AnthropicCompatible{
		name:          cfg.Name,
		baseURL:       baseURL,
		models:        cfg.Models,
		client:        client,
		customHeaders: cfg.CustomHeaders,
		apiKey:        cfg.APIKey,
		oauthClient:   cfg.OAuthClient,
		oauthID:       cfg.OAuthID,
	}, nil
}

func (a *AnthropicCompatible) Name() string { return a.name }

func (a *AnthropicCompatible) SupportsModel(name string) bool { return supportsModel(a.models, name) }

func (a *AnthropicCompatible) SendMessageStream(ctx context.Context, req *message.CanonicalRequest) (<-chan message.ContentBlock, error) {
	return notImplementedStream(ctx, req)
}

func (a *AnthropicCompatible) CountTokens(ctx context.Context, req *message.CanonicalRequest) (int, error) {
	return notImplementedCount(ctx, req)
}

// anthropicWireRequest is the canonical model shaped onto the Anthropic
// Messages request body. The canonical model is already close enough to
// Anthropic's own shape that this is closer to a field-for-field copy than
// a translation.
type anthropicWireRequest struct {
	Model         string                `json:"model"`
	Messages      []message.Message     `json:"messages"`
	System        *message.SystemPrompt `json:"system,omitempty"`
	MaxTokens     int                   `json:"max_tokens"`
	Temperature   *float64              `json:"temperature,omitempty"`
	TopP          *float64              `json:"top_p,omitempty"`
	TopK          *int                  `json:"top_k,omitempty"`
	StopSequences []string              `json:"stop_sequences,omitempty"`
	Tools         []message.Tool        `json:"tools,omitempty"`
}

func (a *AnthropicCompatible) authHeader(ctx context.Context, req *http.Request) error {
	if a.oauthClient != nil {
		token, err := a.oauthClient.GetValidToken(ctx, a.oauthID)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
		return nil
	}
	req.Header.Set("x-api-key", a.apiKey)
	return nil
}

// SendMessage posts to {base_url}/v1/messages and decodes the response
// into a CanonicalResponse — the two shapes are already nearly identical.
func (a *AnthropicCompatible) SendMessage(ctx context.Context, req *message.CanonicalRequest) (*message.CanonicalResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = message.DefaultMaxTokens
	}

	wireReq := anthropicWireRequest{
		Model:         req.Model,
		Messages:      req.Messages,
		System:        req.System,
		MaxTokens:     maxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		StopSequences: req.StopSequences,
		Tools:         req.Tools,
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic-compatible: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic-compatible: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	if err := a.authHeader(ctx, httpReq); err != nil {
		return nil, err
	}
	applyCustomHeaders(httpReq.Header, a.customHeaders)

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, gwerr.NewTransport(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		raw, _ := io.ReadAll(httpResp.Body)
		return nil, &gwerr.ApiError{Status: httpResp.StatusCode, Body: string(raw)}
	}

	var wireResp message.CanonicalResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&wireResp); err != nil {
		return nil, gwerr.NewDecode(err)
	}

	// Some Anthropic-compatible vendors omit "id" entirely rather than
	// mint their own — the Messages API schema treats it as required, but
	// not every proxy bothers.
	if wireResp.ID == "" {
		wireResp.ID = "msg_" + uuid.NewString()
	}

	return &wireResp, nil
}

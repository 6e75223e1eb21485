package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/howard-nolan/llmrouter/internal/gwerr"
	"github.com/howard-nolan/llmrouter/internal/message"
	"github.com/howard-nolan/llmrouter/internal/oauth"
	"github.com/howard-nolan/llmrouter/internal/translate"
)

const (
	geminiCodeAssistBaseURL = "https://cloudcode-pa.googleapis.com/v1internal"
	geminiAPIKeyBaseURL     = "https://generativelanguage.googleapis.com/v1beta"

	// vertexScope is the OAuth scope Application Default Credentials need
	// to call Vertex AI, matching the scope Google's own client libraries
	// request for this API surface.
	vertexScope = "https://www.googleapis.com/auth/cloud-platform"
)

// geminiMode selects which of the three ways Gemini authenticates a
// backend was constructed with.
type geminiMode int

const (
	geminiModeCodeAssist geminiMode = iota
	geminiModeVertex
	geminiModeAPIKey
)

// Gemini implements the Provider interface across Google's three distinct
// authentication surfaces for the same underlying model family. Which mode
// a given backend runs in is fixed at construction from the config fields
// supplied — a backend never switches modes at request time.
type Gemini struct {
	name          string
	mode          geminiMode
	models        []string
	client        *http.Client
	customHeaders map[string]string

	// Code Assist / OAuth mode.
	oauthClient *oauth.Client
	oauthID     string

	// Vertex AI mode.
	projectID   string
	location    string
	tokenSource oauth2.TokenSource

	// API key mode.
	apiKey string

	// Base URLs, overridable so tests can point at an httptest server
	// instead of Google's real endpoints. Zero value means "use the
	// package default", set by NewGemini.
	codeAssistBaseURL string
	apiKeyBaseURL     string
}

// GeminiConfig is the subset of ProviderConfig a Gemini backend needs. The
// combination of fields set determines which of the three modes this
// backend runs in: OAuthID set ⇒ Code Assist; ProjectID+Location set (no
// OAuthID) ⇒ Vertex AI; APIKey set alone ⇒ API key mode.
type GeminiConfig struct {
	Name          string
	Models        []string
	OAuthClient   *oauth.Client
	OAuthID       string
	ProjectID     string
	Location      string
	APIKey        string
	CustomHeaders map[string]string
}

// NewGemini builds a Gemini backend in whichever of the three modes cfg
// selects. Vertex AI mode acquires Application Default Credentials
// immediately — a missing or misconfigured GOOGLE_APPLICATION_CREDENTIALS
// fails construction rather than the first request, matching the "fail
// at startup" spirit of the other ConfigError cases.
func NewGemini(ctx context.Context, cfg GeminiConfig, client *http.Client) (*Gemini, error) {
	g := &Gemini{
		name:              cfg.Name,
		models:            cfg.Models,
		client:            client,
		customHeaders:     cfg.CustomHeaders,
		codeAssistBaseURL: geminiCodeAssistBaseURL,
		apiKeyBaseURL:     geminiAPIKeyBaseURL,
	}

	switch {
	case cfg.OAuthID != "":
		g.mode = geminiModeCodeAssist
		g.oauthClient = cfg.OAuthClient
		g.oauthID = cfg.OAuthID

	case cfg.ProjectID != "" && cfg.Location != "":
		g.mode = geminiModeVertex
		g.projectID = cfg.ProjectID
		g.location = cfg.Location

		ts, err := google.DefaultTokenSource(ctx, vertexScope)
		if err != nil {
			return nil, gwerr.NewConfigError(fmt.Sprintf("gemini provider %q: vertex-ai mode requires Application Default Credentials: %v", cfg.Name, err))
		}
		g.tokenSource = ts

	case cfg.APIKey != "":
		g.mode = geminiModeAPIKey
		g.apiKey = cfg.APIKey

	default:
		return nil, gwerr.NewConfigError(fmt.Sprintf("gemini provider %q: must set oauth_provider, (project_id and location), or api_key", cfg.Name))
	}

	return g, nil
}

func (g *Gemini) Name() string { return g.name }

func (g *Gemini) SupportsModel(name string) bool { return supportsModel(g.models, name) }

func (g *Gemini) SendMessageStream(ctx context.Context, req *message.CanonicalRequest) (<-chan message.ContentBlock, error) {
	return notImplementedStream(ctx, req)
}

func (g *Gemini) CountTokens(ctx context.Context, req *message.CanonicalRequest) (int, error) {
	return notImplementedCount(ctx, req)
}

// codeAssistEnvelope wraps a Gemini request the way the Code Assist API
// expects: the underlying generateContent body nested under "request",
// alongside the caller's GCP project and a per-call prompt ID.
type codeAssistEnvelope struct {
	Model        string                   `json:"model"`
	Project      string                   `json:"project,omitempty"`
	UserPromptID string                   `json:"user_prompt_id"`
	Request      *translate.GeminiRequest `json:"request"`
}

type codeAssistResponse struct {
	Response translate.GeminiResponse `json:"response"`
}

func geminiRequestID() string {
	return fmt.Sprintf("gemini-%d", time.Now().UnixMilli())
}

// SendMessage dispatches to whichever of the three modes this backend was
// constructed in. The canonical-to-Gemini translation is shared; only
// endpoint URL, auth header, and request envelope differ by mode.
func (g *Gemini) SendMessage(ctx context.Context, req *message.CanonicalRequest) (*message.CanonicalResponse, error) {
	wireReq := translate.CanonicalToGemini(req)

	switch g.mode {
	case geminiModeCodeAssist:
		return g.sendCodeAssist(ctx, req.Model, wireReq)
	case geminiModeVertex:
		return g.sendVertex(ctx, req.Model, wireReq)
	default:
		return g.sendAPIKey(ctx, req.Model, wireReq)
	}
}

func (g *Gemini) sendCodeAssist(ctx context.Context, model string, wireReq *translate.GeminiRequest) (*message.CanonicalResponse, error) {
	token, err := g.oauthClient.GetValidToken(ctx, g.oauthID)
	if err != nil {
		return nil, err
	}

	envelope := codeAssistEnvelope{
		Model:        model,
		Project:      token.ProjectID,
		UserPromptID: geminiRequestID(),
		Request:      wireReq,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshaling code assist request: %w", err)
	}

	url := fmt.Sprintf("%s:generateContent", g.codeAssistBaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token.AccessToken)
	applyCustomHeaders(httpReq.Header, g.customHeaders)

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, gwerr.NewTransport(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		raw, _ := io.ReadAll(httpResp.Body)
		return nil, g.apiErrorForStatus(httpResp.StatusCode, string(raw), model)
	}

	var wireResp codeAssistResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&wireResp); err != nil {
		return nil, gwerr.NewDecode(err)
	}

	return translate.GeminiToCanonical(&wireResp.Response, model, geminiRequestID())
}

func (g *Gemini) sendVertex(ctx context.Context, model string, wireReq *translate.GeminiRequest) (*message.CanonicalResponse, error) {
	token, err := g.tokenSource.Token()
	if err != nil {
		return nil, gwerr.NewAuthError("gemini: refreshing Application Default Credentials", err)
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshaling request: %w", err)
	}

	url := fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
		g.location, g.projectID, g.location, model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token.AccessToken)
	applyCustomHeaders(httpReq.Header, g.customHeaders)

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, gwerr.NewTransport(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		raw, _ := io.ReadAll(httpResp.Body)
		return nil, g.apiErrorForStatus(httpResp.StatusCode, string(raw), model)
	}

	var wireResp translate.GeminiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&wireResp); err != nil {
		return nil, gwerr.NewDecode(err)
	}

	return translate.GeminiToCanonical(&wireResp, model, geminiRequestID())
}

func (g *Gemini) sendAPIKey(ctx context.Context, model string, wireReq *translate.GeminiRequest) (*message.CanonicalResponse, error) {
	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.apiKeyBaseURL, model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	applyCustomHeaders(httpReq.Header, g.customHeaders)

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, gwerr.NewTransport(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		raw, _ := io.ReadAll(httpResp.Body)
		return nil, g.apiErrorForStatus(httpResp.StatusCode, string(raw), model)
	}

	var wireResp translate.GeminiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&wireResp); err != nil {
		return nil, gwerr.NewDecode(err)
	}

	return translate.GeminiToCanonical(&wireResp, model, geminiRequestID())
}

// apiErrorForStatus builds the upstream error, adding a friendlier hint to
// 404s against models that are plausibly just not GA yet — Gemini returns
// a bare 404 for both "no such model" and "model exists but isn't rolled
// out to you", and the second case is common enough for preview/gemini-3
// model names that it's worth distinguishing in the message.
func (g *Gemini) apiErrorForStatus(status int, body, model string) error {
	if status == http.StatusNotFound && (strings.Contains(model, "gemini-3") || strings.Contains(model, "preview")) {
		body = fmt.Sprintf("%s (model %q may be a preview model not yet available to this account)", body, model)
	}
	return &gwerr.ApiError{Status: status, Body: body}
}

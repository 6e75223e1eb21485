package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/howard-nolan/llmrouter/internal/gwerr"
	"github.com/howard-nolan/llmrouter/internal/oauth"
)

// ProviderConfig is one entry in the configured provider list, input to
// Registry construction. Exactly which fields matter depends on
// ProviderType: AnthropicCompatible vendors need APIKey or OAuth, Gemini's
// vertex-ai mode needs ProjectID and Location, and so on.
type ProviderConfig struct {
	Name          string
	ProviderType  string
	AuthType      string // "api_key" or "oauth"
	APIKey        string
	OAuthProvider string
	BaseURL       string
	Models        []string
	ProjectID     string
	Location      string
	Enabled       bool
	CustomHeaders map[string]string
}

const (
	AuthTypeAPIKey = "api_key"
	AuthTypeOAuth  = "oauth"
)

// anthropicCompatibleTypes and openAICompatibleTypes list the
// provider_type tags dispatched to each wire-shape backend. Everything not
// in one of these two sets, or in {"gemini", "vertex-ai"}, is an unknown
// tag and fails registry construction with a ConfigError.
var anthropicCompatibleTypes = map[string]bool{
	"anthropic": true, "z.ai": true, "minimax": true, "zenmux": true, "kimi-coding": true,
}

var openAICompatibleTypes = map[string]bool{
	"openai": true, "openrouter": true, "deepinfra": true, "novita": true,
	"baseten": true, "together": true, "fireworks": true, "groq": true,
	"nebius": true, "cerebras": true, "moonshot": true,
}

// Registry holds every configured provider for the process lifetime. It is
// immutable after construction — safe to share across every in-flight
// request without locking.
type Registry struct {
	byName map[string]Provider
	order  []string
	models map[string][]string

	// modelToProvider exists because the source this gateway's behavior is
	// grounded on declares this index but never populates it — every
	// lookup always falls through to the linear scan below. Preserved
	// exactly: this map is intentionally never written to.
	modelToProvider map[string]string
}

// NewRegistry constructs every enabled provider from configs, in order,
// and returns a Registry ready to dispatch requests. httpClient is shared
// by every backend (one client per process, not one per provider — the
// design notes call this out explicitly to avoid connection-pool thrash
// from per-request clients). oauthClient is nil-safe: a configs list with
// no OAuth-authenticated entries never touches it.
func NewRegistry(ctx context.Context, configs []ProviderConfig, httpClient *http.Client, oauthClient *oauth.Client) (*Registry, error) {
	reg := &Registry{
		byName:          make(map[string]Provider, len(configs)),
		models:          make(map[string][]string, len(configs)),
		modelToProvider: make(map[string]string),
	}

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		if _, exists := reg.byName[cfg.Name]; exists {
			return nil, gwerr.NewConfigError(fmt.Sprintf("duplicate provider name %q", cfg.Name))
		}

		p, err := buildProvider(ctx, cfg, httpClient, oauthClient)
		if err != nil {
			return nil, err
		}

		reg.byName[cfg.Name] = p
		reg.order = append(reg.order, cfg.Name)
		reg.models[cfg.Name] = cfg.Models
	}

	return reg, nil
}

func buildProvider(ctx context.Context, cfg ProviderConfig, httpClient *http.Client, oauthClient *oauth.Client) (Provider, error) {
	switch {
	case cfg.ProviderType == "gemini" || cfg.ProviderType == "vertex-ai":
		geminiCfg := GeminiConfig{
			Name:          cfg.Name,
			Models:        cfg.Models,
			ProjectID:     cfg.ProjectID,
			Location:      cfg.Location,
			APIKey:        cfg.APIKey,
			CustomHeaders: cfg.CustomHeaders,
		}
		if cfg.AuthType == AuthTypeOAuth {
			oauthID := cfg.OAuthProvider
			if oauthID == "" {
				oauthID = cfg.Name
			}
			geminiCfg.OAuthClient = oauthClient
			geminiCfg.OAuthID = oauthID
		}
		if cfg.ProviderType == "vertex-ai" && (cfg.ProjectID == "" || cfg.Location == "") {
			return nil, gwerr.NewConfigError(fmt.Sprintf("provider %q: provider_type vertex-ai requires project_id and location", cfg.Name))
		}
		return NewGemini(ctx, geminiCfg, httpClient)

	case anthropicCompatibleTypes[cfg.ProviderType]:
		if err := validateAuth(cfg); err != nil {
			return nil, err
		}
		acCfg := AnthropicCompatibleConfig{
			Name:          cfg.Name,
			ProviderType:  cfg.ProviderType,
			BaseURL:       cfg.BaseURL,
			Models:        cfg.Models,
			CustomHeaders: cfg.CustomHeaders,
		}
		if cfg.AuthType == AuthTypeOAuth {
			oauthID := cfg.OAuthProvider
			if oauthID == "" {
				oauthID = cfg.Name
			}
			acCfg.OAuthClient = oauthClient
			acCfg.OAuthID = oauthID
		} else {
			acCfg.APIKey = cfg.APIKey
		}
		return NewAnthropicCompatible(acCfg, httpClient)

	case openAICompatibleTypes[cfg.ProviderType]:
		if err := validateAuth(cfg); err != nil {
			return nil, err
		}
		return NewOpenAICompatible(OpenAICompatibleConfig{
			Name:          cfg.Name,
			ProviderType:  cfg.ProviderType,
			BaseURL:       cfg.BaseURL,
			APIKey:        cfg.APIKey,
			Models:        cfg.Models,
			CustomHeaders: cfg.CustomHeaders,
		}, httpClient)

	default:
		return nil, gwerr.NewConfigError(fmt.Sprintf("provider %q: unknown provider_type %q", cfg.Name, cfg.ProviderType))
	}
}

func validateAuth(cfg ProviderConfig) error {
	if cfg.AuthType == AuthTypeAPIKey && cfg.APIKey == "" {
		return gwerr.NewConfigError(fmt.Sprintf("provider %q: auth_type api_key requires a non-empty api_key", cfg.Name))
	}
	return nil
}

// GetProviderByName returns the provider registered under name.
func (r *Registry) GetProviderByName(name string) (Provider, error) {
	p, ok := r.byName[name]
	if !ok {
		return nil, &gwerr.ModelNotSupported{Model: name}
	}
	return p, nil
}

// GetProviderForModel routes a model name to the provider that serves it.
// The fast-path index is consulted first but is always empty — nothing in
// this registry ever writes to modelToProvider, mirroring source behavior
// this gateway preserves rather than silently "fixes" (see DESIGN.md).
// Every call therefore falls through to the linear scan, checking each
// provider's SupportsModel in registration order.
func (r *Registry) GetProviderForModel(model string) (Provider, error) {
	if name, ok := r.modelToProvider[model]; ok {
		if p, ok := r.byName[name]; ok {
			return p, nil
		}
	}

	for _, name := range r.order {
		p := r.byName[name]
		if p.SupportsModel(model) {
			return p, nil
		}
	}

	return nil, &gwerr.ModelNotSupported{Model: model}
}

// ListProviders returns every registered provider name, in registration
// order.
func (r *Registry) ListProviders() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ListModels returns each registered provider's configured model list,
// keyed by provider name — the shape the `GET /v1/models` endpoint hands
// back.
func (r *Registry) ListModels() map[string][]string {
	out := make(map[string][]string, len(r.order))
	for _, name := range r.order {
		out[name] = r.models[name]
	}
	return out
}

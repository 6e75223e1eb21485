package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/howard-nolan/llmrouter/internal/gwerr"
)

// Client drives the PKCE authorization-code flow and keeps tokens fresh.
// One Client serves every OAuth-authenticated provider configured on the
// gateway; the provider ID passed to each method picks which Config and
// which stored token it operates on.
type Client struct {
	httpClient *http.Client
	store      TokenStore
	configs    map[string]Config

	// refresh coalesces concurrent GetValidToken calls for the same
	// provider ID into a single outbound refresh request (S6).
	refresh singleflight.Group
}

// NewClient builds an oauth.Client. configs maps provider ID to the vendor
// Config that provider authenticates with.
func NewClient(httpClient *http.Client, store TokenStore, configs map[string]Config) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient, store: store, configs: configs}
}

func (c *Client) configFor(providerID string) (Config, error) {
	cfg, ok := c.configs[providerID]
	if !ok {
		return Config{}, gwerr.NewConfigError(fmt.Sprintf("oauth: no configuration for provider %q", providerID))
	}
	return cfg, nil
}

// AuthorizationPrompt is what the caller needs to send the user to the
// vendor's consent screen and later complete the exchange.
type AuthorizationPrompt struct {
	URL      string
	Verifier string
	State    string
}

// AuthorizationURL builds the URL the user visits to grant access, along
// with the verifier and state the caller must hold onto until the
// authorization code comes back. The two dialects build genuinely
// different query strings: Anthropic reuses the PKCE verifier as state,
// Codex generates an unrelated random state and adds a handful of flags
// the other dialect doesn't have.
func (c *Client) AuthorizationURL(providerID string) (AuthorizationPrompt, error) {
	cfg, err := c.configFor(providerID)
	if err != nil {
		return AuthorizationPrompt{}, err
	}

	pkce, err := GeneratePKCE()
	if err != nil {
		return AuthorizationPrompt{}, err
	}

	q := url.Values{}
	q.Set("client_id", cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", cfg.RedirectURI)
	q.Set("scope", strings.Join(cfg.Scopes, " "))
	q.Set("code_challenge", pkce.Challenge)
	q.Set("code_challenge_method", "S256")

	var state string
	switch cfg.Dialect {
	case DialectAnthropic:
		state = pkce.Verifier
		q.Set("code", "true")
	case DialectCodex:
		state, err = randomHexState()
		if err != nil {
			return AuthorizationPrompt{}, err
		}
		q.Set("id_token_add_organizations", "true")
		q.Set("codex_cli_simplified_flow", "true")
		q.Set("originator", "codex_cli_rs")
	default:
		return AuthorizationPrompt{}, gwerr.NewConfigError(fmt.Sprintf("oauth: unknown dialect %d", cfg.Dialect))
	}
	q.Set("state", state)

	return AuthorizationPrompt{
		URL:      cfg.AuthURL + "?" + q.Encode(),
		Verifier: pkce.Verifier,
		State:    state,
	}, nil
}

// tokenResponse is the shape both dialects' token endpoints return. Field
// names differ in wire encoding but not in meaning, so one struct with
// json tags covers the JSON-encoded leg; the form-encoded leg decodes the
// same shape from a JSON response body too — both dialects answer in JSON
// even though Codex's request body is form-encoded.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    *int64 `json:"expires_in"`
}

// ExchangeCode trades an authorization code for an access/refresh token
// pair and stores the result under providerID. code may carry a
// "#<state>" suffix the way some vendor redirects return it; that suffix
// is stripped before the exchange.
func (c *Client) ExchangeCode(ctx context.Context, providerID, code, verifier string) (OAuthToken, error) {
	cfg, err := c.configFor(providerID)
	if err != nil {
		return OAuthToken{}, err
	}

	if idx := strings.Index(code, "#"); idx >= 0 {
		code = code[:idx]
	}

	req, err := c.buildExchangeRequest(ctx, cfg, code, verifier)
	if err != nil {
		return OAuthToken{}, err
	}

	tok, err := c.doTokenRequest(req)
	if err != nil {
		return OAuthToken{}, err
	}

	token := OAuthToken{
		ProviderID:   providerID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiryFrom(tok.ExpiresIn),
	}
	if err := c.store.Save(token); err != nil {
		return OAuthToken{}, fmt.Errorf("oauth: saving exchanged token: %w", err)
	}
	return token, nil
}

func (c *Client) buildExchangeRequest(ctx context.Context, cfg Config, code, verifier string) (*http.Request, error) {
	switch cfg.Dialect {
	case DialectAnthropic:
		// Anthropic requires state on the exchange body, set equal to the
		// PKCE verifier — the same equality AuthorizationURL establishes
		// when it builds the authorize URL.
		body, err := json.Marshal(map[string]string{
			"grant_type":    "authorization_code",
			"client_id":     cfg.ClientID,
			"code":          code,
			"state":         verifier,
			"redirect_uri":  cfg.RedirectURI,
			"code_verifier": verifier,
		})
		if err != nil {
			return nil, fmt.Errorf("oauth: encoding token request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("oauth: building token request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil

	case DialectCodex:
		form := url.Values{}
		form.Set("grant_type", "authorization_code")
		form.Set("client_id", cfg.ClientID)
		form.Set("code", code)
		form.Set("redirect_uri", cfg.RedirectURI)
		form.Set("code_verifier", verifier)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, fmt.Errorf("oauth: building token request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil

	default:
		return nil, gwerr.NewConfigError(fmt.Sprintf("oauth: unknown dialect %d", cfg.Dialect))
	}
}

func (c *Client) doTokenRequest(req *http.Request) (tokenResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tokenResponse{}, gwerr.NewTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		return tokenResponse{}, &gwerr.ApiError{Status: resp.StatusCode, Body: buf.String()}
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return tokenResponse{}, gwerr.NewDecode(err)
	}
	return tok, nil
}

func expiryFrom(expiresIn *int64) time.Time {
	seconds := int64(3600)
	if expiresIn != nil {
		seconds = *expiresIn
	}
	return time.Now().UTC().Add(time.Duration(seconds) * time.Second)
}

// Refresh exchanges a stored refresh token for a new access token,
// preserving fields the token endpoint doesn't echo back: enterprise_url
// and project_id always carry forward from the prior token, and so does
// refresh_token itself when the vendor's response omits one (not every
// refresh rotates the refresh token).
func (c *Client) Refresh(ctx context.Context, providerID string) (OAuthToken, error) {
	cfg, err := c.configFor(providerID)
	if err != nil {
		return OAuthToken{}, err
	}

	existing, ok, err := c.store.Get(providerID)
	if err != nil {
		return OAuthToken{}, err
	}
	if !ok {
		return OAuthToken{}, gwerr.NewAuthError(fmt.Sprintf("oauth: no stored token for provider %q", providerID), nil)
	}
	if existing.RefreshToken == "" {
		return OAuthToken{}, gwerr.NewAuthError(fmt.Sprintf("oauth: provider %q has no refresh token", providerID), nil)
	}

	req, err := c.buildRefreshRequest(ctx, cfg, existing.RefreshToken)
	if err != nil {
		return OAuthToken{}, err
	}

	tok, err := c.doTokenRequest(req)
	if err != nil {
		return OAuthToken{}, err
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = existing.RefreshToken
	}

	updated := OAuthToken{
		ProviderID:    providerID,
		AccessToken:   tok.AccessToken,
		RefreshToken:  refreshToken,
		ExpiresAt:     expiryFrom(tok.ExpiresIn),
		EnterpriseURL: existing.EnterpriseURL,
		ProjectID:     existing.ProjectID,
	}
	if err := c.store.Save(updated); err != nil {
		return OAuthToken{}, fmt.Errorf("oauth: saving refreshed token: %w", err)
	}
	return updated, nil
}

func (c *Client) buildRefreshRequest(ctx context.Context, cfg Config, refreshToken string) (*http.Request, error) {
	switch cfg.Dialect {
	case DialectAnthropic:
		body, err := json.Marshal(map[string]string{
			"grant_type":    "refresh_token",
			"client_id":     cfg.ClientID,
			"refresh_token": refreshToken,
		})
		if err != nil {
			return nil, fmt.Errorf("oauth: encoding refresh request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("oauth: building refresh request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil

	case DialectCodex:
		form := url.Values{}
		form.Set("grant_type", "refresh_token")
		form.Set("client_id", cfg.ClientID)
		form.Set("refresh_token", refreshToken)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, fmt.Errorf("oauth: building refresh request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil

	default:
		return nil, gwerr.NewConfigError(fmt.Sprintf("oauth: unknown dialect %d", cfg.Dialect))
	}
}

// GetValidToken returns a token guaranteed not to need a refresh, fetching
// one from the store and refreshing it if it's stale. Concurrent callers
// for the same provider ID share a single in-flight refresh rather than
// each firing their own request at the token endpoint.
func (c *Client) GetValidToken(ctx context.Context, providerID string) (OAuthToken, error) {
	existing, ok, err := c.store.Get(providerID)
	if err != nil {
		return OAuthToken{}, err
	}
	if ok && !existing.NeedsRefresh() {
		return existing, nil
	}

	v, err, _ := c.refresh.Do(providerID, func() (any, error) {
		return c.Refresh(ctx, providerID)
	})
	if err != nil {
		return OAuthToken{}, err
	}
	return v.(OAuthToken), nil
}

// createAPIKeyURL is fixed: it is not part of either dialect's Config
// because only the Anthropic Console flow ever calls it.
const createAPIKeyURL = "https://api.anthropic.com/api/oauth/claude_cli/create_api_key"

// CreateAPIKeyResult is the response from minting a standalone API key
// from an Anthropic Console OAuth session.
type CreateAPIKeyResult struct {
	RawKey string `json:"raw_key"`
}

// CreateAPIKey exchanges a valid Anthropic Console OAuth session for a
// long-lived API key, the same way the Console UI does when a user clicks
// "Create API Key".
func (c *Client) CreateAPIKey(ctx context.Context, providerID string) (CreateAPIKeyResult, error) {
	token, err := c.GetValidToken(ctx, providerID)
	if err != nil {
		return CreateAPIKeyResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, createAPIKeyURL, nil)
	if err != nil {
		return CreateAPIKeyResult{}, fmt.Errorf("oauth: building create_api_key request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CreateAPIKeyResult{}, gwerr.NewTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		return CreateAPIKeyResult{}, &gwerr.ApiError{Status: resp.StatusCode, Body: buf.String()}
	}

	var out CreateAPIKeyResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return CreateAPIKeyResult{}, gwerr.NewDecode(err)
	}
	return out, nil
}

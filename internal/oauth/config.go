package oauth

// Dialect distinguishes the two authorization-URL / token-request shapes
// the gateway speaks. The source keys this off a literal client_id string
// at every call site; here it's decided once, at Config construction, and
// carried as an explicit enum — the dispatch everywhere else switches on
// Dialect, never on ClientID.
type Dialect int

const (
	// DialectAnthropic covers both Anthropic presets: Claude Pro/Max and
	// the Console variant share everything but the authorization URL.
	DialectAnthropic Dialect = iota
	// DialectCodex is OpenAI's Codex CLI OAuth app.
	DialectCodex
)

// Config is one vendor's OAuth endpoint set.
type Config struct {
	Dialect     Dialect
	ClientID    string
	AuthURL     string
	TokenURL    string
	RedirectURI string
	Scopes      []string
}

// Anthropic is the Claude Pro/Max OAuth configuration.
func Anthropic() Config {
	return Config{
		Dialect:     DialectAnthropic,
		ClientID:    "9d1c250a-e61b-44d9-88ed-5944d1962f5e",
		AuthURL:     "https://claude.ai/oauth/authorize",
		TokenURL:    "https://console.anthropic.com/v1/oauth/token",
		RedirectURI: "https://console.anthropic.com/oauth/code/callback",
		Scopes:      []string{"org:create_api_key", "user:profile", "user:inference"},
	}
}

// AnthropicConsole is the Console variant used for minting standalone API
// keys — same client and token endpoints, a different authorization URL.
func AnthropicConsole() Config {
	cfg := Anthropic()
	cfg.AuthURL = "https://console.anthropic.com/oauth/authorize"
	return cfg
}

// Codex is OpenAI's Codex CLI OAuth configuration. Its redirect_uri is
// fixed by OpenAI's app registration and cannot be changed by the caller.
func Codex() Config {
	return Config{
		Dialect:     DialectCodex,
		ClientID:    "app_EMoamEEZ73f0CkXaXp7hrann",
		AuthURL:     "https://auth.openai.com/oauth/authorize",
		TokenURL:    "https://auth.openai.com/oauth/token",
		RedirectURI: "http://localhost:1455/auth/callback",
		Scopes:      []string{"openid", "profile", "email", "offline_access"},
	}
}

// Package config handles loading and validating gateway configuration.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/howard-nolan/llmrouter/internal/provider"
)

// Config is the top-level configuration for the llmrouter gateway.
type Config struct {
	Server    ServerConfig              `koanf:"server"`
	OAuth     OAuthConfig               `koanf:"oauth"`
	Providers map[string]ProviderConfig `koanf:"providers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// OAuthConfig holds settings shared by every OAuth-authenticated provider.
type OAuthConfig struct {
	// TokenStorePath is where refreshed tokens persist across restarts.
	// Defaults to "oauth_tokens.json" in the working directory when empty.
	TokenStorePath string `koanf:"token_store_path"`
}

// ProviderConfig holds the settings for a single LLM provider, keyed by
// name in Config.Providers. provider_type selects which wire-format
// backend this entry builds (anthropic, openai, gemini, vertex-ai, or one
// of the other OpenAI/Anthropic-compatible vendor tags); auth_type selects
// api_key vs oauth. Only the fields a given provider_type/auth_type
// combination needs are read — see internal/provider's registry for the
// exact dispatch rules.
type ProviderConfig struct {
	ProviderType  string            `koanf:"provider_type"`
	AuthType      string            `koanf:"auth_type"`
	APIKey        string            `koanf:"api_key"`
	OAuthProvider string            `koanf:"oauth_provider"`
	OAuthDialect  string            `koanf:"oauth_dialect"`
	BaseURL       string            `koanf:"base_url"`
	Models        []string          `koanf:"models"`
	ProjectID     string            `koanf:"project_id"`
	Location      string            `koanf:"location"`
	Disabled      bool              `koanf:"disabled"`
	CustomHeaders map[string]string `koanf:"custom_headers"`
}

// Load reads configuration from a YAML file, layers environment variable
// overrides on top, and returns a fully populated Config.
func Load(path string) (*Config, error) {
	// Load .env file into the process environment (ignored if not present).
	// This is the equivalent of require('dotenv').config() in Node.
	_ = godotenv.Load()

	// Create a new koanf instance. The "." delimiter tells koanf how to
	// separate nested keys internally (e.g., "server.port").
	k := koanf.New(".")

	// Load the YAML config file. file.Provider reads the file,
	// yaml.Parser() decodes the YAML format into koanf's internal map.
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	// Layer environment variables on top. Any env var starting with
	// "LLMROUTER_" can override a config value. The callback transforms
	// the env var name into a koanf key path:
	//   LLMROUTER_SERVER_PORT -> server.port
	if err := k.Load(env.Provider("LLMROUTER_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "LLMROUTER_")),
			"_", ".",
		)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	// Unmarshal the loaded key-value pairs into our Config struct.
	// The "" means start from the root. &cfg passes a pointer so koanf
	// can write into the struct (like passing by reference in Node).
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR_NAME} placeholders in provider API keys.
	// koanf doesn't do this automatically, so we handle it ourselves
	// using os.Getenv to look up the actual environment variable value.
	for name, p := range cfg.Providers {
		if strings.HasPrefix(p.APIKey, "${") && strings.HasSuffix(p.APIKey, "}") {
			envVar := p.APIKey[2 : len(p.APIKey)-1] // strip ${ and }
			p.APIKey = os.Getenv(envVar)
			cfg.Providers[name] = p // write back into the map
		}
	}

	return &cfg, nil
}

// ProviderConfigs flattens the name-keyed Providers map into the slice
// shape provider.NewRegistry takes, filling in each entry's Name from its
// map key. Map iteration order is randomized, so the result is sorted by
// name for a deterministic registration order run to run.
func (c *Config) ProviderConfigs() []provider.ProviderConfig {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]provider.ProviderConfig, 0, len(names))
	for _, name := range names {
		p := c.Providers[name]
		out = append(out, provider.ProviderConfig{
			Name:          name,
			ProviderType:  p.ProviderType,
			AuthType:      p.AuthType,
			APIKey:        p.APIKey,
			OAuthProvider: p.OAuthProvider,
			BaseURL:       p.BaseURL,
			Models:        p.Models,
			ProjectID:     p.ProjectID,
			Location:      p.Location,
			Enabled:       !p.Disabled,
			CustomHeaders: p.CustomHeaders,
		})
	}
	return out
}

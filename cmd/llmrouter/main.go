// Package main is the entry point for the llmrouter gateway.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/howard-nolan/llmrouter/internal/config"
	"github.com/howard-nolan/llmrouter/internal/oauth"
	"github.com/howard-nolan/llmrouter/internal/provider"
	"github.com/howard-nolan/llmrouter/internal/server"
)

// oauthConfigForDialect resolves the config file's oauth_dialect string
// into the vendor Config that dialect needs. "anthropic-console" and
// "codex" are the only dialects with a distinct URL set; anything else
// (including an empty string) falls back to the standard Anthropic
// Claude Pro/Max endpoints.
func oauthConfigForDialect(dialect string) oauth.Config {
	switch dialect {
	case "anthropic-console":
		return oauth.AnthropicConsole()
	case "codex":
		return oauth.Codex()
	default:
		return oauth.Anthropic()
	}
}

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	tokenStorePath := cfg.OAuth.TokenStorePath
	if tokenStorePath == "" {
		tokenStorePath = "oauth_tokens.json"
	}
	tokenStore := oauth.NewFileStore(tokenStorePath)

	// Every OAuth-authenticated provider entry gets its own vendor Config,
	// keyed by its oauth_provider (or, when that is empty, the provider's
	// own name) — the same provider ID the registry hands to oauth.Client.
	oauthConfigs := make(map[string]oauth.Config)
	for name, p := range cfg.Providers {
		if p.AuthType != provider.AuthTypeOAuth {
			continue
		}
		oauthID := p.OAuthProvider
		if oauthID == "" {
			oauthID = name
		}
		oauthConfigs[oauthID] = oauthConfigForDialect(p.OAuthDialect)
	}
	oauthClient := oauth.NewClient(http.DefaultClient, tokenStore, oauthConfigs)

	ctx := context.Background()
	registry, err := provider.NewRegistry(ctx, cfg.ProviderConfigs(), http.DefaultClient, oauthClient)
	if err != nil {
		log.Fatalf("failed to build provider registry: %v", err)
	}

	for _, name := range registry.ListProviders() {
		log.Printf("registered provider %q", name)
	}

	srv := server.New(cfg, registry)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Printf("llmrouter listening on :%d", cfg.Server.Port)

	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

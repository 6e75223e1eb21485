// Package provider implements the gateway's backend adapters — one per
// wire dialect an upstream model provider might speak — and the registry
// that dispatches a request to the right one.
//
// Every backend satisfies the same Provider interface regardless of
// dialect; the rest of the gateway (the HTTP handlers) never branches on
// which concrete backend is serving a request.
package provider

import (
	"context"
	"net/http"

	"github.com/howard-nolan/llmrouter/internal/gwerr"
	"github.com/howard-nolan/llmrouter/internal/message"
)

// Provider is the capability contract every backend variant satisfies:
// AnthropicCompatible, OpenAICompatible, and Gemini (in its three
// sub-modes) all implement this identically, even though streaming and
// token counting are stubs across the board.
type Provider interface {
	// Name returns the configured provider identifier, used for registry
	// lookups, metrics labels, and error messages.
	Name() string

	// SendMessage executes one request against the upstream provider and
	// returns the canonical response. This is the only capability every
	// backend actually implements.
	SendMessage(ctx context.Context, req *message.CanonicalRequest) (*message.CanonicalResponse, error)

	// SendMessageStream always fails with gwerr.NotImplemented — streaming
	// delivery is outside this gateway's scope.
	SendMessageStream(ctx context.Context, req *message.CanonicalRequest) (<-chan message.ContentBlock, error)

	// CountTokens always fails with gwerr.NotImplemented — no backend here
	// calls out to a remote tokenizer.
	CountTokens(ctx context.Context, req *message.CanonicalRequest) (int, error)

	// SupportsModel reports whether name is in this provider's configured
	// model list.
	SupportsModel(name string) bool
}

// notImplementedStream and notImplementedCount are shared by every backend
// so the "streaming and token counting are stubs" behavior can't drift
// between AnthropicCompatible, OpenAICompatible, and Gemini.
func notImplementedStream(_ context.Context, _ *message.CanonicalRequest) (<-chan message.ContentBlock, error) {
	return nil, &gwerr.NotImplemented{Capability: "send_message_stream"}
}

func notImplementedCount(_ context.Context, _ *message.CanonicalRequest) (int, error) {
	return 0, &gwerr.NotImplemented{Capability: "count_tokens"}
}

// supportsModel is the shared membership test against a provider's
// configured model list — used by every backend variant's SupportsModel.
func supportsModel(models []string, name string) bool {
	for _, m := range models {
		if m == name {
			return true
		}
	}
	return false
}

// applyCustomHeaders copies a provider's optional extra headers onto an
// outbound request, skipping the two headers every backend already owns.
// The convention (caller's choice, per the design notes) is that
// Content-Type and Authorization can't be overridden this way.
func applyCustomHeaders(header http.Header, custom map[string]string) {
	for k, v := range custom {
		if k == "Content-Type" || k == "Authorization" {
			continue
		}
		header.Set(k, v)
	}
}

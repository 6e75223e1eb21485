package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/llmrouter/internal/gwerr"
	"github.com/howard-nolan/llmrouter/internal/message"
)

func TestAnthropicCompatibleSendMessageUsesAPIKeyHeader(t *testing.T) {
	var gotAPIKey, gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		assert.Equal(t, "/v1/messages", r.URL.Path)

		reason := "end_turn"
		resp := message.NewResponse("msg_1", "claude-haiku-4-5-20251001",
			[]message.ContentBlock{message.TextBlock("hi there")}, &reason,
			message.Usage{InputTokens: 5, OutputTokens: 3})
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	backend, err := NewAnthropicCompatible(AnthropicCompatibleConfig{
		Name: "anthropic", ProviderType: "anthropic", BaseURL: srv.URL,
		Models: []string{"claude-haiku-4-5-20251001"}, APIKey: "sk-test",
	}, srv.Client())
	require.NoError(t, err)

	resp, err := backend.SendMessage(context.Background(), &message.CanonicalRequest{
		Model:     "claude-haiku-4-5-20251001",
		Messages:  []message.Message{{Role: "user", Content: message.TextContent("hi")}},
		MaxTokens: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, "sk-test", gotAPIKey)
	assert.Equal(t, anthropicAPIVersion, gotVersion)
	assert.Equal(t, "hi there", resp.Content[0].Text)
	assert.Equal(t, 5, resp.Usage.InputTokens)
}

func TestAnthropicCompatibleSendMessageNonOKBecomesApiError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	backend, err := NewAnthropicCompatible(AnthropicCompatibleConfig{
		Name: "anthropic", ProviderType: "anthropic", BaseURL: srv.URL, APIKey: "sk-test",
	}, srv.Client())
	require.NoError(t, err)

	_, err = backend.SendMessage(context.Background(), &message.CanonicalRequest{Model: "claude-haiku-4-5-20251001"})
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, gwerr.StatusFor(err))
}

func TestAnthropicCompatibleRejectsUnknownProviderTypeWithoutBaseURL(t *testing.T) {
	_, err := NewAnthropicCompatible(AnthropicCompatibleConfig{
		Name: "mystery", ProviderType: "mystery-vendor",
	}, http.DefaultClient)
	require.Error(t, err)
}

func TestAnthropicCompatibleFillsMissingResponseID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"message","role":"assistant","content":[{"type":"text","text":"hi"}],"model":"x","usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	backend, err := NewAnthropicCompatible(AnthropicCompatibleConfig{
		Name: "kimi-coding", ProviderType: "kimi-coding", BaseURL: srv.URL, APIKey: "k",
	}, srv.Client())
	require.NoError(t, err)

	resp, err := backend.SendMessage(context.Background(), &message.CanonicalRequest{Model: "kimi-k2"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
	assert.True(t, strings.HasPrefix(resp.ID, "msg_"))
}

func TestAnthropicCompatibleSupportsModel(t *testing.T) {
	backend, err := NewAnthropicCompatible(AnthropicCompatibleConfig{
		Name: "anthropic", ProviderType: "anthropic", Models: []string{"claude-haiku-4-5-20251001"},
	}, http.DefaultClient)
	require.NoError(t, err)

	assert.True(t, backend.SupportsModel("claude-haiku-4-5-20251001"))
	assert.False(t, backend.SupportsModel("gpt-4o"))
}

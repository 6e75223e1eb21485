package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/llmrouter/internal/message"
	"github.com/howard-nolan/llmrouter/internal/translate"
)

func TestOpenAICompatibleSendMessageRoundTrips(t *testing.T) {
	var gotAuth string
	var gotReq translate.OpenAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		content := "hello from upstream"
		reason := "stop"
		resp := translate.OpenAIResponse{
			ID:    "chatcmpl-1",
			Model: "llama-3",
			Choices: []translate.OpenAIChoice{
				{Message: translate.OpenAIResponseMessage{Role: "assistant", Content: &content}, FinishReason: &reason},
			},
			Usage: translate.OpenAIUsage{PromptTokens: 4, CompletionTokens: 6, TotalTokens: 10},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	backend, err := NewOpenAICompatible(OpenAICompatibleConfig{
		Name: "together", ProviderType: "together", BaseURL: srv.URL, APIKey: "key-1",
		Models: []string{"llama-3"},
	}, srv.Client())
	require.NoError(t, err)

	resp, err := backend.SendMessage(context.Background(), &message.CanonicalRequest{
		Model:    "llama-3",
		System:   message.NewSystemText("be terse"),
		Messages: []message.Message{{Role: "user", Content: message.TextContent("hi")}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer key-1", gotAuth)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "hello from upstream", resp.Content[0].Text)
	assert.Equal(t, "end_turn", *resp.StopReason)
	assert.Equal(t, 4, resp.Usage.InputTokens)
}

func TestOpenAICompatibleRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAICompatible(OpenAICompatibleConfig{
		Name: "together", ProviderType: "together",
	}, http.DefaultClient)
	require.Error(t, err)
}

func TestMapOpenAIFinishReasonToCanonical(t *testing.T) {
	assert.Equal(t, "end_turn", mapOpenAIFinishReasonToCanonical("stop"))
	assert.Equal(t, "max_tokens", mapOpenAIFinishReasonToCanonical("length"))
	assert.Equal(t, "end_turn", mapOpenAIFinishReasonToCanonical("content_filter"))
}

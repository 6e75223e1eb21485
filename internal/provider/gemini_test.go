package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/llmrouter/internal/gwerr"
	"github.com/howard-nolan/llmrouter/internal/message"
	"github.com/howard-nolan/llmrouter/internal/oauth"
	"github.com/howard-nolan/llmrouter/internal/translate"
)

func TestGeminiAPIKeyModeSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		resp := translate.GeminiResponse{
			Candidates: []translate.GeminiCandidate{{
				Content:      translate.GeminiContent{Parts: []translate.GeminiPart{{Text: "hi"}}},
				FinishReason: "STOP",
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	g := &Gemini{
		name: "gemini", mode: geminiModeAPIKey, apiKey: "test-key",
		client: srv.Client(), apiKeyBaseURL: srv.URL,
	}

	resp, err := g.SendMessage(context.Background(), &message.CanonicalRequest{Model: "gemini-2.5-flash"})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content[0].Text)
}

func TestGeminiCodeAssist404PreviewModelHint(t *testing.T) {
	g := &Gemini{name: "gemini", mode: geminiModeCodeAssist}
	err := g.apiErrorForStatus(http.StatusNotFound, "not found", "gemini-3-preview")
	var apiErr *gwerr.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Body, "preview model")
}

func TestGeminiApiErrorForStatusLeavesOtherModelsUnhinted(t *testing.T) {
	g := &Gemini{name: "gemini", mode: geminiModeAPIKey}
	err := g.apiErrorForStatus(http.StatusNotFound, "not found", "gemini-2.5-flash")
	var apiErr *gwerr.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "not found", apiErr.Body)
}

func TestGeminiConstructionRequiresOneMode(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiConfig{Name: "gemini"}, http.DefaultClient)
	require.Error(t, err)
}

func TestGeminiVertexConstructionFailsWithoutADC(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/nonexistent/creds.json")
	_, err := NewGemini(context.Background(), GeminiConfig{
		Name: "vertex", ProjectID: "proj-1", Location: "us-central1",
	}, http.DefaultClient)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, gwerr.StatusFor(err))
}

func TestGeminiSupportsModel(t *testing.T) {
	g := &Gemini{models: []string{"gemini-2.5-pro"}}
	assert.True(t, g.SupportsModel("gemini-2.5-pro"))
	assert.False(t, g.SupportsModel("gpt-4o"))
}

func TestGeminiCodeAssistSendsEnvelope(t *testing.T) {
	var gotEnvelope codeAssistEnvelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotEnvelope))

		resp := codeAssistResponse{Response: translate.GeminiResponse{
			Candidates: []translate.GeminiCandidate{{
				Content: translate.GeminiContent{Parts: []translate.GeminiPart{{Text: "ok"}}},
			}},
		}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	store := oauth.NewFileStore(t.TempDir() + "/tokens.json")
	require.NoError(t, store.Save(oauth.OAuthToken{
		ProviderID: "gemini-oauth", AccessToken: "access-1", ProjectID: "proj-9",
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	client := oauth.NewClient(srv.Client(), store, map[string]oauth.Config{})

	g := &Gemini{
		name: "gemini", mode: geminiModeCodeAssist,
		oauthClient: client, oauthID: "gemini-oauth",
		client: srv.Client(), codeAssistBaseURL: srv.URL,
	}

	resp, err := g.SendMessage(context.Background(), &message.CanonicalRequest{Model: "gemini-2.5-pro"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content[0].Text)
	assert.Equal(t, "proj-9", gotEnvelope.Project)
	assert.Equal(t, "gemini-2.5-pro", gotEnvelope.Model)
}

func TestGeminiNonOKBecomesApiError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("overloaded"))
	}))
	defer srv.Close()

	g := &Gemini{
		name: "gemini", mode: geminiModeAPIKey, apiKey: "k",
		client: srv.Client(), apiKeyBaseURL: srv.URL,
	}

	_, err := g.SendMessage(context.Background(), &message.CanonicalRequest{Model: "gemini-2.5-flash"})
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, gwerr.StatusFor(err))
}

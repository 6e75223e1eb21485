package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/howard-nolan/llmrouter/internal/gwerr"
	"github.com/howard-nolan/llmrouter/internal/message"
	"github.com/howard-nolan/llmrouter/internal/metrics"
	"github.com/howard-nolan/llmrouter/internal/sse"
	"github.com/howard-nolan/llmrouter/internal/translate"
)

// writeJSONError writes an error body shaped the same way regardless of
// which wire surface the request came in on, with status derived from the
// error's place in the gwerr taxonomy.
func writeJSONError(w http.ResponseWriter, err error) {
	status := gwerr.StatusFor(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// handleHealth responds with a simple JSON status indicating the server
// is alive.
//
// In Express terms, this is like:
//   app.get('/health', (req, res) => res.json({ status: 'ok' }))
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleListModels answers GET /v1/models with every configured provider's
// model list, keyed by provider name.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.registry.ListModels())
}

// handleMessages handles POST /v1/messages, the Anthropic-wire inbound
// surface. The canonical request shape mirrors Anthropic's Messages API
// closely enough that the request body decodes straight into
// message.CanonicalRequest with no separate translation step.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	var req message.CanonicalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, &gwerr.Decode{Err: err})
		return
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = message.DefaultMaxTokens
	}

	s.dispatch(w, r, &req, func(resp *message.CanonicalResponse) any { return resp })
}

// handleChatCompletions handles POST /v1/chat/completions, the
// OpenAI-wire inbound surface. The request and response both need a
// translation step since OpenAI's chat.completion shape is structurally
// different from the canonical one.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var wireReq translate.OpenAIRequest
	if err := json.NewDecoder(r.Body).Decode(&wireReq); err != nil {
		writeJSONError(w, &gwerr.Decode{Err: err})
		return
	}

	req := translate.OpenAIToCanonical(&wireReq)
	s.dispatch(w, r, req, func(resp *message.CanonicalResponse) any {
		return translate.CanonicalToOpenAIResponse(resp)
	})
}

// dispatch resolves the provider for req.Model, runs SendMessage (or the
// SSE stub when the caller asked to stream), records metrics, and writes
// the response encoded by toWire — the one piece that differs between the
// Anthropic-wire and OpenAI-wire handlers.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *message.CanonicalRequest, toWire func(*message.CanonicalResponse) any) {
	p, err := s.registry.GetProviderForModel(req.Model)
	if err != nil {
		writeJSONError(w, err)
		return
	}

	w.Header().Set("X-LLMRouter-Provider", p.Name())
	w.Header().Set("X-LLMRouter-Model", req.Model)

	if req.Stream {
		if err := sse.WriteUnimplemented(w, req.Model, "send_message_stream"); err != nil {
			log.Printf("sse write error: %v", err)
		}
		return
	}

	start := time.Now()
	resp, err := p.SendMessage(r.Context(), req)
	if err != nil {
		metrics.ObserveRequest(p.Name(), start, metrics.OutcomeError, 0, 0)
		log.Printf("provider %q error: %v", p.Name(), err)
		writeJSONError(w, err)
		return
	}
	metrics.ObserveRequest(p.Name(), start, metrics.OutcomeSuccess, resp.Usage.InputTokens, resp.Usage.OutputTokens)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toWire(resp))
}

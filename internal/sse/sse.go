// Package sse writes the OpenAI-compatible Server-Sent Event framing the
// gateway's streaming surface would use if streaming were implemented.
// Since streaming is an explicit stub everywhere in this gateway, the one
// thing this package does today is answer a stream:true request with a
// single well-formed SSE error event instead of a bare JSON body a
// streaming client wouldn't know how to parse.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// chunk mirrors the top-level JSON object OpenAI-compatible streaming
// clients expect in each SSE event. Kept even though only the error path
// below ever populates one, since it documents the wire shape a future
// streaming implementation would fill in incrementally.
type chunk struct {
	ID      string      `json:"id"`
	Object  string      `json:"object"`
	Model   string      `json:"model"`
	Choices []choice    `json:"choices"`
	Error   *eventError `json:"error,omitempty"`
}

type choice struct {
	Index        int     `json:"index"`
	Delta        delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type delta struct {
	Content string `json:"content,omitempty"`
}

type eventError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// WriteUnimplemented answers a streaming request with the SSE framing a
// streaming client expects, carrying a single error event and the [DONE]
// sentinel, rather than a plain JSON 501 body the client's SSE parser
// would choke on.
func WriteUnimplemented(w http.ResponseWriter, model, capability string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("sse: response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	reason := "error"
	event := chunk{
		Object:  "chat.completion.chunk",
		Model:   model,
		Choices: []choice{{Index: 0, Delta: delta{}, FinishReason: &reason}},
		Error: &eventError{
			Message: fmt.Sprintf("%s: not implemented", capability),
			Type:    "not_implemented",
		},
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("sse: marshaling error event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", body); err != nil {
		return fmt.Errorf("sse: writing error event: %w", err)
	}
	flusher.Flush()

	if _, err := fmt.Fprintf(w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("sse: writing done marker: %w", err)
	}
	flusher.Flush()
	return nil
}

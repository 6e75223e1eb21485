package gwerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusForMapsEachKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"config", NewConfigError("missing api_key"), 500},
		{"auth", NewAuthError("refresh failed", errors.New("boom")), 401},
		{"api 404", &ApiError{Status: 404, Body: "not found"}, 404},
		{"api 429", &ApiError{Status: 429, Body: "rate limited"}, 429},
		{"model", &ModelNotSupported{Model: "gpt-5"}, 400},
		{"transport", NewTransport(errors.New("dial tcp: timeout")), 502},
		{"decode", NewDecode(errors.New("unexpected EOF")), 502},
		{"not implemented", &NotImplemented{Capability: "streaming"}, 501},
		{"unknown", errors.New("something else"), 500},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusFor(tc.err))
		})
	}
}

func TestStatusForUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("dispatching request: %w", &ModelNotSupported{Model: "gpt-5"})
	assert.Equal(t, 400, StatusFor(wrapped))
}

func TestErrorMessagesIncludeContext(t *testing.T) {
	err := NewAuthError("refresh failed", errors.New("token expired"))
	assert.Contains(t, err.Error(), "refresh failed")
	assert.Contains(t, err.Error(), "token expired")

	apiErr := &ApiError{Status: 500, Body: "internal"}
	assert.Contains(t, apiErr.Error(), "500")
	assert.Contains(t, apiErr.Error(), "internal")
}

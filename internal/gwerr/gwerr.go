// Package gwerr holds the gateway's error taxonomy.
//
// Every error the core produces is one of a small, closed set of kinds:
// a config problem caught at startup, an auth failure, a non-2xx upstream
// response, an unroutable model, a transport failure, or an undecodable
// body. Handlers map each kind to an HTTP status; nothing in this package
// retries — retry policy belongs to the caller, per the gateway's error
// handling design.
//
// Each kind is its own type rather than a single Error{Kind, Msg} struct so
// that errors.As can pull out kind-specific fields (ApiError.Status, in
// particular) without a type switch on a string tag.
package gwerr

import (
	"errors"
	"fmt"
)

// ConfigError means the registry could not be constructed from the given
// configuration: a missing required field, an unknown provider_type, or
// ApiKey auth with no api_key. This is fatal at startup.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("config error: %s", e.Msg)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError builds a ConfigError with a message and no wrapped cause.
func NewConfigError(msg string) *ConfigError {
	return &ConfigError{Msg: msg}
}

// AuthError means an OAuth token was missing, or a refresh attempt failed.
// It is surfaced per-request; the outbound call is never issued.
type AuthError struct {
	Msg string
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("auth error: %s", e.Msg)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError builds an AuthError wrapping the underlying cause.
func NewAuthError(msg string, err error) *AuthError {
	return &AuthError{Msg: msg, Err: err}
}

// ApiError means an upstream provider responded with a non-2xx status.
// Status and Body are surfaced to the client verbatim, except for the
// Gemini 404 rewrite the provider package applies before returning one.
type ApiError struct {
	Status int
	Body   string
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}

// ModelNotSupported means the registry could not route a requested model
// to any configured provider. Treated as a 400-class error — the client
// should pick a different model.
type ModelNotSupported struct {
	Model string
}

func (e *ModelNotSupported) Error() string {
	return fmt.Sprintf("model not supported: %q", e.Model)
}

// Transport means the outbound HTTP call itself failed — a local network
// error, a timeout, a connection refused. Treated as a 502-class error;
// the client may retry.
type Transport struct {
	Err error
}

func (e *Transport) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *Transport) Unwrap() error { return e.Err }

// NewTransport wraps a network-level error.
func NewTransport(err error) *Transport {
	return &Transport{Err: err}
}

// Decode means the upstream response body could not be parsed into the
// expected shape. Treated as 502-class; not retried.
type Decode struct {
	Err error
}

func (e *Decode) Error() string {
	return fmt.Sprintf("decode error: %v", e.Err)
}

func (e *Decode) Unwrap() error { return e.Err }

// NewDecode wraps a JSON (or other body) decoding error.
func NewDecode(err error) *Decode {
	return &Decode{Err: err}
}

// NotImplemented means a capability (streaming, remote token counting) is
// an explicit stub for every backend — not a bug, a documented gap.
type NotImplemented struct {
	Capability string
}

func (e *NotImplemented) Error() string {
	return fmt.Sprintf("%s: not implemented", e.Capability)
}

// StatusFor maps an error produced anywhere in the core to the HTTP status
// an outer handler should respond with, per the error handling design.
// Unrecognized errors default to 500 — they're a programmer error, not one
// of the taxonomy's documented cases.
func StatusFor(err error) int {
	var (
		configErr    *ConfigError
		authErr      *AuthError
		apiErr       *ApiError
		notSupported *ModelNotSupported
		transportErr *Transport
		decodeErr    *Decode
		notImpl      *NotImplemented
	)

	switch {
	case errors.As(err, &configErr):
		return 500
	case errors.As(err, &authErr):
		return 401
	case errors.As(err, &apiErr):
		return apiErr.Status
	case errors.As(err, &notSupported):
		return 400
	case errors.As(err, &transportErr):
		return 502
	case errors.As(err, &decodeErr):
		return 502
	case errors.As(err, &notImpl):
		return 501
	default:
		return 500
	}
}

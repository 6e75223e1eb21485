// Package oauth implements the PKCE authorization-code flow the gateway
// uses to obtain and refresh bearer tokens for OAuth-authenticated
// providers (Anthropic's Claude Pro/Max and OpenAI's Codex CLI app). Two
// vendor dialects share almost all of this flow; they differ only in how
// the authorization URL's query string is built and how the token
// endpoint's request body is encoded. Google's Code Assist backend reads
// its stored token through the same Client, but there is no Google
// endpoint set here: refreshing such a token uses whichever Config its
// provider ID is mapped to.
package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// PKCEVerifier is a Proof Key for Code Exchange pair: a high-entropy random
// verifier, and the SHA-256 challenge derived from it. Both travel through
// the authorization handshake so the token endpoint can confirm the code
// exchange is coming from the same client that started the flow.
type PKCEVerifier struct {
	Verifier  string
	Challenge string
}

// GeneratePKCE creates a new verifier/challenge pair: the verifier is
// base64url-no-pad of 32 random bytes, and the challenge is base64url-no-pad
// of SHA-256(verifier), computed over the verifier's UTF-8 bytes (i.e. the
// encoded string itself, not the raw random bytes). The method is always
// S256 — plain PKCE is never used.
func GeneratePKCE() (PKCEVerifier, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return PKCEVerifier{}, fmt.Errorf("oauth: generating verifier entropy: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(raw)

	return PKCEVerifier{Verifier: verifier, Challenge: challengeFromVerifier(verifier)}, nil
}

// challengeFromVerifier computes base64url-no-pad(SHA256(verifier)) over
// the verifier string's UTF-8 bytes. Split out so the RFC 7636 sample pair
// can be tested deterministically without going through the RNG.
func challengeFromVerifier(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// randomHexState generates the random CSRF state Codex's dialect uses in
// place of the PKCE verifier (Anthropic's dialect uses the verifier itself
// as state — see Client.AuthorizationURL).
func randomHexState() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("oauth: generating state entropy: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

package oauth

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// refreshSafetyMargin is how far ahead of a token's actual expiry
// NeedsRefresh starts reporting true, giving an in-flight request room to
// finish before the token upstream actually rejects it.
const refreshSafetyMargin = 60 * time.Second

// OAuthToken is one provider's stored credential set.
type OAuthToken struct {
	ProviderID    string    `json:"provider_id"`
	AccessToken   string    `json:"access_token"`
	RefreshToken  string    `json:"refresh_token,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
	EnterpriseURL string    `json:"enterprise_url,omitempty"`
	ProjectID     string    `json:"project_id,omitempty"`
}

// NeedsRefresh reports whether this token is close enough to expiry that a
// fresh outbound call should refresh it first.
func (t OAuthToken) NeedsRefresh() bool {
	return !time.Now().UTC().Add(refreshSafetyMargin).Before(t.ExpiresAt)
}

// TokenStore is the one interface the OAuth client demands of persistence.
// The gateway core never cares how tokens are actually stored — a JSON
// file, a database row, a secrets manager — only that reads observe the
// most recent write. See FileStore for the on-disk implementation.
type TokenStore interface {
	Get(providerID string) (OAuthToken, bool, error)
	Save(token OAuthToken) error
	Delete(providerID string) error
}

// FileStore is a JSON-file-backed TokenStore. All reads and writes go
// through a single mutex: concurrent refreshes for different providers
// still serialize on this lock, but refreshes are already coalesced
// per-provider by the Client's single-flight group, so this is never the
// contended path in practice.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a TokenStore backed by the JSON file at path. The
// file is not touched here: a missing file reads as empty, and the first
// Save or Delete creates it.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type fileStoreDocument struct {
	Tokens map[string]OAuthToken `json:"tokens"`
}

func (f *FileStore) load() (fileStoreDocument, error) {
	doc := fileStoreDocument{Tokens: map[string]OAuthToken{}}

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("oauth: reading token store: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("oauth: decoding token store: %w", err)
	}
	if doc.Tokens == nil {
		doc.Tokens = map[string]OAuthToken{}
	}
	return doc, nil
}

func (f *FileStore) persist(doc fileStoreDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("oauth: encoding token store: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("oauth: writing token store: %w", err)
	}
	return nil
}

// Get returns the stored token for providerID, if any.
func (f *FileStore) Get(providerID string) (OAuthToken, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return OAuthToken{}, false, err
	}
	tok, ok := doc.Tokens[providerID]
	return tok, ok, nil
}

// Save upserts a token by ProviderID.
func (f *FileStore) Save(token OAuthToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	doc.Tokens[token.ProviderID] = token
	return f.persist(doc)
}

// Delete removes a stored token, if present. Deleting an absent token is
// not an error.
func (f *FileStore) Delete(providerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	delete(doc.Tokens, providerID)
	return f.persist(doc)
}

package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// APIKeyHeader carries an admin API key.
const APIKeyHeader = "X-API-Key"

// APIKey is one configured admin key. Key is the plaintext secret; only its
// hash is retained.
type APIKey struct {
	ID        string
	Key       string
	Principal string
	Roles     []string
}

type storedKey struct {
	hash      [sha256.Size]byte
	id        string
	principal string
	roles     []string
}

// APIKeyAuthenticator validates the X-API-Key header against a fixed set
// of keys.
type APIKeyAuthenticator struct {
	byHash map[string]storedKey
}

// NewAPIKeyAuthenticator creates an authenticator for keys. Keys with an
// empty Key are ignored.
func NewAPIKeyAuthenticator(keys ...APIKey) *APIKeyAuthenticator {
	a := &APIKeyAuthenticator{byHash: make(map[string]storedKey, len(keys))}
	for _, k := range keys {
		if k.Key == "" {
			continue
		}
		principal := k.Principal
		if principal == "" {
			principal = "apikey:" + k.ID
		}
		sum := sha256.Sum256([]byte(k.Key))
		a.byHash[hex.EncodeToString(sum[:])] = storedKey{
			hash:      sum,
			id:        k.ID,
			principal: principal,
			roles:     append([]string(nil), k.Roles...),
		}
	}
	return a
}

func (a *APIKeyAuthenticator) Name() string { return string(MethodAPIKey) }

// Len returns the number of usable keys.
func (a *APIKeyAuthenticator) Len() int { return len(a.byHash) }

// Authenticate looks the presented key up by hash.
func (a *APIKeyAuthenticator) Authenticate(_ context.Context, r *http.Request) (*Identity, error) {
	key := strings.TrimSpace(r.Header.Get(APIKeyHeader))
	if key == "" {
		return nil, ErrMissingCredentials
	}
	sum := sha256.Sum256([]byte(key))
	stored, ok := a.byHash[hex.EncodeToString(sum[:])]
	if !ok || subtle.ConstantTimeCompare(stored.hash[:], sum[:]) != 1 {
		return nil, ErrInvalidCredentials
	}
	return &Identity{
		Principal: stored.principal,
		Roles:     append([]string(nil), stored.roles...),
		Method:    MethodAPIKey,
	}, nil
}

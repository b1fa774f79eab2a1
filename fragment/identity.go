package fragment

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// MaxNameLength bounds Identity.Name.
const MaxNameLength = 100

// KeyPrefix starts every derived content-cache key.
const KeyPrefix = "fragment:"

// Identity names one fragment instance. Site and User are empty when the
// fragment is not scoped to them. Token order is significant.
type Identity struct {
	Name   string
	Site   string
	User   string
	Tokens []any
}

// Validate checks the name, both scopes, and every token. Name, Site and
// User may not contain '|' so the canonical form splits back into exactly
// one identity.
func (id Identity) Validate() error {
	if err := validateName(id.Name); err != nil {
		return err
	}
	if strings.Contains(id.Site, "|") {
		return fmt.Errorf("%w: site %q contains '|'", ErrInvalidIdentity, id.Site)
	}
	if strings.Contains(id.User, "|") {
		return fmt.Errorf("%w: user %q contains '|'", ErrInvalidIdentity, id.User)
	}
	for i, tok := range id.Tokens {
		if !isPrimitive(tok) {
			return fmt.Errorf("%w: token %d has type %T", ErrInvalidToken, i, tok)
		}
	}
	return nil
}

func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidIdentity)
	case len(name) > MaxNameLength:
		return fmt.Errorf("%w: name exceeds %d bytes", ErrInvalidIdentity, MaxNameLength)
	case strings.Contains(name, "|"):
		return fmt.Errorf("%w: name %q contains '|'", ErrInvalidIdentity, name)
	case strings.IndexFunc(name, unicode.IsSpace) >= 0, strings.IndexFunc(name, unicode.IsControl) >= 0:
		return fmt.Errorf("%w: name %q contains whitespace", ErrInvalidIdentity, name)
	}
	return nil
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case nil, string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// Canonical returns the deterministic form name|user|site|tokens, where
// tokens is the JSON array of the token values ("[]" when there are none).
func (id Identity) Canonical() (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}
	tokens, err := encodeTokens(id.Tokens)
	if err != nil {
		return "", err
	}
	return id.Name + "|" + id.User + "|" + id.Site + "|" + tokens, nil
}

// Key derives the opaque content-cache key for the identity.
// Format: fragment:<name>:<hex of the first 16 bytes of sha256(canonical)>
func (id Identity) Key() (string, error) {
	canonical, err := id.Canonical()
	if err != nil {
		return "", err
	}
	return deriveKey(id.Name, canonical), nil
}

func deriveKey(name, canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return KeyPrefix + name + ":" + hex.EncodeToString(sum[:16])
}

func encodeTokens(tokens []any) (string, error) {
	if len(tokens) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return string(data), nil
}

func encodeToken(tok any) string {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Sprint(tok)
	}
	return string(data)
}

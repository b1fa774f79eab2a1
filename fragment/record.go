package fragment

import (
	"strings"
)

// Record is the durable projection of an Identity. It is created once per
// identity and never updated; only deletion removes it.
type Record struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Site   string `json:"site,omitempty"`
	User   string `json:"user,omitempty"`
	Tokens []any  `json:"tokens,omitempty"`
}

// NewRecord validates id and derives its record.
func NewRecord(id Identity) (Record, error) {
	key, err := id.Key()
	if err != nil {
		return Record{}, err
	}
	var tokens []any
	if len(id.Tokens) > 0 {
		tokens = append([]any(nil), id.Tokens...)
	}
	return Record{
		Key:    key,
		Name:   id.Name,
		Site:   id.Site,
		User:   id.User,
		Tokens: tokens,
	}, nil
}

// Identity returns the identity the record was created from.
func (r Record) Identity() Identity {
	return Identity{Name: r.Name, Site: r.Site, User: r.User, Tokens: r.Tokens}
}

// String renders the record for operator listings, for example
// "navbar | Site #1 | User: 42 | Tokens: [\"a\",2]". Absent parts are omitted.
func (r Record) String() string {
	parts := []string{r.Name}
	if r.Site != "" {
		parts = append(parts, "Site #"+r.Site)
	}
	if r.User != "" {
		parts = append(parts, "User: "+r.User)
	}
	if len(r.Tokens) > 0 {
		tokens, _ := encodeTokens(r.Tokens)
		parts = append(parts, "Tokens: "+tokens)
	}
	return strings.Join(parts, " | ")
}

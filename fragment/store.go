package fragment

import (
	"context"
	"slices"
	"strings"
)

// Store persists fragment records.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - GetOrCreate: concurrent callers with the same identity converge on one
//     record. A lost insert race is not an error; the loser returns the
//     winner's record with created=false.
//   - Delete: removes records only. Content caches are not touched.
//   - Errors: transport failures wrap ErrStoreUnavailable.
type Store interface {
	// GetOrCreate returns the record for id, creating it if absent.
	GetOrCreate(ctx context.Context, id Identity) (Record, bool, error)

	// Find returns the records matching f, ordered by name then key.
	Find(ctx context.Context, f Filter) ([]Record, error)

	// Delete removes the given records and returns how many existed.
	Delete(ctx context.Context, records []Record) (int, error)
}

// Pinger is implemented by stores that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Filter selects records. Zero-valued fields do not constrain. Site and
// User are tri-state: nil matches any scope, a pointer to "" matches only
// unscoped records, and any other value matches that scope exactly.
type Filter struct {
	Name  string
	Names []string
	Site  *string
	User  *string

	// Token matches records holding a token equal to this value.
	Token any
	// TokenContains matches records whose JSON token list contains this
	// substring, case-insensitively.
	TokenContains string

	// All confirms that an otherwise empty filter is meant to match
	// everything in bulk mutations.
	All bool
}

// Scope returns a pointer to s for use in Filter.Site and Filter.User.
func Scope(s string) *string {
	return &s
}

// Unscoped selects only records without the corresponding scope.
func Unscoped() *string {
	return Scope("")
}

// IsEmpty reports whether f places no constraint at all.
func (f Filter) IsEmpty() bool {
	return f.Name == "" && len(f.Names) == 0 && f.Site == nil && f.User == nil &&
		f.Token == nil && f.TokenContains == ""
}

// Matches reports whether r satisfies f.
func (f Filter) Matches(r Record) bool {
	if f.Name != "" && r.Name != f.Name {
		return false
	}
	if len(f.Names) > 0 && !slices.Contains(f.Names, r.Name) {
		return false
	}
	if f.Site != nil && r.Site != *f.Site {
		return false
	}
	if f.User != nil && r.User != *f.User {
		return false
	}
	if f.Token != nil {
		want := encodeToken(f.Token)
		if !slices.ContainsFunc(r.Tokens, func(tok any) bool { return encodeToken(tok) == want }) {
			return false
		}
	}
	if f.TokenContains != "" {
		if len(r.Tokens) == 0 {
			return false
		}
		tokens, _ := encodeTokens(r.Tokens)
		if !strings.Contains(strings.ToLower(tokens), strings.ToLower(f.TokenContains)) {
			return false
		}
	}
	return true
}

func sortRecords(records []Record) {
	slices.SortFunc(records, func(a, b Record) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
}

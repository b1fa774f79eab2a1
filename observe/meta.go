package observe

// FragmentMeta describes a fragment resolution for telemetry.
type FragmentMeta struct {
	// Name is the logical fragment name (required).
	Name string

	// Cache is the requested content cache name; empty means the default.
	Cache string

	// Site is the site scope, if any.
	Site string

	// UserScoped reports whether the fragment varies per user. The user id
	// itself is never attached to telemetry.
	UserScoped bool

	// Tokens is the number of variation tokens.
	Tokens int
}

// SpanName returns the span name for this fragment.
// Format: fragment.resolve.<name>
func (m FragmentMeta) SpanName() string {
	return "fragment.resolve." + m.Name
}

// CacheName returns Cache, or "default" when it is empty.
func (m FragmentMeta) CacheName() string {
	if m.Cache == "" {
		return "default"
	}
	return m.Cache
}

// Outcome is the result class of a resolution.
type Outcome int

const (
	// OutcomeMiss means the fragment was rendered.
	OutcomeMiss Outcome = iota
	// OutcomeHit means cached content was returned.
	OutcomeHit
)

func (o Outcome) String() string {
	if o == OutcomeHit {
		return "hit"
	}
	return "miss"
}

package fragment

import "errors"

var (
	// ErrConfiguration indicates a malformed TTL expression or a cache name
	// with no usable fallback. It is never retried.
	ErrConfiguration = errors.New("fragment: configuration error")

	// ErrStoreUnavailable indicates the record store could not be reached.
	ErrStoreUnavailable = errors.New("fragment: store unavailable")

	// ErrInvalidIdentity indicates an identity that cannot be keyed.
	ErrInvalidIdentity = errors.New("fragment: invalid identity")

	// ErrInvalidToken indicates a variation token that is not a string,
	// number, bool, or nil.
	ErrInvalidToken = errors.New("fragment: invalid token")

	// ErrEmptyFilter is returned by bulk mutations given a filter that
	// matches everything. Use Filter{All: true} to mean it.
	ErrEmptyFilter = errors.New("fragment: refusing to act on an empty filter")

	// ErrNilStore is returned when an engine is built without a store.
	ErrNilStore = errors.New("fragment: store is nil")

	// ErrDuplicateKey reports an insert of a key that already exists.
	ErrDuplicateKey = errors.New("fragment: duplicate key")
)

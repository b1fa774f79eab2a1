// Package fragment caches rendered template fragments under durable,
// operator-visible identities.
//
// A fragment is identified by a name, an optional site and user scope, and
// an ordered list of variation tokens. The identity's canonical form is
// hashed into an opaque content-cache key. The mapping from identity to key
// is persisted as a Record in a Store so operators can find and evict
// fragments by name, site, user, or token without knowing the key, and an
// in-process Registry avoids a store round trip on every resolution.
//
// # Resolution
//
// Engine.Resolve runs the get-or-render flow:
//
//  1. Validate the identity, resolve the TTL expression (see package ttl),
//     and select the content cache by name with fallback.
//  2. Look up the canonical form in the Registry. On a miss, get-or-create
//     the Record in the Store and remember its key.
//  3. Return cached content when present. An empty cached value is a hit.
//  4. Otherwise render, store the result with the TTL, and return it.
//
// Concurrent misses on the same key each render and write. Only the key
// resolution in step 2 is collapsed per canonical form.
//
// # Invalidation
//
// Deleting records with Store.Delete never touches the content caches.
// Engine.Clear evicts the content of matching records from every registered
// cache and keeps the records; Engine.Purge evicts and then deletes.
//
// # Errors
//
// Malformed TTL expressions and unresolvable cache names wrap
// ErrConfiguration. Store failures wrap ErrStoreUnavailable. Errors returned
// by a RenderFunc are passed through unchanged and nothing is cached.
package fragment

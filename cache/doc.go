// Package cache provides the content caches that hold rendered fragments.
//
// It defines the Cache interface, three implementations (an in-process map,
// a ristretto-backed L1, and Redis), a Registry of named caches with
// fallback selection, and a TTL Policy.
package cache

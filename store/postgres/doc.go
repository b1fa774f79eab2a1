// Package postgres implements fragment.Store on PostgreSQL.
//
// Records live in fragcache.fragment_records, created by the embedded
// migrations on Open. Every query goes through a resilience.Executor:
// reads may be retried, the insert in GetOrCreate is not. Connection-level
// failures and an open circuit are reported as fragment.ErrStoreUnavailable.
package postgres

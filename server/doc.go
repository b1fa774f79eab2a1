// Package server assembles a fragment cache deployment from config: the
// record store, the content caches, the engine and the HTTP surface that
// fragmentd serves. fragctl uses the same assembly for local operations.
package server

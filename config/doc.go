// Package config loads fragmentd and fragctl settings from the environment,
// optionally seeded from a .env file, and resolves secret references in the
// credential-bearing values.
package config

// Package auth guards the fragment admin API.
//
// Callers present either a bearer JWT or an API key. An Authenticator turns
// the request into an Identity; a RoleAuthorizer decides whether that
// identity holds the Permission a route needs. Require composes both into
// HTTP middleware.
package auth

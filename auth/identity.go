package auth

import (
	"slices"
	"time"
)

// Method records how an identity authenticated.
type Method string

const (
	MethodJWT    Method = "jwt"
	MethodAPIKey Method = "api_key"
)

// Identity is an authenticated admin API caller.
type Identity struct {
	Principal string
	Roles     []string
	Method    Method
	ExpiresAt time.Time
}

// HasRole reports whether the identity carries role.
func (id *Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// Expired reports whether the identity had an expiry that has passed.
func (id *Identity) Expired(now time.Time) bool {
	return !id.ExpiresAt.IsZero() && now.After(id.ExpiresAt)
}

package auth

import (
	"context"
	"fmt"
	"slices"
)

// Permission is an admin API capability.
type Permission string

const (
	// PermRead allows listing fragment records.
	PermRead Permission = "fragments:read"

	// PermWrite allows clearing and purging fragment records.
	PermWrite Permission = "fragments:write"
)

// Well-known roles.
const (
	RoleReader = "reader"
	RoleAdmin  = "admin"
)

// Authorizer decides whether id may exercise perm.
type Authorizer interface {
	Authorize(ctx context.Context, id *Identity, perm Permission) error
}

// AuthzError describes a denial. It matches ErrForbidden.
type AuthzError struct {
	Principal  string
	Permission Permission
}

func (e *AuthzError) Error() string {
	return fmt.Sprintf("auth: %q lacks %s", e.Principal, e.Permission)
}

func (e *AuthzError) Is(target error) bool { return target == ErrForbidden }

// RoleAuthorizer grants permissions by role.
type RoleAuthorizer struct {
	grants map[string][]Permission
}

// NewRoleAuthorizer creates an authorizer from role grants. A nil map uses
// DefaultGrants.
func NewRoleAuthorizer(grants map[string][]Permission) *RoleAuthorizer {
	if grants == nil {
		grants = DefaultGrants()
	}
	return &RoleAuthorizer{grants: grants}
}

// DefaultGrants gives readers PermRead and admins both permissions.
func DefaultGrants() map[string][]Permission {
	return map[string][]Permission{
		RoleReader: {PermRead},
		RoleAdmin:  {PermRead, PermWrite},
	}
}

// Authorize returns nil when any of id's roles grants perm.
func (a *RoleAuthorizer) Authorize(_ context.Context, id *Identity, perm Permission) error {
	if id == nil {
		return &AuthzError{Permission: perm}
	}
	for _, role := range id.Roles {
		if slices.Contains(a.grants[role], perm) {
			return nil
		}
	}
	return &AuthzError{Principal: id.Principal, Permission: perm}
}

// AllowAll permits every request. It is used when the admin API runs
// without credentials configured.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, *Identity, Permission) error { return nil }

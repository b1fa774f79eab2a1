package auth

import "errors"

var (
	// ErrMissingCredentials indicates the request carried no credentials
	// the authenticator understands.
	ErrMissingCredentials = errors.New("auth: missing credentials")

	// ErrInvalidCredentials indicates credentials were present but rejected.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenExpired indicates an expired JWT.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrForbidden indicates an authenticated identity lacks a permission.
	ErrForbidden = errors.New("auth: access denied")
)

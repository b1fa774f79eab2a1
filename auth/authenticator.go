package auth

import (
	"context"
	"net/http"
)

// Authenticator resolves a request's credentials to an Identity.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: ErrMissingCredentials when the request carries nothing this
//     authenticator reads; ErrInvalidCredentials or ErrTokenExpired when it
//     does but they fail; anything else is an internal error.
type Authenticator interface {
	Name() string
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)
}

// AuthenticatorFunc adapts a function into an Authenticator.
type AuthenticatorFunc func(ctx context.Context, r *http.Request) (*Identity, error)

func (f AuthenticatorFunc) Name() string { return "func" }

func (f AuthenticatorFunc) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	return f(ctx, r)
}

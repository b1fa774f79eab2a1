package auth

import (
	"context"
	"errors"
	"net/http"
)

// Chain tries authenticators in order. An authenticator answering
// ErrMissingCredentials is skipped; any other answer is final.
type Chain []Authenticator

func (c Chain) Name() string { return "chain" }

func (c Chain) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	for _, a := range c {
		if a == nil {
			continue
		}
		id, err := a.Authenticate(ctx, r)
		if errors.Is(err, ErrMissingCredentials) {
			continue
		}
		return id, err
	}
	return nil, ErrMissingCredentials
}

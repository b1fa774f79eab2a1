package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures HMAC-signed bearer token validation.
type JWTConfig struct {
	// Secret is the HS256 signing key.
	Secret []byte

	// Issuer and Audience are checked when set.
	Issuer   string
	Audience string

	// RolesClaim names the claim holding a list of roles. Default: "roles".
	RolesClaim string
}

// JWTAuthenticator validates "Authorization: Bearer <jwt>" headers.
type JWTAuthenticator struct {
	cfg    JWTConfig
	parser *jwt.Parser
}

// NewJWTAuthenticator creates a JWT authenticator.
func NewJWTAuthenticator(cfg JWTConfig) *JWTAuthenticator {
	if cfg.RolesClaim == "" {
		cfg.RolesClaim = "roles"
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &JWTAuthenticator{cfg: cfg, parser: jwt.NewParser(opts...)}
}

func (a *JWTAuthenticator) Name() string { return string(MethodJWT) }

// Authenticate validates the bearer token.
func (a *JWTAuthenticator) Authenticate(_ context.Context, r *http.Request) (*Identity, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, ErrMissingCredentials
	}

	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
		return a.cfg.Secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	id := &Identity{Method: MethodJWT}
	id.Principal, _ = claims.GetSubject()
	if exp, _ := claims.GetExpirationTime(); exp != nil {
		id.ExpiresAt = exp.Time
	}
	if roles, ok := claims[a.cfg.RolesClaim].([]any); ok {
		for _, role := range roles {
			if s, ok := role.(string); ok {
				id.Roles = append(id.Roles, s)
			}
		}
	}
	if id.Principal == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidCredentials)
	}
	return id, nil
}

// SignToken issues an HS256 token for subject, as fragctl does for local
// admin calls.
func SignToken(cfg JWTConfig, subject string, roles []string, claims jwt.MapClaims) (string, error) {
	if cfg.RolesClaim == "" {
		cfg.RolesClaim = "roles"
	}
	c := jwt.MapClaims{"sub": subject, cfg.RolesClaim: roles}
	if cfg.Issuer != "" {
		c["iss"] = cfg.Issuer
	}
	if cfg.Audience != "" {
		c["aud"] = cfg.Audience
	}
	for k, v := range claims {
		c[k] = v
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(cfg.Secret)
}

package fragment

import "context"

// Env is the per-render context a Directive is evaluated against.
type Env struct {
	Site string
	User string
}

// Directive describes a cached block as written by a template author. It is
// plain data: the same Directive may be rendered concurrently against
// different environments.
type Directive struct {
	Name string
	// TTL is a ttl expression; nil or "" means the policy default.
	TTL any
	// VaryOnSite and VaryOnUser scope the fragment to Env.Site and Env.User.
	VaryOnSite bool
	VaryOnUser bool
	Tokens     []any
	// Cache names the content cache; empty selects the fragments cache.
	Cache string
}

// Identity builds the identity d takes in env.
func (d Directive) Identity(env Env) Identity {
	id := Identity{Name: d.Name, Tokens: d.Tokens}
	if d.VaryOnSite {
		id.Site = env.Site
	}
	if d.VaryOnUser {
		id.User = env.User
	}
	return id
}

// Render resolves d in env.
func (e *Engine) Render(ctx context.Context, env Env, d Directive, render RenderFunc) (string, error) {
	return e.Resolve(ctx, d.Identity(env), d.TTL, render, d.Cache)
}

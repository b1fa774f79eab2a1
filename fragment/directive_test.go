package fragment

import (
	"context"
	"testing"
)

func TestDirective_Identity(t *testing.T) {
	env := Env{Site: "3", User: "77"}
	tests := []struct {
		name string
		d    Directive
		want Identity
	}{
		{"unscoped", Directive{Name: "nav"}, Identity{Name: "nav"}},
		{"site", Directive{Name: "nav", VaryOnSite: true}, Identity{Name: "nav", Site: "3"}},
		{"user", Directive{Name: "nav", VaryOnUser: true}, Identity{Name: "nav", User: "77"}},
		{
			"both with tokens",
			Directive{Name: "nav", VaryOnSite: true, VaryOnUser: true, Tokens: []any{"p", 2}},
			Identity{Name: "nav", Site: "3", User: "77", Tokens: []any{"p", 2}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := tt.d.Identity(env).Canonical()
			want, _ := tt.want.Canonical()
			if got != want {
				t.Errorf("Identity() canonical = %q, want %q", got, want)
			}
		})
	}
}

func TestEngine_RenderIsStateless(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := Directive{Name: "greeting", TTL: "10m", VaryOnUser: true}

	render := func(user string) RenderFunc {
		return func(context.Context) (string, error) { return "hello " + user, nil }
	}
	for _, user := range []string{"1", "2", "1"} {
		got, err := f.engine.Render(ctx, Env{User: user}, d, render(user))
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if got != "hello "+user {
			t.Errorf("Render(user %s) = %q", user, got)
		}
	}
	if f.store.Len() != 2 {
		t.Errorf("store rows = %d, want 2", f.store.Len())
	}
}

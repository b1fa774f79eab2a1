package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonwraymond/fragcache/admin"
	"github.com/jonwraymond/fragcache/auth"
	"github.com/jonwraymond/fragcache/cache"
	"github.com/jonwraymond/fragcache/fragment"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(context.Background(), append([]string{"fragctl"}, args...))
	return out.String(), err
}

func TestTTLCommand(t *testing.T) {
	out, err := run(t, "ttl", "2h-30m", "1d", "5000")
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	want := "2h-30m\t9000\n1d\t86400\n5000\t5000\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if _, err := run(t, "ttl", "bogus"); err == nil {
		t.Error("bogus expression accepted")
	}
}

func isolateEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("ADMIN_JWT_SECRET", "")
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLocalList_EmptyMemoryStore(t *testing.T) {
	envFile := isolateEnv(t)
	out, err := run(t, "--env-file", envFile, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if out != "0 records\n" {
		t.Errorf("output = %q", out)
	}
}

func TestLocalPurge_RequiresFilter(t *testing.T) {
	envFile := isolateEnv(t)
	if _, err := run(t, "--env-file", envFile, "purge"); err == nil {
		t.Fatal("purge without a filter should fail")
	}
	out, err := run(t, "--env-file", envFile, "purge", "--all")
	if err != nil || out != "purged 0 records\n" {
		t.Fatalf("purge --all = %q, %v", out, err)
	}
}

func remoteServer(t *testing.T) (*httptest.Server, *fragment.MemoryStore) {
	t.Helper()
	store := fragment.NewMemoryStore()
	caches := cache.NewRegistry()
	_ = caches.Register(cache.DefaultName, cache.NewMemoryCache())
	engine, err := fragment.NewEngine(store, fragment.NewRegistry(), caches)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []fragment.Identity{
		{Name: "navbar", Site: "1"},
		{Name: "footer", Site: "1", Tokens: []any{"en-us"}},
		{Name: "footer", Site: "2", Tokens: []any{"de"}},
	} {
		if _, _, err := store.GetOrCreate(context.Background(), id); err != nil {
			t.Fatal(err)
		}
	}
	h := admin.NewHandler(engine, admin.Options{
		Authenticator: auth.NewAPIKeyAuthenticator(auth.APIKey{ID: "ops", Key: "k", Roles: []string{auth.RoleAdmin}}),
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, store
}

func TestRemote(t *testing.T) {
	isolateEnv(t)
	srv, store := remoteServer(t)
	base := []string{"--server", srv.URL, "--api-key", "k"}

	out, err := run(t, append(base, "list", "--name", "footer")...)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.HasSuffix(out, "2 records\n") || !strings.Contains(out, "footer | Site #1 | Tokens: [\"en-us\"]") {
		t.Errorf("list output:\n%s", out)
	}

	out, err = run(t, append(base, "clear", "--token", "en-us")...)
	if err != nil || out != "cleared 1 records\n" {
		t.Fatalf("clear = %q, %v", out, err)
	}

	out, err = run(t, append(base, "purge", "--site", "2")...)
	if err != nil || out != "purged 1 records\n" {
		t.Fatalf("purge = %q, %v", out, err)
	}
	if store.Len() != 2 {
		t.Errorf("records left = %d", store.Len())
	}
}

func TestRemote_Unauthorized(t *testing.T) {
	isolateEnv(t)
	srv, _ := remoteServer(t)
	_, err := run(t, "--server", srv.URL, "--env-file", filepath.Join(t.TempDir(), "none"), "list")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("err = %v", err)
	}
}

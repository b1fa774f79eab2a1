package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/urfave/cli/v3"

	"github.com/jonwraymond/fragcache/auth"
	"github.com/jonwraymond/fragcache/config"
)

// client calls a fragmentd admin API.
type client struct {
	base   string
	header http.Header
	http   *http.Client
}

// newClient authenticates with --api-key when given, otherwise with a
// short-lived admin token signed from ADMIN_JWT_SECRET when configured.
func newClient(ctx context.Context, cmd *cli.Command) (*client, error) {
	c := &client{
		base:   strings.TrimRight(cmd.String("server"), "/"),
		header: http.Header{},
		http:   &http.Client{Timeout: 30 * time.Second},
	}
	if key := cmd.String("api-key"); key != "" {
		c.header.Set(auth.APIKeyHeader, key)
		return c, nil
	}

	cfg, err := config.LoadFile(ctx, cmd.String("env-file"), nil)
	if err != nil {
		return nil, err
	}
	if jc, ok := cfg.JWT(); ok {
		token, err := auth.SignToken(jc, "fragctl", []string{auth.RoleAdmin}, jwt.MapClaims{
			"exp": time.Now().Add(5 * time.Minute).Unix(),
		})
		if err != nil {
			return nil, err
		}
		c.header.Set("Authorization", "Bearer "+token)
	}
	return c, nil
}

func (c *client) do(ctx context.Context, method, path string, q url.Values, out any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	req.Header = c.header.Clone()

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, body.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

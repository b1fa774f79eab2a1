package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/jonwraymond/fragcache/admin"
	"github.com/jonwraymond/fragcache/config"
	"github.com/jonwraymond/fragcache/fragment"
	"github.com/jonwraymond/fragcache/server"
)

// local builds the deployment described by the environment.
func local(ctx context.Context, cmd *cli.Command) (*server.Deps, error) {
	cfg, err := config.LoadFile(ctx, cmd.String("env-file"), nil)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return server.Build(ctx, cfg, nil, nil)
}

func runList(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	f, q, err := parseFilter(cmd)
	if err != nil {
		return err
	}

	var records []fragment.Record
	if cmd.String("server") != "" {
		c, err := newClient(ctx, cmd)
		if err != nil {
			return err
		}
		var resp admin.ListResponse
		if err := c.do(ctx, "GET", "/fragments", q, &resp); err != nil {
			return err
		}
		for _, v := range resp.Records {
			records = append(records, v.Record)
		}
	} else {
		deps, err := local(ctx, cmd)
		if err != nil {
			return err
		}
		defer deps.Close()
		if records, err = deps.Engine.Find(ctx, f); err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	for _, r := range records {
		fmt.Fprintf(out, "%s\t%s\n", r.Key, r)
	}
	fmt.Fprintf(out, "%d records\n", len(records))
	return nil
}

func runClear(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	f, q, err := parseFilter(cmd)
	if err != nil {
		return err
	}

	var n int
	if cmd.String("server") != "" {
		c, err := newClient(ctx, cmd)
		if err != nil {
			return err
		}
		var resp admin.ClearResponse
		if err := c.do(ctx, "POST", "/fragments/clear", q, &resp); err != nil {
			return err
		}
		n = resp.Cleared
	} else {
		deps, err := local(ctx, cmd)
		if err != nil {
			return err
		}
		defer deps.Close()
		records, err := deps.Engine.Clear(ctx, f)
		if err != nil {
			return err
		}
		n = len(records)
	}
	fmt.Fprintf(out, "cleared %d records\n", n)
	return nil
}

func runPurge(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	f, q, err := parseFilter(cmd)
	if err != nil {
		return err
	}

	var n int
	if cmd.String("server") != "" {
		c, err := newClient(ctx, cmd)
		if err != nil {
			return err
		}
		var resp admin.PurgeResponse
		if err := c.do(ctx, "DELETE", "/fragments", q, &resp); err != nil {
			return err
		}
		n = resp.Purged
	} else {
		deps, err := local(ctx, cmd)
		if err != nil {
			return err
		}
		defer deps.Close()
		if n, err = deps.Engine.Purge(ctx, f); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "purged %d records\n", n)
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jonwraymond/fragcache/admin"
	"github.com/jonwraymond/fragcache/fragment"
	"github.com/jonwraymond/fragcache/ttl"
)

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "fragctl",
		Usage:     "fragment cache operator tool",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "fragmentd base URL; empty operates on the configured store directly",
				Sources: cli.EnvVars("FRAGCTL_SERVER"),
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "admin API key for --server",
				Sources: cli.EnvVars("FRAGCTL_API_KEY"),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file read before the environment",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			ttlCommand(out),
			{
				Name:   "list",
				Usage:  "list fragment records",
				Flags:  append(filterFlags(), &cli.BoolFlag{Name: "json", Usage: "print records as JSON"}),
				Action: func(ctx context.Context, cmd *cli.Command) error { return runList(ctx, cmd, out) },
			},
			{
				Name:   "clear",
				Usage:  "evict matching fragments from every cache, keeping their records",
				Flags:  filterFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error { return runClear(ctx, cmd, out) },
			},
			{
				Name:   "purge",
				Usage:  "evict matching fragments and delete their records",
				Flags:  filterFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error { return runPurge(ctx, cmd, out) },
			},
		},
	}
}

func ttlCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "ttl",
		Usage:     "print the seconds a TTL expression resolves to",
		ArgsUsage: "<expr>...",
		Action: func(_ context.Context, cmd *cli.Command) error {
			exprs := cmd.Args().Slice()
			if len(exprs) == 0 {
				return errors.New("ttl: at least one expression is required")
			}
			for _, expr := range exprs {
				secs, err := ttl.ResolveString(expr)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%d\n", expr, secs)
			}
			return nil
		},
	}
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{Name: "name", Aliases: []string{"n"}, Usage: "fragment name (repeatable)"},
		&cli.StringFlag{Name: "site", Usage: "site scope"},
		&cli.StringFlag{Name: "user", Usage: "user scope"},
		&cli.BoolFlag{Name: "unscoped-site", Usage: "only records without a site"},
		&cli.BoolFlag{Name: "unscoped-user", Usage: "only records without a user"},
		&cli.StringFlag{Name: "token", Usage: "token equal to this JSON scalar or string"},
		&cli.StringFlag{Name: "token-contains", Usage: "case-insensitive substring of the token list"},
		&cli.BoolFlag{Name: "all", Usage: "confirm an empty filter matches every record"},
	}
}

// filterQuery maps flags onto the admin API's query parameters so both
// modes parse filters the same way.
func filterQuery(cmd *cli.Command) url.Values {
	q := url.Values{}
	for _, n := range cmd.StringSlice("name") {
		q.Add("name", n)
	}
	for _, name := range []string{"site", "user", "token", "token-contains"} {
		if cmd.IsSet(name) {
			q.Set(strings.ReplaceAll(name, "-", "_"), cmd.String(name))
		}
	}
	for _, name := range []string{"unscoped-site", "unscoped-user", "all"} {
		if cmd.Bool(name) {
			q.Set(strings.ReplaceAll(name, "-", "_"), "true")
		}
	}
	return q
}

// parseFilter returns the filter and its canonical query for remote calls.
func parseFilter(cmd *cli.Command) (fragment.Filter, url.Values, error) {
	f, err := admin.ParseFilter(filterQuery(cmd))
	if err != nil {
		return f, nil, err
	}
	return f, admin.Query(f), nil
}

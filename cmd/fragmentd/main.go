// Command fragmentd serves the fragment cache admin API, health probes and
// metrics for one site.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jonwraymond/fragcache/config"
	"github.com/jonwraymond/fragcache/observe"
	"github.com/jonwraymond/fragcache/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fragmentd:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx, nil)
	if err != nil {
		return err
	}
	if err := errors.Join(cfg.Validate(), cfg.ValidateServe()); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	obsCfg := cfg.Observe()
	obsCfg.Metrics.Registerer = registry

	obs, err := observe.NewObserver(ctx, obsCfg)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		_ = obs.Shutdown(sctx)
	}()
	logger := obs.Logger()
	logger.Info(ctx, "starting", observe.F("config", cfg.String()))

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return err
	}
	deps, err := server.Build(ctx, cfg, logger, mw)
	if err != nil {
		return err
	}
	defer deps.Close()

	if _, err := deps.Preload(ctx); err != nil {
		return fmt.Errorf("preload identity registry: %w", err)
	}

	srv := server.NewHTTPServer(cfg.ListenAddr, deps.Handler(registry))
	errc := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", observe.F("addr", cfg.ListenAddr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

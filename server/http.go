package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/fragcache/admin"
	"github.com/jonwraymond/fragcache/health"
)

// Handler builds fragmentd's HTTP surface: the admin API under
// /fragments, health probes, and /metrics when gatherer is non-nil.
func (d *Deps) Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	api := admin.NewHandler(d.Engine, admin.Options{
		Authenticator: d.Config.Authenticator(),
		Limiter:       d.Config.Limiter(),
		Logger:        d.Logger,
	})
	mux.Handle("/fragments", api)
	mux.Handle("/fragments/", api)

	health.RegisterHandlers(mux, d.Health())

	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// NewHTTPServer wraps h with the timeouts fragmentd serves under.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

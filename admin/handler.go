package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/jonwraymond/fragcache/auth"
	"github.com/jonwraymond/fragcache/fragment"
	"github.com/jonwraymond/fragcache/observe"
	"github.com/jonwraymond/fragcache/resilience"
)

// Engine is the subset of *fragment.Engine the API drives.
type Engine interface {
	Find(ctx context.Context, f fragment.Filter) ([]fragment.Record, error)
	Clear(ctx context.Context, f fragment.Filter) ([]fragment.Record, error)
	Purge(ctx context.Context, f fragment.Filter) (int, error)
}

// Options configures a Handler. Every field is optional.
type Options struct {
	// Authenticator identifies callers. Nil leaves the API open.
	Authenticator auth.Authenticator

	// Authorizer checks permissions. Nil uses the default role grants.
	Authorizer auth.Authorizer

	// Limiter throttles callers by remote address.
	Limiter *resilience.KeyedRateLimiter

	Logger observe.Logger
}

// Handler serves the admin API.
type Handler struct {
	engine  Engine
	opts    Options
	logger  observe.Logger
	handler http.Handler
}

// RecordView is one record in a response.
type RecordView struct {
	fragment.Record
	Display string `json:"display"`
}

// ListResponse answers GET /fragments.
type ListResponse struct {
	Count   int          `json:"count"`
	Records []RecordView `json:"records"`
}

// ClearResponse answers POST /fragments/clear.
type ClearResponse struct {
	Cleared int          `json:"cleared"`
	Records []RecordView `json:"records"`
}

// PurgeResponse answers DELETE /fragments.
type PurgeResponse struct {
	Purged int `json:"purged"`
}

// NewHandler creates the admin API over engine.
func NewHandler(engine Engine, opts Options) *Handler {
	if opts.Authorizer == nil {
		opts.Authorizer = auth.NewRoleAuthorizer(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}
	h := &Handler{engine: engine, opts: opts, logger: logger}

	read := auth.Require(opts.Authenticator, opts.Authorizer, auth.PermRead)
	write := auth.Require(opts.Authenticator, opts.Authorizer, auth.PermWrite)

	mux := http.NewServeMux()
	mux.Handle("GET /fragments", read(http.HandlerFunc(h.list)))
	mux.Handle("POST /fragments/clear", write(http.HandlerFunc(h.clear)))
	mux.Handle("DELETE /fragments", write(http.HandlerFunc(h.purge)))
	h.handler = h.limit(mux)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) limit(next http.Handler) http.Handler {
	if h.opts.Limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.opts.Limiter.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, resilience.ErrRateLimitExceeded)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	records, err := h.engine.Find(r.Context(), f)
	if err != nil {
		h.fail(w, r, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Count: len(records), Records: views(records)})
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	records, err := h.engine.Clear(r.Context(), f)
	if err != nil {
		h.fail(w, r, "clear", err)
		return
	}
	h.logger.Info(r.Context(), "admin cleared fragments",
		observe.F("principal", auth.PrincipalFromContext(r.Context())),
		observe.F("records", len(records)))
	writeJSON(w, http.StatusOK, ClearResponse{Cleared: len(records), Records: views(records)})
}

func (h *Handler) purge(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	n, err := h.engine.Purge(r.Context(), f)
	if err != nil {
		h.fail(w, r, "purge", err)
		return
	}
	h.logger.Info(r.Context(), "admin purged fragments",
		observe.F("principal", auth.PrincipalFromContext(r.Context())),
		observe.F("records", n))
	writeJSON(w, http.StatusOK, PurgeResponse{Purged: n})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "admin "+op+" failed", observe.F("error", err))
	}
	writeError(w, code, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, fragment.ErrEmptyFilter), errors.Is(err, ErrBadParam):
		return http.StatusBadRequest
	case errors.Is(err, fragment.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func views(records []fragment.Record) []RecordView {
	out := make([]RecordView, len(records))
	for i, rec := range records {
		out[i] = RecordView{Record: rec, Display: rec.String()}
	}
	return out
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

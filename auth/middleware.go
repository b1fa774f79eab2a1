package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Require returns middleware admitting only requests whose credentials
// authenticate and grant perm. Unauthenticated requests get 401; denied
// ones get 403. A nil authn admits every request anonymously.
func Require(authn Authenticator, authz Authorizer, perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if authn == nil {
			return next
		}
		if authz == nil {
			authz = AllowAll{}
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authn.Authenticate(r.Context(), r)
			if err == nil && id.Expired(time.Now()) {
				err = ErrTokenExpired
			}
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="fragcache"`)
				writeError(w, http.StatusUnauthorized, err)
				return
			}
			if err := authz.Authorize(r.Context(), id, perm); err != nil {
				writeError(w, http.StatusForbidden, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, ErrTokenExpired):
		msg = ErrTokenExpired.Error()
	case errors.Is(err, ErrInvalidCredentials):
		msg = ErrInvalidCredentials.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

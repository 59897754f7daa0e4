package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/supabase/pkg/jwtx"
)

// RequireRole lets the request through when the verified "role" claim is
// one of roles. Must run after Authenticate.
func RequireRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFromContext(r.Context())
			for _, role := range roles {
				if jwtx.HasRole(claims, role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeRoleError(w, roles...)
		})
	}
}

func writeRoleError(w http.ResponseWriter, roles ...string) {
	w.Header().
		Set("WWW-Authenticate", `Bearer error="insufficient_scope", error_description="requires role `+strings.Join(roles, " or ")+`"`)
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte("insufficient_scope"))
}

// Chain applies middlewares so the first one listed runs first.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

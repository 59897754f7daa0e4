package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/supabase/pkg/jwtx"
	"github.com/aussiebroadwan/supabase/pkg/slogx"
)

type Middleware func(http.Handler) http.Handler

// Authenticate requires a valid Supabase access token in the Authorization
// header. Rejected tokens get a 401; when the signing keys cannot be fetched
// the request gets a retryable 503 instead, since nothing is known about the
// token.
func Authenticate(v *jwtx.Validator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := bearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			claims, err := v.Validate(ctx, raw)
			if err != nil {
				if jwtx.IsUnavailable(err) {
					log.Error("jwt validation unavailable", "err", err)
					w.Header().Set("Retry-After", "5")
					WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
						"error":             "temporarily_unavailable",
						"error_description": "token validation is temporarily unavailable",
					})
					return
				}
				log.Warn("jwt verify failed", "err", err)
				writeBearerError(w, "token verification failed")
				return
			}

			ctx = contextWithAuth(ctx, claims)
			ctx = slogx.With(ctx, "user_id", claims.Subject())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}

package httpx

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/supabase/pkg/jwtx"
)

// HealthResponse is the body of the liveness and readiness probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	SigningKeys string `json:"signing_keys"`
	KeyCount    int    `json:"key_count"`
}

// Livez always answers 200 while the process is serving.
func Livez(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// Readyz answers 200 once signing keys can be obtained from keys and 503
// while they cannot, so a resource server only takes traffic it can
// authenticate.
func Readyz(startTime time.Time, version string, keys jwtx.KeyProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &HealthChecks{SigningKeys: "ok"}
		status := "ok"
		code := http.StatusOK

		set, err := keys.Keys(r.Context())
		switch {
		case err != nil:
			checks.SigningKeys = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		case set.Len() == 0:
			checks.SigningKeys = "error: no keys loaded"
			status = "degraded"
			code = http.StatusServiceUnavailable
		default:
			checks.KeyCount = set.Len()
		}

		WriteJSON(w, code, HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}

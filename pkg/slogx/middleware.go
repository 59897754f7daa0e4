package slogx

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/supabase/pkg/idx"
)

// HTTPMiddleware gives every inbound request a contextual logger carrying
// its request id and logs the outcome. The id is taken from
// X-Request-ID when present and echoed back in the response. Probe paths
// (/livez, /readyz) are logged at Debug.
func HTTPMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = idx.New().String()
			}
			w.Header().Set(RequestIDHeader, reqID)
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			logger := base.With(
				"req_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			next.ServeHTTP(rw, r.WithContext(WithContext(r.Context(), logger)))

			level := slog.LevelInfo
			switch {
			case rw.status >= http.StatusInternalServerError:
				level = slog.LevelWarn
			case isProbe(r.URL.Path):
				level = slog.LevelDebug
			}
			logger.Log(r.Context(), level, "http_request",
				"status", rw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"user_agent", r.UserAgent(),
			)
		})
	}
}

func isProbe(path string) bool {
	return strings.HasSuffix(path, "/livez") || strings.HasSuffix(path, "/readyz")
}

type statusRecorder struct {
	http.ResponseWriter

	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/supabase/pkg/idx"
)

// RequestIDHeader carries the per-call id to the platform so both sides of
// a request can be correlated in logs.
const RequestIDHeader = "X-Request-ID"

// Transport is an http.RoundTripper that stamps every outgoing request with
// a request id and logs its outcome.
type Transport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, logger *slog.Logger) *Transport {
	return &Transport{Base: base, Logger: logger}
}

func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	log := t.Logger
	if log == nil {
		log = FromContext(r.Context())
	}

	reqID := r.Header.Get(RequestIDHeader)
	if reqID == "" {
		reqID = idx.New().String()
		// RoundTrippers must not modify the caller's request.
		r = r.Clone(r.Context())
		r.Header.Set(RequestIDHeader, reqID)
	}

	log = log.With(
		"req_id", reqID,
		"method", r.Method,
		"host", r.URL.Host,
		"path", r.URL.Path,
	)

	start := time.Now()
	resp, err := base.RoundTrip(r)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		log.Warn("http_client_request", "duration_ms", duration, "err", err)
		return nil, err
	}

	level := slog.LevelDebug
	if resp.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	log.Log(r.Context(), level, "http_client_request",
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}

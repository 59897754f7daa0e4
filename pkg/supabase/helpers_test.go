package supabase_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/supabase/pkg/jwtx/jwxtest"
	"github.com/aussiebroadwan/supabase/pkg/supabase"
)

const (
	anonKey        = "anon-key"
	serviceRoleKey = "service-role-key"
)

var epoch = time.Unix(1_760_000_000, 0).UTC()

func newIssuer(t *testing.T) *jwxtest.Issuer {
	t.Helper()
	iss := jwxtest.NewIssuer()
	t.Cleanup(iss.Close)
	iss.SetClock(func() time.Time { return epoch })
	return iss
}

func testOptions(iss *jwxtest.Issuer) supabase.Options {
	opts := supabase.DefaultOptions(iss.URL(), anonKey)
	opts.ServiceRoleKey = serviceRoleKey
	opts.EnableRefreshJitter = false
	return opts
}

func newClient(t *testing.T, iss *jwxtest.Issuer, extra ...supabase.Option) *supabase.Client {
	t.Helper()
	return newClientWith(t, iss, testOptions(iss), extra...)
}

func newClientWith(t *testing.T, iss *jwxtest.Issuer, opts supabase.Options, extra ...supabase.Option) *supabase.Client {
	t.Helper()
	options := append([]supabase.Option{
		supabase.WithHTTPClient(iss.Client()),
		supabase.WithClock(func() time.Time { return epoch }),
	}, extra...)

	c, err := supabase.New(opts, options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// recorded is one request seen by a stub.
type recorded struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   map[string]any
}

// stub answers every request with a fixed status and body and records what
// it was sent.
type stub struct {
	status int
	body   string

	mu   sync.Mutex
	reqs []recorded
}

func newStub(status int, body string) *stub {
	return &stub{status: status, body: body}
}

func (s *stub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
	}
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.Body)
	}

	s.mu.Lock()
	s.reqs = append(s.reqs, rec)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(s.status)
	_, _ = io.WriteString(w, s.body)
}

func (s *stub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

func (s *stub) last(t *testing.T) recorded {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.reqs, "stub received no request")
	return s.reqs[len(s.reqs)-1]
}

func requireBearer(t *testing.T, rec recorded, token string) {
	t.Helper()
	require.Equal(t, anonKey, rec.Header.Get("apikey"))
	require.Equal(t, "Bearer "+token, rec.Header.Get("Authorization"))
}

const userJSON = `{
	"id": "6f1c2a4e-8a0b-4c1f-9d55-0c2f3e6b7a10",
	"aud": "authenticated",
	"role": "authenticated",
	"email": "user@example.com",
	"created_at": "2025-10-09T08:53:20Z",
	"updated_at": "2025-10-09T08:53:20Z",
	"app_metadata": {"provider": "email", "providers": ["email"]},
	"user_metadata": {"display_name": "Ada"},
	"identities": [{
		"id": "6f1c2a4e-8a0b-4c1f-9d55-0c2f3e6b7a10",
		"identity_id": "0b8d1c9e-3c55-4f62-8a0e-5b7a3c2d1e0f",
		"user_id": "6f1c2a4e-8a0b-4c1f-9d55-0c2f3e6b7a10",
		"provider": "email",
		"identity_data": {"email": "user@example.com"},
		"created_at": "2025-10-09T08:53:20Z",
		"updated_at": "2025-10-09T08:53:20Z"
	}]
}`

const userID = "6f1c2a4e-8a0b-4c1f-9d55-0c2f3e6b7a10"

const sessionJSON = `{
	"access_token": "access",
	"token_type": "bearer",
	"expires_in": 3600,
	"refresh_token": "refresh",
	"user": ` + userJSON + `
}`

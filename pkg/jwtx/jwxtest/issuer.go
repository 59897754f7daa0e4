// Package jwxtest provides an in-process GoTrue-shaped issuer for tests. It
// serves a JWKS document at the same path a Supabase project does and mints
// tokens that validate against it.
//
//	iss := jwxtest.NewIssuer()
//	defer iss.Close()
//
//	src, _ := jwtx.NewKeySource(jwtx.KeySourceOptions{URL: iss.JWKSURL()})
//	token := iss.Token(iss.Claims("user-123"))
package jwxtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/supabase/pkg/cryptox"
	"github.com/aussiebroadwan/supabase/pkg/jwtx"
)

// JWKSPath is where Supabase publishes signing keys.
const JWKSPath = "/auth/v1/.well-known/jwks.json"

// DefaultKID is the id of the key every new Issuer starts with.
const DefaultKID = "test-key-1"

// Issuer is an httptest server publishing a key set.
type Issuer struct {
	server *httptest.Server
	mux    *http.ServeMux

	mu      sync.Mutex
	signers []jwtx.Signer
	active  jwtx.Signer
	status  int
	raw     []byte
	delay   time.Duration
	now     func() time.Time

	hits atomic.Int64
}

// NewIssuer starts an issuer with a single ES256 key, DefaultKID.
func NewIssuer() *Issuer {
	iss := &Issuer{
		mux: http.NewServeMux(),
		now: time.Now,
	}
	iss.mux.HandleFunc(JWKSPath, iss.handleJWKS)
	iss.server = httptest.NewServer(iss.mux)

	iss.Rotate(DefaultKID)
	return iss
}

// URL is the project base URL, e.g. what goes into supabase.Options.URL.
func (iss *Issuer) URL() string { return iss.server.URL }

// IssuerURL is the "iss" value GoTrue puts in its tokens.
func (iss *Issuer) IssuerURL() string { return iss.server.URL + "/auth/v1" }

// JWKSURL is the key set address.
func (iss *Issuer) JWKSURL() string { return iss.server.URL + JWKSPath }

// Client returns an HTTP client wired to the server.
func (iss *Issuer) Client() *http.Client { return iss.server.Client() }

// Handle mounts an extra route on the issuer, so a test can serve auth or
// REST endpoints from the same base URL.
func (iss *Issuer) Handle(pattern string, h http.Handler) { iss.mux.Handle(pattern, h) }

// Close shuts down the server.
func (iss *Issuer) Close() { iss.server.Close() }

// Hits counts requests served on the JWKS path, failures included.
func (iss *Issuer) Hits() int { return int(iss.hits.Load()) }

// SetClock changes the time used for iat/exp in Claims.
func (iss *Issuer) SetClock(now func() time.Time) {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	iss.now = now
}

// FailWith makes the JWKS endpoint answer with status until Recover.
func (iss *Issuer) FailWith(status int) {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	iss.status = status
}

// ServeRaw makes the JWKS endpoint answer 200 with body until Recover.
func (iss *Issuer) ServeRaw(body []byte) {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	iss.raw = body
}

// Recover undoes FailWith and ServeRaw.
func (iss *Issuer) Recover() {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	iss.status = 0
	iss.raw = nil
}

// SetDelay slows down every JWKS response.
func (iss *Issuer) SetDelay(d time.Duration) {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	iss.delay = d
}

// AddES256Key publishes a new ES256 key without making it the signing key.
func (iss *Issuer) AddES256Key(kid string) jwtx.Signer {
	pemKey, err := cryptox.GenerateES256Key()
	if err != nil {
		panic("jwxtest: generate key: " + err.Error())
	}
	s, err := jwtx.NewSignerES256(kid, pemKey)
	if err != nil {
		panic("jwxtest: signer: " + err.Error())
	}
	iss.Publish(s)
	return s
}

// Publish adds s to the served key set.
func (iss *Issuer) Publish(s jwtx.Signer) {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	iss.signers = append(iss.signers, s)
}

// Rotate publishes a new ES256 key and signs with it from now on. Older
// keys stay published, as GoTrue keeps them until tokens age out.
func (iss *Issuer) Rotate(kid string) jwtx.Signer {
	s := iss.AddES256Key(kid)
	iss.mu.Lock()
	defer iss.mu.Unlock()
	iss.active = s
	return s
}

// Revoke stops publishing the key with the given id.
func (iss *Issuer) Revoke(kid string) {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	iss.signers = slices.DeleteFunc(iss.signers, func(s jwtx.Signer) bool { return s.KID() == kid })
}

// Signer returns the key currently used by Token.
func (iss *Issuer) Signer() jwtx.Signer {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	return iss.active
}

// JWKS returns the document currently served.
func (iss *Issuer) JWKS() jwtx.JWKS {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	ks := jwtx.JWKS{Keys: make([]jwtx.JWK, 0, len(iss.signers))}
	for _, s := range iss.signers {
		ks.Keys = append(ks.Keys, s.PublicJWK())
	}
	return ks
}

// Claims returns the payload GoTrue would issue to an authenticated user,
// valid for an hour.
func (iss *Issuer) Claims(sub string) jwt.MapClaims {
	iss.mu.Lock()
	now := iss.now()
	iss.mu.Unlock()

	return jwt.MapClaims{
		"sub":           sub,
		"iss":           iss.IssuerURL(),
		"aud":           jwtx.DefaultAudience,
		"role":          "authenticated",
		"email":         sub + "@example.com",
		"iat":           now.Unix(),
		"exp":           now.Add(time.Hour).Unix(),
		"session_id":    "00000000-0000-0000-0000-000000000001",
		"is_anonymous":  false,
		"app_metadata":  map[string]any{"provider": "email", "providers": []string{"email"}},
		"user_metadata": map[string]any{},
	}
}

// Token signs claims with the active key.
func (iss *Issuer) Token(claims jwt.Claims) string {
	return Sign(iss.Signer(), claims)
}

// Sign signs claims with s, panicking on failure.
func Sign(s jwtx.Signer, claims jwt.Claims) string {
	token, err := s.Sign(claims)
	if err != nil {
		panic("jwxtest: sign: " + err.Error())
	}
	return token
}

func (iss *Issuer) handleJWKS(w http.ResponseWriter, r *http.Request) {
	iss.hits.Add(1)

	iss.mu.Lock()
	status, raw, delay := iss.status, iss.raw, iss.delay
	iss.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if raw != nil {
		_, _ = w.Write(raw)
		return
	}
	_ = json.NewEncoder(w).Encode(iss.JWKS())
}

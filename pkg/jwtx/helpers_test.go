package jwtx_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/supabase/pkg/jwtx"
	"github.com/aussiebroadwan/supabase/pkg/jwtx/jwxtest"
)

// Whole second so NumericDate truncation never shifts a boundary.
var epoch = time.Unix(1_760_000_000, 0).UTC()

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newIssuer(t *testing.T) *jwxtest.Issuer {
	t.Helper()
	iss := jwxtest.NewIssuer()
	t.Cleanup(iss.Close)
	iss.SetClock(func() time.Time { return epoch })
	return iss
}

func newSource(t *testing.T, iss *jwxtest.Issuer, clock *fakeClock) *jwtx.KeySource {
	t.Helper()
	src, err := jwtx.NewKeySource(jwtx.KeySourceOptions{
		URL:           iss.JWKSURL(),
		HTTPClient:    iss.Client(),
		DisableJitter: true,
		Now:           clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func newValidator(t *testing.T, iss *jwxtest.Issuer) *jwtx.Validator {
	t.Helper()
	v, err := jwtx.NewValidator(
		newSource(t, iss, newFakeClock(epoch)),
		jwtx.DefaultValidationConfig(iss.IssuerURL()),
		jwtx.WithClock(func() time.Time { return epoch }),
	)
	require.NoError(t, err)
	return v
}

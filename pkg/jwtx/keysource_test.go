package jwtx_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/supabase/pkg/jwtx"
)

func TestKeySource_CachesWithinRefreshInterval(t *testing.T) {
	iss := newIssuer(t)
	clock := newFakeClock(epoch)
	src := newSource(t, iss, clock)
	ctx := context.Background()

	first, err := src.Current(ctx)
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	second, err := src.Current(ctx)
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Equal(t, 1, iss.Hits())

	clock.Advance(2 * time.Minute)
	_, err = src.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, iss.Hits())
}

func TestKeySource_FirstFetchFailurePropagates(t *testing.T) {
	iss := newIssuer(t)
	iss.FailWith(http.StatusInternalServerError)
	src := newSource(t, iss, newFakeClock(epoch))

	_, err := src.Current(context.Background())
	require.ErrorIs(t, err, jwtx.ErrKeySourceUnavailable)
	require.ErrorContains(t, err, iss.JWKSURL())
	require.ErrorContains(t, err, "HTTP 500")
}

func TestKeySource_MalformedBody(t *testing.T) {
	iss := newIssuer(t)
	iss.ServeRaw([]byte(`{"not":"a key set"`))
	src := newSource(t, iss, newFakeClock(epoch))

	_, err := src.Current(context.Background())
	require.ErrorIs(t, err, jwtx.ErrKeySourceMalformed)
	require.NotErrorIs(t, err, jwtx.ErrKeySourceUnavailable)
}

func TestKeySource_ServesStaleSetAfterFailure(t *testing.T) {
	iss := newIssuer(t)
	clock := newFakeClock(epoch)
	src := newSource(t, iss, clock)
	ctx := context.Background()

	good, err := src.Current(ctx)
	require.NoError(t, err)

	iss.FailWith(http.StatusServiceUnavailable)
	clock.Advance(2 * time.Hour)

	stale, err := src.Current(ctx)
	require.NoError(t, err)
	require.Same(t, good, stale)
	require.Equal(t, 2, iss.Hits())

	// Once the endpoint recovers the next call replaces the set.
	iss.Recover()
	fresh, err := src.Current(ctx)
	require.NoError(t, err)
	require.NotSame(t, good, fresh)
	require.Equal(t, good.IDs(), fresh.IDs())
}

func TestKeySource_ConcurrentCallersShareOneFetch(t *testing.T) {
	iss := newIssuer(t)
	iss.SetDelay(100 * time.Millisecond)
	src := newSource(t, iss, newFakeClock(epoch))

	const callers = 16
	var wg sync.WaitGroup
	sets := make([]*jwtx.KeySet, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			sets[i], errs[i] = src.Current(context.Background())
		}()
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Same(t, sets[0], sets[i])
	}
	require.Equal(t, 1, iss.Hits())
}

func TestKeySource_CancelledCallerDoesNotCorruptCache(t *testing.T) {
	iss := newIssuer(t)
	iss.SetDelay(200 * time.Millisecond)
	src := newSource(t, iss, newFakeClock(epoch))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := src.Current(ctx)
	require.ErrorIs(t, err, jwtx.ErrKeySourceUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The shared fetch still completes and is the only one made.
	require.Eventually(t, func() bool {
		set, err := src.Current(context.Background())
		return err == nil && set.Len() == 1
	}, 2*time.Second, 20*time.Millisecond)
	require.Equal(t, 1, iss.Hits())
}

func TestKeySource_Jitter(t *testing.T) {
	iss := newIssuer(t)

	t.Run("fixed jitter added to both intervals", func(t *testing.T) {
		src, err := jwtx.NewKeySource(jwtx.KeySourceOptions{
			URL:    iss.JWKSURL(),
			Jitter: func(time.Duration) time.Duration { return 10 * time.Minute },
		})
		require.NoError(t, err)
		require.Equal(t, 70*time.Minute, src.RefreshInterval())
		require.Equal(t, 40*time.Minute, src.AutoRefreshInterval())
	})

	t.Run("disabled", func(t *testing.T) {
		src, err := jwtx.NewKeySource(jwtx.KeySourceOptions{URL: iss.JWKSURL(), DisableJitter: true})
		require.NoError(t, err)
		require.Equal(t, jwtx.DefaultRefreshInterval, src.RefreshInterval())
		require.Equal(t, jwtx.DefaultAutoRefreshInterval, src.AutoRefreshInterval())
	})

	t.Run("default range", func(t *testing.T) {
		for n := 0; n < 50; n++ {
			src, err := jwtx.NewKeySource(jwtx.KeySourceOptions{URL: iss.JWKSURL()})
			require.NoError(t, err)
			jitter := src.RefreshInterval() - jwtx.DefaultRefreshInterval
			require.GreaterOrEqual(t, jitter, time.Duration(0))
			require.LessOrEqual(t, jitter, jwtx.DefaultMaxRefreshJitter)
			require.Equal(t, jitter, src.AutoRefreshInterval()-jwtx.DefaultAutoRefreshInterval)
		}
	})

	t.Run("jitter delays refresh", func(t *testing.T) {
		clock := newFakeClock(epoch)
		src, err := jwtx.NewKeySource(jwtx.KeySourceOptions{
			URL:        iss.JWKSURL(),
			HTTPClient: iss.Client(),
			Now:        clock.Now,
			Jitter:     func(time.Duration) time.Duration { return 10 * time.Minute },
		})
		require.NoError(t, err)

		before := iss.Hits()
		_, err = src.Current(context.Background())
		require.NoError(t, err)

		clock.Advance(65 * time.Minute)
		_, err = src.Current(context.Background())
		require.NoError(t, err)
		require.Equal(t, before+1, iss.Hits())
	})
}

func TestKeySource_BackgroundRefresh(t *testing.T) {
	iss := newIssuer(t)
	src, err := jwtx.NewKeySource(jwtx.KeySourceOptions{
		URL:                 iss.JWKSURL(),
		HTTPClient:          iss.Client(),
		AutoRefreshInterval: 50 * time.Millisecond,
		DisableJitter:       true,
	})
	require.NoError(t, err)

	src.Start()
	src.Start() // no second loop

	require.Eventually(t, func() bool { return iss.Hits() >= 3 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, src.Close())
	settled := iss.Hits()
	time.Sleep(150 * time.Millisecond)
	require.Equal(t, settled, iss.Hits())

	// Closing twice is harmless.
	require.NoError(t, src.Close())
}

func TestKeySource_CloseWithoutStart(t *testing.T) {
	iss := newIssuer(t)
	src := newSource(t, iss, newFakeClock(epoch))

	done := make(chan struct{})
	go func() {
		_ = src.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked without Start")
	}
}

func TestKeySource_ForcedRefreshIsThrottled(t *testing.T) {
	iss := newIssuer(t)
	src := newSource(t, iss, newFakeClock(epoch))
	ctx := context.Background()

	_, err := src.Refresh(ctx)
	require.NoError(t, err)
	_, err = src.Refresh(ctx)
	require.NoError(t, err)

	require.Equal(t, 1, iss.Hits())
}

func TestNewKeySource_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts jwtx.KeySourceOptions
	}{
		{"missing url", jwtx.KeySourceOptions{}},
		{"relative url", jwtx.KeySourceOptions{URL: "/auth/v1/.well-known/jwks.json"}},
		{"negative interval", jwtx.KeySourceOptions{URL: "https://example.supabase.co", RefreshInterval: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := jwtx.NewKeySource(tt.opts)
			require.Error(t, err)
		})
	}
}

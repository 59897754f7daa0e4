package jwtx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Refresh defaults for a KeySource.
const (
	DefaultRefreshInterval     = time.Hour
	DefaultAutoRefreshInterval = 30 * time.Minute
	DefaultMaxRefreshJitter    = 30 * time.Minute
	DefaultRefreshCooldown     = time.Minute
	DefaultFetchTimeout        = 10 * time.Second
)

// Retry delay for the background loop after a failed fetch.
const failedRefreshRetry = 30 * time.Second

// JWKS documents larger than this are rejected as malformed.
const maxKeySetBytes = 1 << 20

// KeySourceOptions configures a KeySource. Zero values fall back to the
// package defaults.
type KeySourceOptions struct {
	// URL of the JWKS document, e.g. https://<ref>.supabase.co/auth/v1/.well-known/jwks.json
	URL string

	HTTPClient *http.Client

	// RefreshInterval is the maximum age of a cached set handed out by Current.
	RefreshInterval time.Duration

	// AutoRefreshInterval is the age at which the background loop refetches.
	AutoRefreshInterval time.Duration

	// MaxJitter bounds the random delay added once to both intervals so a
	// fleet of clients does not refetch in lock step.
	MaxJitter     time.Duration
	DisableJitter bool

	// RefreshCooldown limits forced refreshes triggered by unknown key ids.
	RefreshCooldown time.Duration

	// FetchTimeout bounds a single fetch, independently of the caller.
	FetchTimeout time.Duration

	Logger *slog.Logger

	// Now and Jitter are test hooks.
	Now    func() time.Time
	Jitter func(max time.Duration) time.Duration
}

// KeySource fetches and caches the signing keys published at a JWKS
// endpoint. It is safe for concurrent use; the cached set is swapped
// wholesale so readers always see a complete set.
type KeySource struct {
	url     string
	client  *http.Client
	log     *slog.Logger
	now     func() time.Time
	timeout time.Duration

	refreshEvery     time.Duration
	autoRefreshEvery time.Duration

	mu        sync.RWMutex
	set       *KeySet
	fetchedAt time.Time

	group  singleflight.Group
	forced *rate.Limiter

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	runCtx    context.Context
	cancelRun context.CancelFunc
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewKeySource validates opts and returns an idle source. Nothing is
// fetched until the first call to Current or Start.
func NewKeySource(opts KeySourceOptions) (*KeySource, error) {
	if opts.URL == "" {
		return nil, errors.New("jwtx: key source URL is required")
	}
	u, err := url.Parse(opts.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("jwtx: key source URL %q must be absolute", opts.URL)
	}
	if opts.RefreshInterval < 0 || opts.AutoRefreshInterval < 0 || opts.MaxJitter < 0 {
		return nil, errors.New("jwtx: key source intervals must not be negative")
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DefaultFetchTimeout}
	}
	if opts.RefreshInterval == 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.AutoRefreshInterval == 0 {
		opts.AutoRefreshInterval = DefaultAutoRefreshInterval
	}
	if opts.MaxJitter == 0 {
		opts.MaxJitter = DefaultMaxRefreshJitter
	}
	if opts.RefreshCooldown <= 0 {
		opts.RefreshCooldown = DefaultRefreshCooldown
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Jitter == nil {
		opts.Jitter = uniformJitter
	}

	var jitter time.Duration
	if !opts.DisableJitter {
		jitter = opts.Jitter(opts.MaxJitter)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	return &KeySource{
		url:              opts.URL,
		client:           opts.HTTPClient,
		log:              opts.Logger.With("endpoint", opts.URL),
		now:              opts.Now,
		timeout:          opts.FetchTimeout,
		refreshEvery:     opts.RefreshInterval + jitter,
		autoRefreshEvery: opts.AutoRefreshInterval + jitter,
		forced:           rate.NewLimiter(rate.Every(opts.RefreshCooldown), 1),
		runCtx:           runCtx,
		cancelRun:        cancel,
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}, nil
}

// uniformJitter returns a duration in [0, max].
func uniformJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max) + 1))
}

// URL returns the JWKS endpoint.
func (s *KeySource) URL() string { return s.url }

// RefreshInterval returns the effective refresh interval, jitter included.
func (s *KeySource) RefreshInterval() time.Duration { return s.refreshEvery }

// AutoRefreshInterval returns the effective background interval, jitter included.
func (s *KeySource) AutoRefreshInterval() time.Duration { return s.autoRefreshEvery }

// Current returns the cached key set while it is younger than the refresh
// interval and otherwise fetches synchronously. A failed fetch keeps
// serving the previous set; only when nothing was ever fetched does the
// error reach the caller.
func (s *KeySource) Current(ctx context.Context) (*KeySet, error) {
	set, fetchedAt := s.snapshot()
	if set != nil && s.now().Sub(fetchedAt) < s.refreshEvery {
		return set, nil
	}

	fresh, err := s.refresh(ctx)
	if err != nil {
		if set != nil {
			s.log.Warn("jwks refresh failed, serving cached keys",
				"age", s.now().Sub(fetchedAt),
				"err", err,
			)
			return set, nil
		}
		return nil, err
	}
	return fresh, nil
}

// Keys implements KeyProvider.
func (s *KeySource) Keys(ctx context.Context) (*KeySet, error) {
	return s.Current(ctx)
}

// Refresh fetches immediately unless another forced refresh happened within
// the cool-down, in which case it behaves like Current.
func (s *KeySource) Refresh(ctx context.Context) (*KeySet, error) {
	if !s.forced.Allow() {
		return s.Current(ctx)
	}
	return s.refresh(ctx)
}

func (s *KeySource) snapshot() (*KeySet, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set, s.fetchedAt
}

func (s *KeySource) store(set *KeySet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = set
	s.fetchedAt = s.now()
}

// refresh performs one fetch shared by every concurrent caller. The fetch
// runs detached from the caller's context so one caller giving up does not
// fail the others; the cache is only replaced by a complete, parsed set.
func (s *KeySource) refresh(ctx context.Context) (*KeySet, error) {
	ch := s.group.DoChan("jwks", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		set, err := FetchKeySet(fctx, s.client, s.url)
		if err != nil {
			return nil, err
		}
		s.store(set)
		s.log.Debug("jwks refreshed", "keys", set.Len(), "kids", set.IDs())
		return set, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrKeySourceUnavailable, s.url, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*KeySet), nil
	}
}

// Start launches the background refresh loop. It fetches immediately if
// nothing is cached, then whenever the cache is older than the automatic
// refresh interval. Calling Start more than once has no effect.
func (s *KeySource) Start() {
	s.startOnce.Do(func() {
		s.mu.Lock()
		s.started = true
		s.mu.Unlock()

		go s.run()
		s.log.Info("jwks background refresh started", "interval", s.autoRefreshEvery)
	})
}

// Close stops the background loop and waits for it to exit.
func (s *KeySource) Close() error {
	s.stopOnce.Do(func() {
		s.cancelRun()
		close(s.stopCh)

		s.mu.RLock()
		started := s.started
		s.mu.RUnlock()

		if started {
			<-s.doneCh
			s.log.Info("jwks background refresh stopped")
		}
	})
	return nil
}

func (s *KeySource) run() {
	defer close(s.doneCh)

	timer := time.NewTimer(s.nextRefreshIn())
	defer timer.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			wait := s.autoRefreshEvery
			if _, err := s.refresh(s.runCtx); err != nil {
				if s.runCtx.Err() != nil {
					return
				}
				s.log.Warn("jwks background refresh failed", "err", err)
				wait = min(s.autoRefreshEvery, failedRefreshRetry)
			}
			timer.Reset(wait)
		}
	}
}

func (s *KeySource) nextRefreshIn() time.Duration {
	set, fetchedAt := s.snapshot()
	if set == nil {
		return 0
	}
	return max(s.autoRefreshEvery-s.now().Sub(fetchedAt), 0)
}

// FetchKeySet downloads and parses the JWKS document at address.
// Transport failures and non-2xx answers wrap ErrKeySourceUnavailable;
// bodies that are not a usable key set wrap ErrKeySourceMalformed.
func FetchKeySet(ctx context.Context, client *http.Client, address string) (*KeySet, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrKeySourceUnavailable, address, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrKeySourceUnavailable, address, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %w", ErrKeySourceUnavailable, address, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: HTTP %d", ErrKeySourceUnavailable, address, resp.StatusCode)
	}
	if len(body) > maxKeySetBytes {
		return nil, fmt.Errorf("%w: %s: document exceeds %d bytes", ErrKeySourceMalformed, address, maxKeySetBytes)
	}

	set, err := ParseKeySet(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrKeySourceMalformed, address, err)
	}
	return set, nil
}

package supabase

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/supabase/pkg/jwtx"
	"github.com/aussiebroadwan/supabase/pkg/slogx"
)

// Client is the entry point of the SDK. It owns the HTTP client, the token
// resolvers, the signing key source and the validator; Auth and RPC share
// them.
type Client struct {
	opts       Options
	httpClient *http.Client
	log        *slog.Logger
	now        func() time.Time

	tokens TokenResolver
	admin  AdminTokenResolver

	keys      jwtx.KeyProvider
	source    *jwtx.KeySource // nil in legacy secret mode
	validator *jwtx.Validator

	Auth *AuthClient
	RPC  *RPCClient
}

type Option func(*Client)

// WithTokenResolver sets where user calls get their access token from.
// Defaults to ContextTokenResolver.
func WithTokenResolver(r TokenResolver) Option {
	return func(c *Client) { c.tokens = r }
}

// WithAdminTokenResolver sets where admin and RPC calls get their bearer
// from. Without one the service-role key is used.
func WithAdminTokenResolver(r AdminTokenResolver) Option {
	return func(c *Client) { c.admin = r }
}

// WithHTTPClient replaces the HTTP client. Its transport is used as is, so
// wrap it with slogx.NewTransport to keep request logging.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithClock overrides the time source used for token and key expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New validates opts and builds a Client. With asymmetric keys enabled
// nothing is fetched yet; call Start to warm the key cache in the
// background, or let the first validation fetch it.
func New(opts Options, options ...Option) (*Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		opts:   opts,
		log:    slog.Default(),
		now:    time.Now,
		tokens: ContextTokenResolver,
	}
	for _, opt := range options {
		opt(c)
	}
	c.log = c.log.With("component", "supabase")
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   opts.HTTPTimeout,
			Transport: slogx.NewTransport(nil, c.log),
		}
	}

	if opts.EnableAsymmetricKeys {
		src, err := jwtx.NewKeySource(jwtx.KeySourceOptions{
			URL:                 opts.ResolvedJWKSURL(),
			HTTPClient:          c.httpClient,
			RefreshInterval:     opts.JWKSRefreshInterval,
			AutoRefreshInterval: opts.JWKSAutoRefreshInterval,
			MaxJitter:           opts.MaxRefreshJitter,
			DisableJitter:       !opts.EnableRefreshJitter || opts.MaxRefreshJitter == 0,
			FetchTimeout:        opts.HTTPTimeout,
			Logger:              c.log,
			Now:                 c.now,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
		}
		c.source = src
		c.keys = src
	} else {
		c.keys = jwtx.StaticKeys{Set: jwtx.NewSecretKeySet([]byte(opts.JWTSecret))}
	}

	v, err := jwtx.NewValidator(c.keys, opts.ValidationConfig(),
		jwtx.WithClock(c.now),
		jwtx.WithLogger(c.log),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	c.validator = v

	c.Auth = &AuthClient{c: c}
	c.RPC = &RPCClient{c: c, admin: true}
	return c, nil
}

// Start launches background key refresh. It is a no-op in legacy secret mode.
func (c *Client) Start() {
	if c.source != nil {
		c.source.Start()
	}
}

// Close stops background key refresh.
func (c *Client) Close() error {
	if c.source != nil {
		return c.source.Close()
	}
	return nil
}

// Options returns the options the client was built with.
func (c *Client) Options() Options { return c.opts }

// Validator returns the token validator, e.g. for httpx.Authenticate.
func (c *Client) Validator() *jwtx.Validator { return c.validator }

// Keys returns the signing keys currently in use, fetching them if needed.
func (c *Client) Keys(ctx context.Context) (*jwtx.KeySet, error) {
	return c.keys.Keys(ctx)
}

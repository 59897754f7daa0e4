package supabase

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/aussiebroadwan/supabase/pkg/jwtx"
)

// Options configures a Client. Build one with DefaultOptions and adjust the
// fields you care about; the struct tags drive both defaulting and
// validation, and double as the mapping used by the config loader.
type Options struct {
	// URL is the project URL, e.g. https://abcd.supabase.co
	URL string `mapstructure:"url" validate:"required,url"`

	// APIKey is the anon (publishable) key sent as "apikey" on every call.
	APIKey string `mapstructure:"api_key" validate:"required" secret:"true"`

	// ServiceRoleKey authorizes admin calls when no AdminTokenResolver yields a token.
	ServiceRoleKey string `mapstructure:"service_role_key" secret:"true"`

	// JWTSecret is the legacy HS256 secret, used when EnableAsymmetricKeys is off.
	JWTSecret string `mapstructure:"jwt_secret" validate:"required_if=EnableAsymmetricKeys false" secret:"true"`

	EnableAsymmetricKeys bool `mapstructure:"enable_asymmetric_keys" default:"true"`

	// JWKSURL and Issuer are derived from URL when left empty.
	JWKSURL string `mapstructure:"jwks_url" validate:"omitempty,url"`
	Issuer  string `mapstructure:"issuer"`

	ValidAudiences  []string      `mapstructure:"valid_audiences" default:"[\"authenticated\"]" validate:"min=1"`
	ValidAlgorithms []string      `mapstructure:"valid_algorithms" default:"[\"ES256\"]" validate:"min=1"`
	ClockSkew       time.Duration `mapstructure:"clock_skew" default:"5m" validate:"gte=0"`

	RequireExpirationTime bool `mapstructure:"require_expiration_time" default:"true"`
	RequireSignedTokens   bool `mapstructure:"require_signed_tokens" default:"true"`

	JWKSRefreshInterval     time.Duration `mapstructure:"jwks_refresh_interval" default:"1h" validate:"gt=0"`
	JWKSAutoRefreshInterval time.Duration `mapstructure:"jwks_auto_refresh_interval" default:"30m" validate:"gt=0"`
	EnableRefreshJitter     bool          `mapstructure:"enable_refresh_jitter" default:"true"`
	MaxRefreshJitter        time.Duration `mapstructure:"max_refresh_jitter" default:"30m" validate:"gte=0"`

	// HTTPTimeout bounds every call made by the client, JWKS fetches included.
	HTTPTimeout time.Duration `mapstructure:"http_timeout" default:"10s" validate:"gt=0"`
}

// DefaultOptions returns Options for the project at url with every default
// applied.
func DefaultOptions(url, apiKey string) Options {
	var o Options
	if err := defaults.Set(&o); err != nil {
		panic("supabase: option defaults: " + err.Error())
	}
	o.URL = url
	o.APIKey = apiKey
	return o
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the options, returning the first problem as ErrInvalidOptions.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", ErrInvalidOptions, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	u, err := url.Parse(o.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: URL %q must be absolute", ErrInvalidOptions, o.URL)
	}
	return nil
}

func (o Options) baseURL() string { return strings.TrimSuffix(o.URL, "/") }

// AuthURL is the GoTrue base, {url}/auth/v1.
func (o Options) AuthURL() string { return o.baseURL() + "/auth/v1" }

// RestURL is the PostgREST base, {url}/rest/v1.
func (o Options) RestURL() string { return o.baseURL() + "/rest/v1" }

// ResolvedJWKSURL returns JWKSURL or {url}/auth/v1/.well-known/jwks.json.
func (o Options) ResolvedJWKSURL() string {
	if o.JWKSURL != "" {
		return o.JWKSURL
	}
	return o.AuthURL() + "/.well-known/jwks.json"
}

// ResolvedIssuer returns Issuer or {url}/auth/v1.
func (o Options) ResolvedIssuer() string {
	if o.Issuer != "" {
		return o.Issuer
	}
	return o.AuthURL()
}

// ValidationConfig translates the options into validator settings. In
// legacy symmetric mode the issuer is not enforced and HS256 is the only
// accepted algorithm.
func (o Options) ValidationConfig() jwtx.ValidationConfig {
	cfg := jwtx.ValidationConfig{
		Issuer:              o.ResolvedIssuer(),
		Audiences:           o.ValidAudiences,
		Algorithms:          o.ValidAlgorithms,
		ClockSkew:           o.ClockSkew,
		RequireExpiration:   o.RequireExpirationTime,
		RequireSignedTokens: o.RequireSignedTokens,
	}
	if !o.EnableAsymmetricKeys {
		cfg.Issuer = ""
		cfg.Algorithms = []string{"HS256"}
		cfg.AllowUnnamedKeys = true
	}
	return cfg
}

// String renders the options with secrets redacted, safe for logs.
func (o Options) String() string {
	redact := func(s string) string {
		if s == "" {
			return ""
		}
		return "[REDACTED]"
	}
	return fmt.Sprintf(
		"Options{URL:%s APIKey:%s ServiceRoleKey:%s JWTSecret:%s EnableAsymmetricKeys:%t JWKSURL:%s Issuer:%s Audiences:%v Algorithms:%v ClockSkew:%s}",
		o.URL, redact(o.APIKey), redact(o.ServiceRoleKey), redact(o.JWTSecret), o.EnableAsymmetricKeys,
		o.ResolvedJWKSURL(), o.ResolvedIssuer(), o.ValidAudiences, o.ValidAlgorithms, o.ClockSkew,
	)
}

package jwtx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Validation defaults, matching what GoTrue issues.
const (
	DefaultAlgorithm = "ES256"
	DefaultAudience  = "authenticated"
	DefaultClockSkew = 5 * time.Minute
)

// ValidationConfig captures what a token must satisfy to be accepted.
type ValidationConfig struct {
	// Issuer the token must carry in "iss". Empty means "don't care".
	Issuer string

	// Audiences of which at least one must appear in "aud". Empty means "don't care".
	Audiences []string

	// Algorithms accepted in the token header. Anything else is rejected
	// before a key is even looked at.
	Algorithms []string

	// ClockSkew tolerated on "exp" and "nbf".
	ClockSkew time.Duration

	RequireExpiration   bool
	RequireSignedTokens bool

	// AllowUnnamedKeys lets keys without an id verify tokens whose kid is
	// not in the set. Only the legacy shared secret needs this; a published
	// JWKS must resolve every kid exactly.
	AllowUnnamedKeys bool
}

// DefaultValidationConfig returns the settings used for GoTrue access tokens:
// ES256 only, five minutes of skew, expiry and signature required.
func DefaultValidationConfig(issuer string, audiences ...string) ValidationConfig {
	if len(audiences) == 0 {
		audiences = []string{DefaultAudience}
	}
	return ValidationConfig{
		Issuer:              issuer,
		Audiences:           audiences,
		Algorithms:          []string{DefaultAlgorithm},
		ClockSkew:           DefaultClockSkew,
		RequireExpiration:   true,
		RequireSignedTokens: true,
	}
}

// Validator checks bearer tokens against a KeyProvider.
type Validator struct {
	keys   KeyProvider
	cfg    ValidationConfig
	parser *jwt.Parser
	now    func() time.Time
	log    *slog.Logger
}

type ValidatorOption func(*Validator)

// WithClock overrides the time source used for exp/nbf checks.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) { v.now = now }
}

func WithLogger(l *slog.Logger) ValidatorOption {
	return func(v *Validator) { v.log = l }
}

// refresher is implemented by providers that can refetch on demand, such
// as KeySource. An unknown kid gives them one chance to pick up a rotation.
type refresher interface {
	Refresh(ctx context.Context) (*KeySet, error)
}

// NewValidator returns a Validator for cfg.
func NewValidator(keys KeyProvider, cfg ValidationConfig, opts ...ValidatorOption) (*Validator, error) {
	if keys == nil {
		return nil, errors.New("jwtx: validator requires a key provider")
	}
	if len(cfg.Algorithms) == 0 {
		return nil, errors.New("jwtx: at least one algorithm must be allowed")
	}
	for _, alg := range cfg.Algorithms {
		if strings.EqualFold(alg, "none") {
			return nil, errors.New(`jwtx: "none" cannot be an allowed algorithm`)
		}
		if jwt.GetSigningMethod(alg) == nil {
			return nil, fmt.Errorf("jwtx: unsupported algorithm %q", alg)
		}
	}
	if cfg.ClockSkew < 0 {
		return nil, errors.New("jwtx: clock skew must not be negative")
	}

	v := &Validator{
		keys:   keys,
		cfg:    cfg,
		parser: jwt.NewParser(jwt.WithValidMethods(cfg.Algorithms)),
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Config returns the validator's configuration.
func (v *Validator) Config() ValidationConfig { return v.cfg }

// Validate verifies token and returns its claims. Every failure is a
// *ValidationError whose Kind is one of the Err* sentinels; a failure to
// obtain keys is reported as ErrValidationUnavailable and says nothing about
// the token itself.
func (v *Validator) Validate(ctx context.Context, token string) (*VerifiedClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, validationErr(ErrMalformedToken, errors.New("empty token"))
	}

	// 1. Structure and header.
	claims := jwt.MapClaims{}
	parsed, parts, err := v.parser.ParseUnverified(token, claims)
	if err != nil {
		// The parser refuses algorithms it has never heard of; that is an
		// algorithm problem, not a structural one.
		if parsed != nil && errors.Is(err, jwt.ErrTokenUnverifiable) {
			if alg, ok := parsed.Header["alg"].(string); ok && alg != "" {
				return nil, validationErr(ErrAlgorithmNotAllowed, fmt.Errorf("alg %q", alg))
			}
		}
		return nil, validationErr(ErrMalformedToken, err)
	}

	alg, _ := parsed.Header["alg"].(string)
	unsigned := alg == "" || strings.EqualFold(alg, "none") || parts[2] == ""
	if unsigned && v.cfg.RequireSignedTokens {
		return nil, validationErr(ErrMalformedToken, errors.New("token is not signed"))
	}

	// 2. Algorithm allow-list, before any key is touched.
	if !slices.Contains(v.cfg.Algorithms, alg) {
		return nil, validationErr(ErrAlgorithmNotAllowed, fmt.Errorf("alg %q", alg))
	}

	sig, err := v.parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, validationErr(ErrMalformedToken, fmt.Errorf("signature: %w", err))
	}

	// 3. Key resolution.
	set, err := v.keys.Keys(ctx)
	if err != nil {
		return nil, validationErr(ErrValidationUnavailable, err)
	}

	kid, _ := parsed.Header["kid"].(string)
	candidates, err := v.candidates(ctx, set, kid)
	if err != nil {
		return nil, err
	}

	// 4. Signature. Candidates are tried in key set order, first match wins.
	signingString := parts[0] + "." + parts[1]
	var verifyErr error
	verified := false
	for _, key := range candidates {
		if key.Algorithm != "" && key.Algorithm != alg {
			verifyErr = fmt.Errorf("key %q is for %s", key.ID, key.Algorithm)
			continue
		}
		if err := parsed.Method.Verify(signingString, sig, key.Public); err != nil {
			verifyErr = err
			continue
		}
		verified = true
		break
	}
	if !verified {
		return nil, validationErr(ErrInvalidSignature, verifyErr)
	}

	// 5. Registered claims.
	if err := v.validateClaims(claims); err != nil {
		return nil, err
	}

	return &VerifiedClaims{ClaimSet: ClaimSet{m: claims}}, nil
}

// IsValid reports whether token passes Validate.
func (v *Validator) IsValid(ctx context.Context, token string) bool {
	_, err := v.Validate(ctx, token)
	return err == nil
}

func (v *Validator) candidates(ctx context.Context, set *KeySet, kid string) ([]Key, error) {
	if kid == "" {
		keys := set.Keys()
		if len(keys) == 0 {
			return nil, validationErr(ErrUnknownKey, errors.New("key set is empty"))
		}
		return keys, nil
	}

	if key, ok := set.Lookup(kid); ok {
		return []Key{key}, nil
	}

	if r, ok := v.keys.(refresher); ok {
		fresh, err := r.Refresh(ctx)
		switch {
		case err != nil:
			v.log.Warn("jwks refresh for unknown kid failed", "kid", kid, "err", err)
		case fresh != nil:
			if key, ok := fresh.Lookup(kid); ok {
				return []Key{key}, nil
			}
			set = fresh
		}
	}

	if v.cfg.AllowUnnamedKeys {
		var unnamed []Key
		for _, key := range set.Keys() {
			if key.ID == "" {
				unnamed = append(unnamed, key)
			}
		}
		if len(unnamed) > 0 {
			return unnamed, nil
		}
	}

	return nil, validationErr(ErrUnknownKey, fmt.Errorf("kid %q", kid))
}

func (v *Validator) validateClaims(claims jwt.MapClaims) error {
	now := v.now()
	skew := v.cfg.ClockSkew

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return validationErr(ErrMalformedToken, err)
	}
	switch {
	case exp == nil && v.cfg.RequireExpiration:
		return validationErr(ErrMissingExpiration, nil)
	case exp != nil && now.After(exp.Add(skew)):
		return validationErr(ErrTokenExpired, fmt.Errorf("expired at %s", exp.UTC().Format(time.RFC3339)))
	}

	nbf, err := claims.GetNotBefore()
	if err != nil {
		return validationErr(ErrMalformedToken, err)
	}
	if nbf != nil && now.Before(nbf.Add(-skew)) {
		return validationErr(ErrTokenNotYetValid, fmt.Errorf("valid from %s", nbf.UTC().Format(time.RFC3339)))
	}

	if v.cfg.Issuer != "" {
		iss, err := claims.GetIssuer()
		if err != nil {
			return validationErr(ErrMalformedToken, err)
		}
		if iss != v.cfg.Issuer {
			return validationErr(ErrIssuerMismatch, fmt.Errorf("got %q", iss))
		}
	}

	if len(v.cfg.Audiences) > 0 {
		aud, err := claims.GetAudience()
		if err != nil {
			return validationErr(ErrMalformedToken, err)
		}
		if !slices.ContainsFunc(aud, func(a string) bool { return slices.Contains(v.cfg.Audiences, a) }) {
			return validationErr(ErrAudienceMismatch, fmt.Errorf("got %v", []string(aud)))
		}
	}

	return nil
}

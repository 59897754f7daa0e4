package jwtx

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Supabase access-token claim names beyond the registered ones.
const (
	ClaimRole         = "role"
	ClaimEmail        = "email"
	ClaimPhone        = "phone"
	ClaimSessionID    = "session_id"
	ClaimUserMetadata = "user_metadata"
	ClaimAppMetadata  = "app_metadata"
	ClaimAAL          = "aal"
	ClaimIsAnonymous  = "is_anonymous"
)

// ClaimSet is a decoded JWT payload. On its own it proves nothing about the
// token; only VerifiedClaims, produced by a Validator, may be used to make
// authorization decisions.
type ClaimSet struct {
	m jwt.MapClaims
}

func newClaimSet(m jwt.MapClaims) *ClaimSet {
	if m == nil {
		m = jwt.MapClaims{}
	}
	return &ClaimSet{m: m}
}

// Map returns a copy of the raw payload.
func (c *ClaimSet) Map() map[string]any {
	if c == nil {
		return nil
	}
	return maps.Clone(map[string]any(c.m))
}

// Get returns the raw value of a claim.
func (c *ClaimSet) Get(name string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.m[name]
	return v, ok
}

// GetString returns a string claim, or "" when it is absent or not a string.
func (c *ClaimSet) GetString(name string) string {
	v, _ := c.Get(name)
	s, _ := v.(string)
	return s
}

func (c *ClaimSet) Subject() string { return c.GetString("sub") }
func (c *ClaimSet) Issuer() string  { return c.GetString("iss") }
func (c *ClaimSet) Role() string    { return c.GetString(ClaimRole) }
func (c *ClaimSet) Email() string   { return c.GetString(ClaimEmail) }
func (c *ClaimSet) Phone() string   { return c.GetString(ClaimPhone) }

// SessionID is the GoTrue session the token was issued for.
func (c *ClaimSet) SessionID() string { return c.GetString(ClaimSessionID) }

// IsAnonymous reports whether the token belongs to an anonymous sign-in.
func (c *ClaimSet) IsAnonymous() bool {
	v, _ := c.Get(ClaimIsAnonymous)
	b, _ := v.(bool)
	return b
}

// Audience returns "aud" whether it was encoded as a string or an array.
func (c *ClaimSet) Audience() []string {
	if c == nil {
		return nil
	}
	aud, err := c.m.GetAudience()
	if err != nil {
		return nil
	}
	return aud
}

// ExpiresAt returns "exp", or the zero time when absent.
func (c *ClaimSet) ExpiresAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	exp, err := c.m.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// IssuedAt returns "iat", or the zero time when absent.
func (c *ClaimSet) IssuedAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	iat, err := c.m.GetIssuedAt()
	if err != nil || iat == nil {
		return time.Time{}
	}
	return iat.Time
}

// UserMetadata returns the "user_metadata" object.
func (c *ClaimSet) UserMetadata() map[string]any {
	v, _ := c.Get(ClaimUserMetadata)
	m, _ := v.(map[string]any)
	return m
}

// AppMetadata returns the "app_metadata" object.
func (c *ClaimSet) AppMetadata() map[string]any {
	v, _ := c.Get(ClaimAppMetadata)
	m, _ := v.(map[string]any)
	return m
}

// ClaimAs decodes a single claim into T by round-tripping it through JSON.
func ClaimAs[T any](c *ClaimSet, name string) (T, error) {
	var out T
	v, ok := c.Get(name)
	if !ok || v == nil {
		return out, fmt.Errorf("jwtx: claim %q not present", name)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("jwtx: claim %q: %w", name, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("jwtx: claim %q: %w", name, err)
	}
	return out, nil
}

// UserMetadataAs decodes "user_metadata" into a caller supplied type.
func UserMetadataAs[T any](c *ClaimSet) (T, error) {
	return ClaimAs[T](c, ClaimUserMetadata)
}

// VerifiedClaims are the claims of a token whose signature, algorithm,
// lifetime, issuer and audience were all checked by a Validator.
type VerifiedClaims struct {
	ClaimSet
}

// HasRole reports whether the verified "role" claim equals role exactly.
// A nil claim set has no role.
func HasRole(c *VerifiedClaims, role string) bool {
	if c == nil {
		return false
	}
	r, ok := c.m[ClaimRole].(string)
	return ok && r == role
}

package supabase

import (
	"context"

	"github.com/aussiebroadwan/supabase/pkg/jwtx"
)

// ValidateToken verifies token with the client's validator.
func (c *Client) ValidateToken(ctx context.Context, token string) (*jwtx.VerifiedClaims, error) {
	return c.validator.Validate(ctx, token)
}

// IsValidToken reports whether the token from the TokenResolver is valid
// and, when role is non-empty, carries that role.
func (c *Client) IsValidToken(ctx context.Context, role string) bool {
	if c.tokens == nil {
		return false
	}
	return c.IsValidTokenString(ctx, c.tokens.Token(ctx), role)
}

// IsValidTokenString is IsValidToken for an explicit token. Failures are
// logged at debug and reported as false, unavailability included.
func (c *Client) IsValidTokenString(ctx context.Context, token, role string) bool {
	if token == "" {
		return false
	}

	claims, err := c.validator.Validate(ctx, token)
	if err != nil {
		if jwtx.IsUnavailable(err) {
			c.log.Warn("token validation unavailable", "err", err)
		} else {
			c.log.Debug("token rejected", "err", err)
		}
		return false
	}
	return role == "" || jwtx.HasRole(claims, role)
}

// DecodeToken returns the token's claims, verified when possible. See
// jwtx.DecodeAndVerify.
func (c *Client) DecodeToken(ctx context.Context, token string) (*jwtx.ClaimSet, bool, error) {
	return jwtx.DecodeAndVerify(ctx, c.validator, token)
}

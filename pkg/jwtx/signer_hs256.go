package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Minimum secret length accepted for HS256, matching the hash size.
const minHS256SecretLen = 32

// HS256Signer signs with a shared secret, as projects on the legacy JWT
// secret do.
type HS256Signer struct {
	kid    string
	secret []byte
}

func newHS256Signer(kid string, secret []byte) (*HS256Signer, error) {
	if len(secret) < minHS256SecretLen {
		return nil, errors.New("jwtx: HS256 secret must be at least 32 bytes")
	}
	return &HS256Signer{kid: kid, secret: secret}, nil
}

func (s *HS256Signer) Alg() string { return jwt.SigningMethodHS256.Alg() }
func (s *HS256Signer) KID() string { return s.kid }

func (s *HS256Signer) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.secret)
}

// PublicJWK exposes the secret as an "oct" key. Never serve this outside tests.
func (s *HS256Signer) PublicJWK() JWK {
	return NewOctJWK(s.kid, s.Alg(), s.secret)
}

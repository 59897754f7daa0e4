package jwtx

import (
	"crypto/ecdsa"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/supabase/pkg/cryptox"
)

// ES256Signer implements Signer using ECDSA P-256 with SHA-256.
type ES256Signer struct {
	kid string
	key *ecdsa.PrivateKey
}

func newES256Signer(kid string, pemKey []byte) (*ES256Signer, error) {
	key, err := cryptox.ParseES256Key(pemKey)
	if err != nil {
		return nil, err
	}
	return &ES256Signer{kid: kid, key: key}, nil
}

func (s *ES256Signer) Alg() string { return jwt.SigningMethodES256.Alg() }
func (s *ES256Signer) KID() string { return s.kid }

// Sign turns claims into a signed JWT carrying the signer's kid, the way
// GoTrue signs access tokens once asymmetric keys are enabled.
func (s *ES256Signer) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.key)
}

// PublicJWK returns the JWK to publish so others can verify our tokens.
func (s *ES256Signer) PublicJWK() JWK {
	return NewES256JWK(s.kid, "sig", s.Alg(), &s.key.PublicKey)
}

// PublicKey returns the verification key.
func (s *ES256Signer) PublicKey() *ecdsa.PublicKey { return &s.key.PublicKey }

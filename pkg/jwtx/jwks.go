package jwtx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"math/big"
)

// JWK represents a key in JSON Web Key format (RFC 7517). Only the members
// we publish are modelled here; parsing of fetched documents goes through
// ParseKeySet, which understands the full format.
type JWK struct {
	Kty string `json:"kty"`           // key type: "EC", "oct"
	Use string `json:"use,omitempty"` // "sig"
	Alg string `json:"alg,omitempty"` // "ES256", "HS256"
	Kid string `json:"kid,omitempty"`

	// EC fields
	Crv string `json:"crv,omitempty"` // "P-256"
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`

	// Symmetric keys
	K string `json:"k,omitempty"`
}

// JWKS is a JSON Web Key Set (RFC 7517).
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// NewES256JWK builds a JWK for an ECDSA P-256 public key.
func NewES256JWK(kid, use, alg string, pub *ecdsa.PublicKey) JWK {
	// P-256 coordinates are padded to the 32 byte field size.
	x := make([]byte, 32)
	y := make([]byte, 32)
	pub.X.FillBytes(x)
	pub.Y.FillBytes(y)

	return JWK{
		Kty: "EC",
		Use: use,
		Alg: alg,
		Kid: kid,
		Crv: "P-256",
		X:   base64.RawURLEncoding.EncodeToString(x),
		Y:   base64.RawURLEncoding.EncodeToString(y),
	}
}

// NewOctJWK builds a JWK for a shared HMAC secret. Only test issuers should
// ever publish one of these.
func NewOctJWK(kid, alg string, secret []byte) JWK {
	return JWK{
		Kty: "oct",
		Use: "sig",
		Alg: alg,
		Kid: kid,
		K:   base64.RawURLEncoding.EncodeToString(secret),
	}
}

// PEM converts an EC JWK to a PKIX PEM public key, handy for pasting into
// jwt.io or openssl.
func (j JWK) PEM() (string, error) {
	if j.Kty != "EC" {
		return "", errors.New("jwtx: PEM export only supports EC keys, got " + j.Kty)
	}
	if j.Crv != "P-256" {
		return "", errors.New("jwtx: unsupported EC curve " + j.Crv)
	}

	xb, err := base64.RawURLEncoding.DecodeString(j.X)
	if err != nil {
		return "", err
	}
	yb, err := base64.RawURLEncoding.DecodeString(j.Y)
	if err != nil {
		return "", err
	}

	pub := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xb),
		Y:     new(big.Int).SetBytes(yb),
	}

	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}

	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

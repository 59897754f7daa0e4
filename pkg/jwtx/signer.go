package jwtx

import "github.com/golang-jwt/jwt/v5"

// Signer mints JWTs. The SDK never signs production tokens (GoTrue does);
// signers back the test issuer and the legacy shared-secret tooling.
type Signer interface {
	Alg() string
	KID() string
	Sign(claims jwt.Claims) (string, error)
	PublicJWK() JWK
}

// NewSignerES256 creates an ES256 signer from PEM bytes.
// ECDSA P-256 keys must be in PKCS8 format.
func NewSignerES256(kid string, pemKey []byte) (Signer, error) {
	return newES256Signer(kid, pemKey)
}

// NewSignerHS256 creates an HS256 signer for a shared secret.
func NewSignerHS256(kid string, secret []byte) (Signer, error) {
	return newHS256Signer(kid, secret)
}

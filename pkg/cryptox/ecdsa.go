package cryptox

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// GenerateES256Key generates a new ECDSA P-256 private key and returns it
// PEM encoded (PKCS8).
func GenerateES256Key() ([]byte, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate ECDSA key: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to marshal PKCS8 key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// ParseES256Key reads a PKCS8 PEM private key and checks it is on P-256.
func ParseES256Key(pemKey []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("cryptox: invalid PEM for ES256 key")
	}
	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("cryptox: expected PRIVATE KEY, got %q (ES256 requires PKCS8)", block.Type)
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cryptox: parse PKCS8: %w", err)
	}

	key, ok := priv.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("cryptox: not an ECDSA private key")
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("cryptox: expected P-256 curve, got %s", key.Curve.Params().Name)
	}
	return key, nil
}

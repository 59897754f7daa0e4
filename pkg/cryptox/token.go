package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// SecretSize is the HS256 secret length used when we mint one ourselves.
const SecretSize = 32

// GenerateSecret returns size cryptographically random bytes, e.g. a shared
// HS256 secret for local testing.
func GenerateSecret(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cryptox: secret size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate secret: %w", err)
	}
	return buf, nil
}

// EncodeSecret renders a secret the way it is pasted into config files.
func EncodeSecret(secret []byte) string {
	return base64.RawURLEncoding.EncodeToString(secret)
}

package jwtx

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Key is one verification key taken from a key set.
type Key struct {
	ID        string // "kid", may be empty
	Algorithm string // "alg" advertised by the key, may be empty
	KeyType   string // "kty"
	Public    any    // *ecdsa.PublicKey | *rsa.PublicKey | ed25519.PublicKey | []byte
}

// PEM renders an asymmetric key as a PKIX public key block. Shared secrets
// have no public form and are refused.
func (k Key) PEM() (string, error) {
	if _, ok := k.Public.([]byte); ok {
		return "", fmt.Errorf("jwtx: key %q is a shared secret", k.ID)
	}
	der, err := x509.MarshalPKIXPublicKey(k.Public)
	if err != nil {
		return "", fmt.Errorf("jwtx: key %q: %w", k.ID, err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// KeySet is an immutable, ordered collection of verification keys. Lookups
// by id are O(1) and iteration follows the order of the source document.
// A KeySet is never modified after construction, so it is safe to share
// across goroutines and to swap wholesale when refreshing.
type KeySet struct {
	keys []Key
	byID map[string]int
}

// NewKeySet builds a set from keys in the given order. Two keys with the
// same non-empty id are rejected.
func NewKeySet(keys ...Key) (*KeySet, error) {
	ks := &KeySet{
		keys: make([]Key, 0, len(keys)),
		byID: make(map[string]int, len(keys)),
	}
	for _, k := range keys {
		if k.Public == nil {
			return nil, fmt.Errorf("jwtx: key %q has no key material", k.ID)
		}
		if k.ID != "" {
			if _, dup := ks.byID[k.ID]; dup {
				return nil, fmt.Errorf("jwtx: duplicate key id %q", k.ID)
			}
			ks.byID[k.ID] = len(ks.keys)
		}
		ks.keys = append(ks.keys, k)
	}
	return ks, nil
}

// NewSecretKeySet returns a one-key set holding a shared HS256 secret, used
// by projects still signing with the legacy symmetric JWT secret.
func NewSecretKeySet(secret []byte) *KeySet {
	ks, _ := NewKeySet(Key{Algorithm: "HS256", KeyType: "oct", Public: secret})
	return ks
}

// ParseKeySet parses a JWKS document. Key order is preserved.
func ParseKeySet(data []byte) (*KeySet, error) {
	set, err := jwk.Parse(data)
	if err != nil {
		return nil, err
	}
	if set.Len() == 0 {
		return nil, errors.New("jwtx: key set contains no keys")
	}

	keys := make([]Key, 0, set.Len())
	for i := 0; i < set.Len(); i++ {
		k, ok := set.Key(i)
		if !ok {
			continue
		}

		var raw any
		if err := k.Raw(&raw); err != nil {
			return nil, fmt.Errorf("jwtx: key %q: %w", k.KeyID(), err)
		}

		var alg string
		if a := k.Algorithm(); a != nil {
			alg = a.String()
		}

		keys = append(keys, Key{
			ID:        k.KeyID(),
			Algorithm: alg,
			KeyType:   k.KeyType().String(),
			Public:    raw,
		})
	}

	return NewKeySet(keys...)
}

// Len returns the number of keys in the set.
func (k *KeySet) Len() int {
	if k == nil {
		return 0
	}
	return len(k.keys)
}

// Keys returns a copy of the keys in source order.
func (k *KeySet) Keys() []Key {
	if k == nil {
		return nil
	}
	out := make([]Key, len(k.keys))
	copy(out, k.keys)
	return out
}

// Lookup returns the key with the given id.
func (k *KeySet) Lookup(kid string) (Key, bool) {
	if k == nil || kid == "" {
		return Key{}, false
	}
	i, ok := k.byID[kid]
	if !ok {
		return Key{}, false
	}
	return k.keys[i], true
}

// IDs returns the key ids in source order, skipping keys without one.
func (k *KeySet) IDs() []string {
	if k == nil {
		return nil
	}
	ids := make([]string, 0, len(k.keys))
	for _, key := range k.keys {
		if key.ID != "" {
			ids = append(ids, key.ID)
		}
	}
	return ids
}

// KeyProvider hands out the key set a validator should verify against.
type KeyProvider interface {
	Keys(ctx context.Context) (*KeySet, error)
}

// StaticKeys is a KeyProvider that always returns the same set.
type StaticKeys struct {
	Set *KeySet
}

func (s StaticKeys) Keys(context.Context) (*KeySet, error) {
	if s.Set == nil {
		return nil, ErrNoKey
	}
	return s.Set, nil
}

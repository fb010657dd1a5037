package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidKeyMaterial is returned by NewKeyMaterial when a required field is empty.
var ErrInvalidKeyMaterial = errors.New("invalid key material")

// KeyMaterial is a signing or verification key together with its identifier, algorithm and
// validity window. Values are immutable; share them by pointer.
type KeyMaterial struct {
	key       any
	keyID     string
	algorithm string
	createdAt time.Time
	expiresAt time.Time
}

// NewKeyMaterial validates and wraps a key handle. A zero expiresAt means the key stays valid
// until it is explicitly removed from its provider.
func NewKeyMaterial(key any, keyID, algorithm string, createdAt, expiresAt time.Time) (*KeyMaterial, error) {
	if isEmptyKey(key) {
		return nil, fmt.Errorf("%w: key is required", ErrInvalidKeyMaterial)
	}
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		return nil, fmt.Errorf("%w: key id is required", ErrInvalidKeyMaterial)
	}
	algorithm = strings.TrimSpace(algorithm)
	if algorithm == "" {
		return nil, fmt.Errorf("%w: algorithm is required", ErrInvalidKeyMaterial)
	}
	if !expiresAt.IsZero() && !expiresAt.After(createdAt) {
		return nil, fmt.Errorf("%w: expiry must be after creation", ErrInvalidKeyMaterial)
	}

	return &KeyMaterial{
		key:       cloneKey(key),
		keyID:     keyID,
		algorithm: algorithm,
		createdAt: createdAt.UTC(),
		expiresAt: expiresAt.UTC(),
	}, nil
}

// Key returns the raw key handle used for signing.
func (k *KeyMaterial) Key() any { return cloneKey(k.key) }

// KeyID returns the identifier written to the token "kid" header.
func (k *KeyMaterial) KeyID() string { return k.keyID }

// Algorithm returns the JWS algorithm name the key is meant for.
func (k *KeyMaterial) Algorithm() string { return k.algorithm }

// CreatedAt returns the creation or activation instant.
func (k *KeyMaterial) CreatedAt() time.Time { return k.createdAt }

// ExpiresAt returns the expiry instant and false when the key never expires.
func (k *KeyMaterial) ExpiresAt() (time.Time, bool) {
	return k.expiresAt, !k.expiresAt.IsZero()
}

// ValidAt reports whether the key may be selected for signing at now.
func (k *KeyMaterial) ValidAt(now time.Time) bool {
	return k.expiresAt.IsZero() || k.expiresAt.After(now)
}

// VerificationKey returns the key used to check signatures: the public half of an asymmetric
// key, or the shared secret for HMAC.
func (k *KeyMaterial) VerificationKey() any {
	switch key := k.key.(type) {
	case ed25519.PrivateKey:
		return key.Public()
	case *rsa.PrivateKey:
		return &key.PublicKey
	case *ecdsa.PrivateKey:
		return &key.PublicKey
	case []byte:
		return cloneKey(key)
	case crypto.Signer:
		return key.Public()
	default:
		return key
	}
}

func (k *KeyMaterial) String() string {
	return fmt.Sprintf("%s (%s) created %s", k.keyID, k.algorithm, k.createdAt.Format(time.RFC3339))
}

func isEmptyKey(key any) bool {
	switch v := key.(type) {
	case nil:
		return true
	case []byte:
		return len(v) == 0
	case ed25519.PrivateKey:
		return len(v) == 0
	case ed25519.PublicKey:
		return len(v) == 0
	case *rsa.PrivateKey:
		return v == nil
	case *rsa.PublicKey:
		return v == nil
	case *ecdsa.PrivateKey:
		return v == nil
	case *ecdsa.PublicKey:
		return v == nil
	default:
		return false
	}
}

// HMAC secrets are copied so callers cannot mutate a published key.
func cloneKey(key any) any {
	b, ok := key.([]byte)
	if !ok {
		return key
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

package keys

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/MrEthical07/goToken/internal"
)

const (
	defaultRSABits    = 2048
	defaultSecretSize = 64
)

type generateOptions struct {
	keyID     string
	createdAt time.Time
	ttl       time.Duration
	rsaBits   int
}

// GenerateOption configures Generate.
type GenerateOption func(*generateOptions)

// WithKeyID sets the key identifier instead of a random one.
func WithKeyID(id string) GenerateOption {
	return func(o *generateOptions) { o.keyID = id }
}

// WithCreatedAt sets the creation instant. Defaults to time.Now.
func WithCreatedAt(t time.Time) GenerateOption {
	return func(o *generateOptions) { o.createdAt = t }
}

// WithTTL sets the key lifetime. Zero means the key never expires.
func WithTTL(ttl time.Duration) GenerateOption {
	return func(o *generateOptions) { o.ttl = ttl }
}

// WithRSABits sets the RSA modulus size for RS* and PS* algorithms.
func WithRSABits(bits int) GenerateOption {
	return func(o *generateOptions) { o.rsaBits = bits }
}

// Generate creates fresh key material for alg.
func Generate(alg string, opts ...GenerateOption) (*KeyMaterial, error) {
	o := generateOptions{rsaBits: defaultRSABits}
	for _, opt := range opts {
		opt(&o)
	}
	if o.createdAt.IsZero() {
		o.createdAt = time.Now()
	}
	if o.keyID == "" {
		id, err := internal.NewKeyID()
		if err != nil {
			return nil, err
		}
		o.keyID = id
	}
	var expiresAt time.Time
	if o.ttl > 0 {
		expiresAt = o.createdAt.Add(o.ttl)
	}

	key, err := generateKey(alg, o.rsaBits)
	if err != nil {
		return nil, err
	}
	return NewKeyMaterial(key, o.keyID, alg, o.createdAt, expiresAt)
}

func generateKey(alg string, rsaBits int) (any, error) {
	switch {
	case alg == "HS256", alg == "HS384", alg == "HS512":
		return internal.RandomSecret(secretSize(alg))
	case alg == "RS256", alg == "RS384", alg == "RS512", alg == "PS256", alg == "PS384", alg == "PS512":
		if rsaBits < defaultRSABits {
			return nil, fmt.Errorf("rsa key size %d below %d", rsaBits, defaultRSABits)
		}
		return rsa.GenerateKey(rand.Reader, rsaBits)
	case alg == "ES256":
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case alg == "ES384":
		return ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case alg == "ES512":
		return ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	case alg == "EdDSA":
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		return priv, err
	default:
		return nil, fmt.Errorf("%w: algorithm %q", ErrUnsupportedKey, alg)
	}
}

func secretSize(alg string) int {
	switch alg {
	case "HS256":
		return 32
	case "HS384":
		return 48
	default:
		return defaultSecretSize
	}
}

package keys

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func hmacKey(t *testing.T, id string, created time.Time, expires time.Time) *KeyMaterial {
	t.Helper()
	k, err := NewKeyMaterial([]byte("0123456789abcdef0123456789abcdef"), id, "HS256", created, expires)
	require.NoError(t, err)
	return k
}

func TestNewKeyMaterialValidation(t *testing.T) {
	secret := []byte("secret-secret-secret-secret-1234")

	cases := []struct {
		name    string
		key     any
		kid     string
		alg     string
		expires time.Time
	}{
		{name: "nil key", key: nil, kid: "k1", alg: "HS256"},
		{name: "empty secret", key: []byte{}, kid: "k1", alg: "HS256"},
		{name: "blank kid", key: secret, kid: "  ", alg: "HS256"},
		{name: "blank alg", key: secret, kid: "k1", alg: ""},
		{name: "expiry before creation", key: secret, kid: "k1", alg: "HS256", expires: t0.Add(-time.Second)},
		{name: "expiry equals creation", key: secret, kid: "k1", alg: "HS256", expires: t0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewKeyMaterial(tc.key, tc.kid, tc.alg, t0, tc.expires)
			assert.ErrorIs(t, err, ErrInvalidKeyMaterial)
		})
	}
}

func TestKeyMaterialAccessors(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	k, err := NewKeyMaterial(secret, " k1 ", "HS256", t0, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, "k1", k.KeyID())
	assert.Equal(t, "HS256", k.Algorithm())
	assert.True(t, k.CreatedAt().Equal(t0))
	_, ok := k.ExpiresAt()
	assert.False(t, ok)
	assert.True(t, k.ValidAt(t0.Add(100*365*24*time.Hour)))

	secret[0] = 'X'
	assert.Equal(t, byte('0'), k.Key().([]byte)[0], "key must not alias caller bytes")

	got := k.Key().([]byte)
	got[1] = 'Y'
	assert.Equal(t, byte('1'), k.Key().([]byte)[1], "key must not alias returned bytes")
}

func TestKeyMaterialExpiryIsExclusive(t *testing.T) {
	k := hmacKey(t, "k1", t0, t0.Add(time.Hour))

	exp, ok := k.ExpiresAt()
	require.True(t, ok)
	assert.True(t, exp.Equal(t0.Add(time.Hour)))
	assert.True(t, k.ValidAt(t0.Add(time.Hour-time.Nanosecond)))
	assert.False(t, k.ValidAt(t0.Add(time.Hour)))
}

func TestVerificationKeyReturnsPublicHalf(t *testing.T) {
	for _, alg := range []string{"RS256", "ES256", "EdDSA", "HS256"} {
		t.Run(alg, func(t *testing.T) {
			k, err := Generate(alg)
			require.NoError(t, err)

			switch k.VerificationKey().(type) {
			case *rsa.PublicKey:
				assert.Equal(t, "RS256", alg)
			case *ecdsa.PublicKey:
				assert.Equal(t, "ES256", alg)
			case ed25519.PublicKey:
				assert.Equal(t, "EdDSA", alg)
			case []byte:
				assert.Equal(t, "HS256", alg)
			default:
				t.Fatalf("unexpected verification key type %T", k.VerificationKey())
			}
		})
	}
}

package keys

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAllAlgorithms(t *testing.T) {
	algs := []string{"HS256", "HS384", "HS512", "RS256", "PS256", "ES256", "ES384", "ES512", "EdDSA"}
	for _, alg := range algs {
		t.Run(alg, func(t *testing.T) {
			k, err := Generate(alg)
			require.NoError(t, err)
			assert.Equal(t, alg, k.Algorithm())
			assert.Len(t, k.KeyID(), 32)
			assert.NotContains(t, k.KeyID(), "-")
			_, ok := k.ExpiresAt()
			assert.False(t, ok)
		})
	}
}

func TestGenerateSecretSizes(t *testing.T) {
	for alg, size := range map[string]int{"HS256": 32, "HS384": 48, "HS512": 64} {
		k, err := Generate(alg)
		require.NoError(t, err)
		assert.Len(t, k.Key().([]byte), size, alg)
	}
}

func TestGenerateOptions(t *testing.T) {
	k, err := Generate("HS256", WithKeyID("fixed"), WithCreatedAt(t0), WithTTL(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "fixed", k.KeyID())
	assert.True(t, k.CreatedAt().Equal(t0))
	exp, ok := k.ExpiresAt()
	require.True(t, ok)
	assert.True(t, exp.Equal(t0.Add(time.Hour)))
}

func TestGenerateRejects(t *testing.T) {
	_, err := Generate("none")
	assert.ErrorIs(t, err, ErrUnsupportedKey)

	_, err = Generate("HS1024")
	assert.ErrorIs(t, err, ErrUnsupportedKey)

	_, err = Generate("RS256", WithRSABits(1024))
	assert.Error(t, err)
}

func TestGeneratedKeyIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		k, err := Generate("HS256")
		require.NoError(t, err)
		require.False(t, seen[k.KeyID()])
		seen[k.KeyID()] = true
	}
}

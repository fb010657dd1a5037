package internal

import (
	"crypto/rand"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// MinSecretSize is the smallest HMAC secret RandomSecret produces.
const MinSecretSize = 32

// RandomSecret returns size bytes from crypto/rand.
func RandomSecret(size int) ([]byte, error) {
	if size < MinSecretSize {
		return nil, errors.New("secret size too small")
	}
	out := make([]byte, size)
	if _, err := rand.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}

// NewKeyID returns a random key identifier: a v4 UUID without dashes.
func NewKeyID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}

// NewTokenID returns a random jti value.
func NewTokenID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

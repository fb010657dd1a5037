package keys

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	gjwt "github.com/golang-jwt/jwt/v5"
)

// Storage formats written by MarshalKey.
const (
	FormatSecret = "secret"
	FormatPKCS8  = "pkcs8"
	FormatPKIX   = "pkix"
)

// ErrUnsupportedKey is returned for key handles that cannot be serialized.
var ErrUnsupportedKey = errors.New("unsupported key type")

// MarshalKey serializes a key handle: HMAC secrets raw, private keys as PKCS#8 DER and public
// keys as PKIX DER.
func MarshalKey(key any) (format string, data []byte, err error) {
	switch k := key.(type) {
	case []byte:
		return FormatSecret, cloneKey(k).([]byte), nil
	case *rsa.PrivateKey, *ecdsa.PrivateKey, ed25519.PrivateKey:
		der, err := x509.MarshalPKCS8PrivateKey(k)
		if err != nil {
			return "", nil, err
		}
		return FormatPKCS8, der, nil
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
		der, err := x509.MarshalPKIXPublicKey(k)
		if err != nil {
			return "", nil, err
		}
		return FormatPKIX, der, nil
	default:
		return "", nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
}

// ParseKey is the inverse of MarshalKey.
func ParseKey(format string, data []byte) (any, error) {
	if len(data) == 0 {
		return nil, ErrInvalidKeyMaterial
	}
	switch format {
	case FormatSecret:
		return cloneKey(data), nil
	case FormatPKCS8:
		return x509.ParsePKCS8PrivateKey(data)
	case FormatPKIX:
		return x509.ParsePKIXPublicKey(data)
	default:
		return nil, fmt.Errorf("%w: format %q", ErrUnsupportedKey, format)
	}
}

// ParsePEM loads a PEM encoded private or public key for alg. HMAC algorithms take the raw
// bytes as the secret.
func ParsePEM(alg string, data []byte) (any, error) {
	if len(data) == 0 {
		return nil, ErrInvalidKeyMaterial
	}
	if len(alg) < 2 {
		return nil, fmt.Errorf("%w: algorithm %q", ErrUnsupportedKey, alg)
	}

	switch alg[:2] {
	case "HS":
		return cloneKey(data), nil
	case "RS", "PS":
		if isPublicPEM(data) {
			return gjwt.ParseRSAPublicKeyFromPEM(data)
		}
		return gjwt.ParseRSAPrivateKeyFromPEM(data)
	case "ES":
		if isPublicPEM(data) {
			return gjwt.ParseECPublicKeyFromPEM(data)
		}
		return gjwt.ParseECPrivateKeyFromPEM(data)
	case "Ed":
		if isPublicPEM(data) {
			return parseEdPublicKey(data)
		}
		return parseEdPrivateKey(data)
	default:
		return nil, fmt.Errorf("%w: algorithm %q", ErrUnsupportedKey, alg)
	}
}

// EncodePEM renders a key handle as PEM; HMAC secrets are returned unchanged.
func EncodePEM(key any) ([]byte, error) {
	format, der, err := MarshalKey(key)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatPKCS8:
		return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
	case FormatPKIX:
		return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
	default:
		return der, nil
	}
}

func isPublicPEM(data []byte) bool {
	block, _ := pem.Decode(data)
	return block != nil && block.Type == "PUBLIC KEY"
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := gjwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := gjwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}

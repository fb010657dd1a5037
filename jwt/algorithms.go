package jwt

import (
	"strings"

	gjwt "github.com/golang-jwt/jwt/v5"
)

// JWS algorithm names accepted by Codec.
const (
	RS256 = "RS256"
	RS384 = "RS384"
	RS512 = "RS512"
	PS256 = "PS256"
	PS384 = "PS384"
	PS512 = "PS512"
	ES256 = "ES256"
	ES384 = "ES384"
	ES512 = "ES512"
	HS256 = "HS256"
	HS384 = "HS384"
	HS512 = "HS512"
	EdDSA = "EdDSA"

	// None is recognised only so it can be rejected.
	None = "none"
)

// IsSupported reports whether alg names a registered signature algorithm other than "none".
func IsSupported(alg string) bool {
	return signingMethod(alg) != nil
}

// IsSymmetric reports whether alg is an HMAC algorithm.
func IsSymmetric(alg string) bool {
	return strings.HasPrefix(alg, "HS")
}

func signingMethod(alg string) gjwt.SigningMethod {
	if alg == "" || strings.EqualFold(alg, None) {
		return nil
	}
	return gjwt.GetSigningMethod(alg)
}

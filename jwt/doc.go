// Package jwt is the compact-token capability used by goToken: it signs header and claim sets
// into the three-segment base64url form, decodes tokens without trusting them, and verifies
// signatures and registered claims.
//
// [Codec] implements [Signer], [Decoder] and [Verifier] on top of golang-jwt/jwt/v5. The
// interfaces exist so issuance and validation can be exercised with fakes; production code uses
// [NewCodec].
//
// # Security contract
//
//   - The "none" algorithm is never signed or accepted.
//   - Verification pins the algorithm supplied by the caller; the token header alone is never
//     trusted.
//   - exp and iat are required; exp, nbf and iat are checked with a symmetric leeway.
package jwt

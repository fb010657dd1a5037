package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnsupportedAlgorithm is returned for unknown algorithms and for "none".
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	// ErrMalformed is returned by Decode when the input is not a compact token.
	ErrMalformed = errors.New("malformed token")
)

// Signer produces a compact signed token from a header and a claim set.
type Signer interface {
	Sign(ctx context.Context, alg string, header map[string]any, claims map[string]any, key any) (string, error)
}

// Decoded is a token split into its header and claims. Nothing in it has been verified.
type Decoded struct {
	Header    map[string]any
	Claims    map[string]any
	Algorithm string
	KeyID     string
	Signed    bool
}

// Decoder splits a compact token without verifying it.
type Decoder interface {
	Decode(token string) (*Decoded, error)
}

// VerifyOptions pins what a token must satisfy to be accepted.
type VerifyOptions struct {
	Algorithm string
	Key       any
	Issuer    string
	// Audiences is satisfied when the token audience contains at least one entry.
	Audiences []string
	Leeway    time.Duration
	Now       func() time.Time
}

// Verifier checks the signature and registered claims of a compact token.
type Verifier interface {
	Verify(ctx context.Context, token string, opts VerifyOptions) (map[string]any, error)
}

// Codec implements Signer, Decoder and Verifier with golang-jwt.
type Codec struct{}

var (
	_ Signer   = (*Codec)(nil)
	_ Decoder  = (*Codec)(nil)
	_ Verifier = (*Codec)(nil)
)

// NewCodec returns a stateless Codec backed by golang-jwt.
func NewCodec() *Codec {
	return &Codec{}
}

// Sign encodes header and claims and signs them with key. The "alg" header is always derived
// from alg; any value supplied in header is ignored.
func (c *Codec) Sign(ctx context.Context, alg string, header map[string]any, claims map[string]any, key any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	method := signingMethod(alg)
	if method == nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	token := gjwt.NewWithClaims(method, gjwt.MapClaims(claims))
	for k, v := range header {
		if k == "alg" {
			continue
		}
		token.Header[k] = v
	}

	return token.SignedString(key)
}

// Decode parses token without checking its signature.
func (c *Codec) Decode(token string) (*Decoded, error) {
	claims := gjwt.MapClaims{}
	parsed, parts, err := gjwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	alg, _ := parsed.Header["alg"].(string)
	kid, _ := parsed.Header["kid"].(string)

	return &Decoded{
		Header:    parsed.Header,
		Claims:    claims,
		Algorithm: alg,
		KeyID:     kid,
		Signed:    len(parts) == 3 && parts[2] != "",
	}, nil
}

// Verify parses token, checks its signature against opts.Key with opts.Algorithm only, then
// validates exp, nbf and iat (all with opts.Leeway), the issuer and the audience.
func (c *Codec) Verify(ctx context.Context, token string, opts VerifyOptions) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if signingMethod(opts.Algorithm) == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, opts.Algorithm)
	}

	parserOpts := []gjwt.ParserOption{
		gjwt.WithValidMethods([]string{opts.Algorithm}),
		gjwt.WithExpirationRequired(),
		gjwt.WithIssuedAt(),
		gjwt.WithLeeway(opts.Leeway),
	}
	if opts.Now != nil {
		parserOpts = append(parserOpts, gjwt.WithTimeFunc(opts.Now))
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, gjwt.WithIssuer(opts.Issuer))
	}

	claims := gjwt.MapClaims{}
	parsed, err := gjwt.NewParser(parserOpts...).ParseWithClaims(token, claims, func(t *gjwt.Token) (any, error) {
		if t.Method.Alg() != opts.Algorithm {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if opts.Key == nil {
			return nil, errors.New("missing verification key")
		}
		return opts.Key, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, gjwt.ErrTokenInvalidClaims
	}

	iat, err := claims.GetIssuedAt()
	if err != nil {
		return nil, err
	}
	if iat == nil {
		return nil, fmt.Errorf("%w: iat claim is required", gjwt.ErrTokenRequiredClaimMissing)
	}

	if len(opts.Audiences) > 0 {
		aud, err := claims.GetAudience()
		if err != nil {
			return nil, err
		}
		if !intersects(aud, opts.Audiences) {
			return nil, gjwt.ErrTokenInvalidAudience
		}
	}

	return claims, nil
}

// Reason maps a verification error to a short, stable description.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedAlgorithm):
		return "unsupported algorithm"
	case errors.Is(err, gjwt.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, gjwt.ErrTokenNotValidYet):
		return "token not valid yet"
	case errors.Is(err, gjwt.ErrTokenUsedBeforeIssued):
		return "token used before issued"
	case errors.Is(err, gjwt.ErrTokenInvalidIssuer):
		return "invalid issuer"
	case errors.Is(err, gjwt.ErrTokenInvalidAudience):
		return "invalid audience"
	case errors.Is(err, gjwt.ErrTokenRequiredClaimMissing):
		return "required claim missing"
	case errors.Is(err, gjwt.ErrTokenSignatureInvalid):
		return "invalid signature"
	case errors.Is(err, gjwt.ErrTokenUnverifiable):
		return "token unverifiable"
	case errors.Is(err, gjwt.ErrTokenMalformed), errors.Is(err, ErrMalformed):
		return "malformed token"
	default:
		return "invalid token"
	}
}

func intersects(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

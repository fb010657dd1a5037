package goToken

import (
	"maps"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

// Principal is the claim set of an accepted token together with the context it was accepted in.
type Principal struct {
	Subject   string
	Issuer    string
	Audience  []string
	ID        string
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time

	// KeyID is the kid of the key that verified the signature.
	KeyID    string
	TenantID string
	Policy   string

	Claims map[string]any
	Header map[string]any
}

func newPrincipal(claims, header map[string]any, keyID, tenantID, policy string) *Principal {
	mc := gjwt.MapClaims(claims)
	p := &Principal{
		KeyID:    keyID,
		TenantID: tenantID,
		Policy:   policy,
		Claims:   claims,
		Header:   header,
	}
	p.Subject, _ = mc.GetSubject()
	p.Issuer, _ = mc.GetIssuer()
	if aud, err := mc.GetAudience(); err == nil {
		p.Audience = []string(aud)
	}
	p.ID, _ = claims["jti"].(string)
	p.IssuedAt = numericTime(mc.GetIssuedAt())
	p.NotBefore = numericTime(mc.GetNotBefore())
	p.ExpiresAt = numericTime(mc.GetExpirationTime())
	return p
}

func numericTime(d *gjwt.NumericDate, err error) time.Time {
	if err != nil || d == nil {
		return time.Time{}
	}
	return d.Time.UTC()
}

// Claim returns a raw claim value.
func (p *Principal) Claim(name string) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.Claims[name]
	return v, ok
}

// StringClaim returns a claim as a string, or "" when it is absent or not a string.
func (p *Principal) StringClaim(name string) string {
	v, _ := p.Claim(name)
	s, _ := v.(string)
	return s
}

// TokenType returns the "typ" header.
func (p *Principal) TokenType() string {
	if p == nil {
		return ""
	}
	typ, _ := p.Header["typ"].(string)
	return typ
}

// Clone returns a deep-enough copy for callers that want to mutate claims.
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}
	out := *p
	out.Audience = append([]string(nil), p.Audience...)
	out.Claims = maps.Clone(p.Claims)
	out.Header = maps.Clone(p.Header)
	return &out
}

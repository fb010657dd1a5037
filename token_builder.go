package goToken

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/keys"
	"go.uber.org/zap"
)

// TokenIssuer creates TokenBuilders bound to its policy store, key provider and signer. It is
// safe for concurrent use; the builders it returns are not.
type TokenIssuer struct {
	store    *PolicyStore
	provider keys.Provider
	signer   jwt.Signer
	now      func() time.Time
	newID    func() (string, error)
	logger   *zap.Logger
	metrics  *Metrics
	audit    *auditDispatcher
}

// New starts a token for policyName (empty for the default policy) and tenantID.
func (i *TokenIssuer) New(policyName, tenantID string) *TokenBuilder {
	return &TokenBuilder{
		issuer:     i,
		policyName: policyName,
		tenantID:   tenantID,
		claims:     map[string]any{},
	}
}

// TokenBuilder accumulates claims for one token. Every method returns the same builder.
type TokenBuilder struct {
	issuer     *TokenIssuer
	policyName string
	tenantID   string

	subject   string
	claims    map[string]any
	audience  string
	expiresIn time.Duration
}

// WithSubject sets the "sub" claim.
func (b *TokenBuilder) WithSubject(subject string) *TokenBuilder {
	b.subject = subject
	return b
}

// WithClaim sets a custom claim. The last value written for a name wins. Registered claims set
// by Sign (iss, aud, iat, nbf, exp, sub) take precedence over custom values of the same name;
// a custom "jti" is kept.
func (b *TokenBuilder) WithClaim(name string, value any) *TokenBuilder {
	b.claims[name] = value
	return b
}

// WithClaims sets several custom claims; see WithClaim.
func (b *TokenBuilder) WithClaims(claims map[string]any) *TokenBuilder {
	for k, v := range claims {
		b.claims[k] = v
	}
	return b
}

// WithAudience overrides the tenant's default audience.
func (b *TokenBuilder) WithAudience(audience string) *TokenBuilder {
	b.audience = audience
	return b
}

// ExpiresIn overrides the policy lifetime. The expiry is computed from the issuance instant.
// Non-positive durations are ignored.
func (b *TokenBuilder) ExpiresIn(d time.Duration) *TokenBuilder {
	if d > 0 {
		b.expiresIn = d
	}
	return b
}

// Sign resolves the policy, tenant and signing key and returns the compact signed token. Every
// failure happens before the signer is called. When the policy requires a jti and none was set,
// the generated id is kept on the builder so that signing again reuses it.
func (b *TokenBuilder) Sign(ctx context.Context) (string, error) {
	iss := b.issuer
	start := time.Now()

	token, res, kid, jti, err := b.sign(ctx)

	if iss.metrics.LatencyEnabled() {
		iss.metrics.Observe(MetricIssueLatency, time.Since(start))
	}

	event := AuditEvent{
		EventType: AuditTokenIssued,
		Subject:   b.subject,
		TenantID:  b.tenantID,
		Policy:    res.Policy.Name,
		KeyID:     kid,
		TokenID:   jti,
		Success:   err == nil,
	}
	if err != nil {
		iss.metrics.Inc(MetricIssueFailure)
		switch KindOf(err) {
		case KindEncryptionNotSupported:
			iss.metrics.Inc(MetricIssueEncryptionRejected)
		case KindNoKeyAvailable:
			iss.metrics.Inc(MetricIssueNoKey)
		case KindPolicyNotFound, KindTenantNotFound, KindPolicyNotAllowedForTenant:
			iss.metrics.Inc(MetricResolveRejected)
		case KindCancelled:
			iss.metrics.Inc(MetricCancelled)
		}
		event.EventType = AuditTokenIssueFailed
		event.Error = err.Error()
		iss.audit.Emit(ctx, event)
		iss.logger.Debug("token issuance failed",
			zap.String("policy", b.policyName),
			zap.String("tenant", b.tenantID),
			zap.Error(err),
		)
		return "", err
	}

	iss.metrics.Inc(MetricIssueSuccess)
	iss.audit.Emit(ctx, event)
	iss.logger.Debug("token issued",
		zap.String("policy", res.Policy.Name),
		zap.String("tenant", b.tenantID),
		zap.String("kid", kid),
		zap.String("jti", jti),
	)
	return token, nil
}

func (b *TokenBuilder) sign(ctx context.Context) (token string, res Resolution, kid, jti string, err error) {
	iss := b.issuer

	if cerr := ctx.Err(); cerr != nil {
		return "", res, "", "", cancelled(ctx, cerr)
	}

	res, err = iss.store.Resolve(b.policyName, b.tenantID)
	if err != nil {
		return "", res, "", "", err
	}
	policy := res.Policy

	if policy.EncryptToken {
		return "", res, "", "", newError(KindEncryptionNotSupported, policy.Name, nil)
	}

	provider := iss.store.KeyProvider(res.Tenant, iss.provider)
	if provider == nil {
		return "", res, "", "", newError(KindNoKeyAvailable, "no key provider configured", nil)
	}
	key, kerr := provider.CurrentSigningKey(ctx, policy.Name, res.Tenant.ID)
	if kerr != nil {
		if isContextError(kerr) {
			return "", res, "", "", cancelled(ctx, kerr)
		}
		return "", res, "", "", newError(KindNoKeyAvailable, policy.Name, kerr)
	}
	if key == nil {
		return "", res, "", "", newError(KindNoKeyAvailable, policy.Name, keys.ErrNoKeyAvailable)
	}
	if key.Algorithm() != policy.SigningAlgorithm {
		return "", res, key.KeyID(), "", newError(KindNoKeyAvailable,
			"key "+key.KeyID()+" is "+key.Algorithm()+", policy requires "+policy.SigningAlgorithm, nil)
	}

	now := iss.now().UTC()
	expires := now.Add(policy.ExpireTime)
	if b.expiresIn > 0 {
		expires = now.Add(b.expiresIn)
	}
	audience := b.audience
	if audience == "" {
		audience = res.Tenant.Options.Audiences[0]
	}

	claims := maps.Clone(b.claims)
	generated := false
	if existing, ok := claims["jti"]; ok {
		if existing != nil {
			jti = fmt.Sprint(existing)
		}
	} else if policy.IncludeJwtID {
		id, gerr := iss.newID()
		if gerr != nil {
			return "", res, key.KeyID(), "", newError(KindNoKeyAvailable, "generate token id", gerr)
		}
		jti = id
		claims["jti"] = jti
		generated = true
	}

	claims["iss"] = res.Tenant.Options.Issuer
	claims["aud"] = audience
	claims["iat"] = now.Unix()
	claims["nbf"] = now.Unix()
	claims["exp"] = expires.Unix()
	if b.subject != "" {
		claims["sub"] = b.subject
	}

	header := map[string]any{"kid": key.KeyID()}
	if policy.TypHeader != "" {
		header["typ"] = policy.TypHeader
	}

	token, err = iss.signer.Sign(ctx, policy.SigningAlgorithm, header, claims, key.Key())
	if err != nil {
		if isContextError(err) {
			return "", res, key.KeyID(), jti, cancelled(ctx, err)
		}
		return "", res, key.KeyID(), jti, newError(KindNoKeyAvailable, "sign with key "+key.KeyID(), err)
	}

	if generated {
		b.claims["jti"] = jti
	}
	return token, res, key.KeyID(), jti, nil
}

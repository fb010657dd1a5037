package goToken

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/keys"
	"go.uber.org/zap"
)

// TokenValidator runs the validation pipeline: resolve policy and tenant, decode, resolve the
// key by kid, verify the signature and registered claims, then run the validator chain.
type TokenValidator struct {
	store    *PolicyStore
	provider keys.Provider
	decoder  jwt.Decoder
	verifier jwt.Verifier
	chain    *ValidatorChain
	now      func() time.Time
	logger   *zap.Logger
	metrics  *Metrics
	audit    *auditDispatcher
}

// Validate returns the principal of an accepted token. Every rejection is a typed *Error; nothing
// is downgraded to an anonymous result.
func (v *TokenValidator) Validate(ctx context.Context, token, policyName, tenantID string) (*Principal, error) {
	start := time.Now()
	p, kid, err := v.validate(ctx, token, policyName, tenantID)

	if v.metrics.LatencyEnabled() {
		v.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	if err != nil {
		v.recordFailure(ctx, err, policyName, tenantID, kid)
		return nil, err
	}

	v.metrics.Inc(MetricValidateSuccess)
	v.audit.Emit(ctx, AuditEvent{
		EventType: AuditTokenValidated,
		Subject:   p.Subject,
		TenantID:  tenantID,
		Policy:    p.Policy,
		KeyID:     kid,
		TokenID:   p.ID,
		Success:   true,
	})
	return p, nil
}

func (v *TokenValidator) validate(ctx context.Context, token, policyName, tenantID string) (*Principal, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", cancelled(ctx, err)
	}

	res, err := v.store.Resolve(policyName, tenantID)
	if err != nil {
		return nil, "", err
	}
	policy := res.Policy

	// Decoding
	decoded, err := v.decoder.Decode(token)
	if err != nil {
		return nil, "", v.warnRejected(newError(KindMalformedToken, "", err), "", policy, res.Tenant)
	}

	// KeyResolution
	kid := decoded.KeyID
	if kid == "" {
		return nil, "", v.warnRejected(newError(KindUnknownKey, "missing kid header", nil), "", policy, res.Tenant)
	}
	provider := v.store.KeyProvider(res.Tenant, v.provider)
	if provider == nil {
		return nil, kid, v.warnRejected(newError(KindUnknownKey, "no key provider configured", nil), kid, policy, res.Tenant)
	}
	key, err := provider.KeyByID(ctx, kid, res.Tenant.ID)
	if err != nil {
		if isContextError(err) {
			return nil, kid, cancelled(ctx, err)
		}
		return nil, kid, v.warnRejected(newError(KindUnknownKey, kid, err), kid, policy, res.Tenant)
	}
	if key == nil {
		return nil, kid, v.warnRejected(newError(KindUnknownKey, kid, nil), kid, policy, res.Tenant)
	}

	// BaselineCheck
	if !decoded.Signed || decoded.Algorithm == jwt.None {
		return nil, kid, v.baselineFailure(kid, policy, res.Tenant, "unsigned token", nil)
	}
	if decoded.Algorithm != policy.SigningAlgorithm {
		return nil, kid, v.baselineFailure(kid, policy, res.Tenant, "algorithm mismatch", nil)
	}
	if key.Algorithm() != policy.SigningAlgorithm {
		return nil, kid, v.baselineFailure(kid, policy, res.Tenant, "key algorithm mismatch", nil)
	}

	claims, err := v.verifier.Verify(ctx, token, jwt.VerifyOptions{
		Algorithm: policy.SigningAlgorithm,
		Key:       key.VerificationKey(),
		Issuer:    res.Tenant.Options.Issuer,
		Audiences: res.Tenant.Options.Audiences,
		Leeway:    ClockSkew,
		Now:       v.now,
	})
	if err != nil {
		if isContextError(err) {
			return nil, kid, cancelled(ctx, err)
		}
		return nil, kid, v.baselineFailure(kid, policy, res.Tenant, jwt.Reason(err), err)
	}

	p := newPrincipal(claims, decoded.Header, kid, res.Tenant.ID, policy.Name)

	// ExtendedValidation
	if err := v.chain.Run(ctx, p, policy.Name, res.Tenant.ID); err != nil {
		if KindOf(err) == KindInvalidToken {
			v.metrics.Inc(MetricValidatorRejected)
		}
		return nil, kid, err
	}

	return p, kid, nil
}

func (v *TokenValidator) baselineFailure(kid string, policy TokenPolicy, tenant Tenant, reason string, cause error) error {
	v.metrics.Inc(MetricValidateBaselineRejected)
	return v.warnRejected(newError(KindInvalidToken, reason, cause), kid, policy, tenant)
}

// warnRejected logs decode, key and baseline rejections at warn level and returns err.
func (v *TokenValidator) warnRejected(err *Error, kid string, policy TokenPolicy, tenant Tenant) error {
	v.logger.Warn("baseline token validation failed",
		zap.String("kind", err.Kind.String()),
		zap.String("reason", err.Reason),
		zap.String("policy", policy.Name),
		zap.String("tenant", tenant.ID),
		zap.String("kid", kid),
		zap.Error(err.Err),
	)
	return err
}

func (v *TokenValidator) recordFailure(ctx context.Context, err error, policyName, tenantID, kid string) {
	v.metrics.Inc(MetricValidateFailure)

	eventType := AuditTokenRejected
	switch KindOf(err) {
	case KindMalformedToken:
		v.metrics.Inc(MetricValidateMalformed)
	case KindUnknownKey:
		v.metrics.Inc(MetricValidateUnknownKey)
	case KindPolicyNotFound, KindTenantNotFound, KindPolicyNotAllowedForTenant:
		v.metrics.Inc(MetricResolveRejected)
	case KindCancelled:
		v.metrics.Inc(MetricCancelled)
	case KindInvalidToken:
		if errors.Is(err, ErrTokenRevoked) {
			v.metrics.Inc(MetricTokenRevoked)
			eventType = AuditTokenRevoked
		}
	}

	v.audit.Emit(ctx, AuditEvent{
		EventType: eventType,
		TenantID:  tenantID,
		Policy:    policyName,
		KeyID:     kid,
		Success:   false,
		Error:     err.Error(),
	})
	v.logger.Debug("token rejected",
		zap.String("policy", policyName),
		zap.String("tenant", tenantID),
		zap.Error(err),
	)
}

package goToken

import (
	"context"

	"go.uber.org/zap"
)

// Engine issues and validates tokens. All methods are safe for concurrent use after Build.
type Engine struct {
	config    Config
	store     *PolicyStore
	issuer    *TokenIssuer
	validator *TokenValidator
	logger    *zap.Logger
	audit     *auditDispatcher
	metrics   *Metrics
}

// NewToken starts a token for policyName (empty for the default policy) and tenantID. Finish it
// with TokenBuilder.Sign.
func (e *Engine) NewToken(policyName, tenantID string) *TokenBuilder {
	return e.issuer.New(policyName, tenantID)
}

// Validate checks token against policyName (empty for the default policy) and tenantID and
// returns the accepted principal.
func (e *Engine) Validate(ctx context.Context, token, policyName, tenantID string) (*Principal, error) {
	if e == nil || e.validator == nil {
		return nil, newError(KindConfiguration, "", errEngineNotReady)
	}
	return e.validator.Validate(ctx, token, policyName, tenantID)
}

// Issuer returns the engine's TokenIssuer.
func (e *Engine) Issuer() *TokenIssuer { return e.issuer }

// Validator returns the engine's TokenValidator.
func (e *Engine) Validator() *TokenValidator { return e.validator }

// Policies returns the engine's PolicyStore.
func (e *Engine) Policies() *PolicyStore { return e.store }

// Config returns a copy of the effective configuration.
func (e *Engine) Config() Config { return cloneConfig(e.config) }

// Close flushes pending audit events. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	_ = e.logger.Sync()
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

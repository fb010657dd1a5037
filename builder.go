package goToken

import (
	"errors"
	"time"

	"github.com/MrEthical07/goToken/internal"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/keys"
	"go.uber.org/zap"
)

// Builder assembles an Engine. Configure it during initialization, call Build once, and discard
// it.
type Builder struct {
	config Config

	keyProvider   keys.Provider
	validators    []Validator
	validatorsSet bool

	signer   jwt.Signer
	decoder  jwt.Decoder
	verifier jwt.Verifier

	logger    *zap.Logger
	now       func() time.Time
	newID     func() (string, error)
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. The config is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithKeyProvider sets the engine-wide key provider. Tenants may override it through
// TenantOptions.KeyProvider.
func (b *Builder) WithKeyProvider(p keys.Provider) *Builder {
	b.keyProvider = p
	return b
}

// WithValidators registers the extension validators in the order they will run. Without this
// call the chain holds a single inert RevocationValidator.
func (b *Builder) WithValidators(vs ...Validator) *Builder {
	b.validators = append(b.validators, vs...)
	b.validatorsSet = true
	return b
}

// WithSigner replaces the token signer.
func (b *Builder) WithSigner(s jwt.Signer) *Builder {
	b.signer = s
	return b
}

// WithDecoder replaces the token decoder.
func (b *Builder) WithDecoder(d jwt.Decoder) *Builder {
	b.decoder = d
	return b
}

// WithVerifier replaces the token verifier.
func (b *Builder) WithVerifier(v jwt.Verifier) *Builder {
	b.verifier = v
	return b
}

// WithLogger sets the logger. Defaults to zap.NewNop.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock sets the clock used for issuance and lifetime checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithIDGenerator sets the jti generator. Defaults to random UUIDs.
func (b *Builder) WithIDGenerator(gen func() (string, error)) *Builder {
	b.newID = gen
	return b
}

// WithAuditSink sets the sink that receives audit events when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the issue and validate latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine. Every failure is an
// ErrConfiguration.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, configError("builder already used")
	}

	if b.keyProvider == nil && !allTenantsHaveProviders(b.config) {
		return nil, configError("key provider required")
	}

	store, err := NewPolicyStore(b.config)
	if err != nil {
		return nil, err
	}
	cfg := store.Config()

	codec := jwt.NewCodec()
	signer, decoder, verifier := b.signer, b.decoder, b.verifier
	if signer == nil {
		signer = codec
	}
	if decoder == nil {
		decoder = codec
	}
	if verifier == nil {
		verifier = codec
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}
	newID := b.newID
	if newID == nil {
		newID = internal.NewTokenID
	}

	validators := b.validators
	if !b.validatorsSet {
		validators = []Validator{NewRevocationValidator(nil)}
	}

	engine := &Engine{
		config:  cfg,
		store:   store,
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, now)

	engine.issuer = &TokenIssuer{
		store:    store,
		provider: b.keyProvider,
		signer:   signer,
		now:      now,
		newID:    newID,
		logger:   logger.Named("issuer"),
		metrics:  engine.metrics,
		audit:    engine.audit,
	}
	engine.validator = &TokenValidator{
		store:    store,
		provider: b.keyProvider,
		decoder:  decoder,
		verifier: verifier,
		chain:    NewValidatorChain(validators...),
		now:      now,
		logger:   logger.Named("validator"),
		metrics:  engine.metrics,
		audit:    engine.audit,
	}

	b.built = true

	logger.Info("token engine ready",
		zap.Int("policies", len(cfg.TokenPolicies)),
		zap.Int("tenants", len(cfg.Tenants)),
		zap.Int("validators", engine.validator.chain.Len()),
		zap.String("default_policy", cfg.DefaultPolicyName),
	)

	return engine, nil
}

// MustBuild is Build that panics on configuration errors.
func (b *Builder) MustBuild() *Engine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

func allTenantsHaveProviders(cfg Config) bool {
	if len(cfg.Tenants) == 0 || cfg.DefaultIssuer != "" {
		return false
	}
	for _, t := range cfg.Tenants {
		if t.KeyProvider == nil {
			return false
		}
	}
	return true
}

var errEngineNotReady = errors.New("engine not initialized")

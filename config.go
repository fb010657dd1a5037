package goToken

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/keys"
)

const (
	// DefaultPolicyName is the policy used when a request names none.
	DefaultPolicyName = "AccessToken"
	// DefaultTypHeader is the "typ" header written by the built-in policy.
	DefaultTypHeader = "at+jwt"
	// DefaultExpireTime is the lifetime of tokens issued under the built-in policy.
	DefaultExpireTime = 5 * time.Minute
	// ClockSkew is the tolerance applied to exp, nbf and iat in both directions.
	ClockSkew = 30 * time.Second
)

/*
====================================
POLICY / TENANT CONFIG
====================================
*/

// TokenPolicy describes one class of issued tokens.
type TokenPolicy struct {
	Name             string
	SigningAlgorithm string
	// EncryptToken is accepted in configuration, but issuing under it always fails with
	// ErrEncryptionNotSupported.
	EncryptToken bool
	ExpireTime   time.Duration
	IncludeJwtID bool
	TypHeader    string
}

// DefaultTokenPolicy returns the built-in AccessToken policy.
func DefaultTokenPolicy() TokenPolicy {
	return TokenPolicy{
		Name:             DefaultPolicyName,
		SigningAlgorithm: jwt.ES256,
		ExpireTime:       DefaultExpireTime,
		IncludeJwtID:     true,
		TypHeader:        DefaultTypHeader,
	}
}

// TenantOptions is the per-tenant configuration.
type TenantOptions struct {
	Issuer string
	// Audiences is ordered; the first entry is written to issued tokens.
	Audiences            []string
	AllowedTokenPolicies []string
	// KeyProvider overrides the engine-wide provider for this tenant when set.
	KeyProvider keys.Provider
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and the validate latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Config is the process-wide configuration snapshot. It is validated once by Builder.Build and
// read-only afterwards.
type Config struct {
	GlobalAllowedAlgorithms []string
	TokenPolicies           map[string]TokenPolicy
	Tenants                 map[string]TenantOptions
	DefaultPolicyName       string

	// DefaultIssuer and DefaultAudience describe the implicit tenant used when a request carries
	// no tenant id. Both blank disables untenanted requests.
	DefaultIssuer   string
	DefaultAudience string

	Metrics MetricsConfig
	Audit   AuditConfig
}

// DefaultConfig returns a config with the built-in policy and no tenants.
func DefaultConfig() Config {
	return Config{
		GlobalAllowedAlgorithms: []string{jwt.RS256, jwt.ES256, jwt.HS256},
		TokenPolicies: map[string]TokenPolicy{
			DefaultPolicyName: DefaultTokenPolicy(),
		},
		Tenants:           map[string]TenantOptions{},
		DefaultPolicyName: DefaultPolicyName,
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// applyDefaults fills the fields a partially populated config leaves empty and injects the
// built-in policy when no policy of that name exists.
func (c *Config) applyDefaults() {
	if len(c.GlobalAllowedAlgorithms) == 0 {
		c.GlobalAllowedAlgorithms = []string{jwt.RS256, jwt.ES256, jwt.HS256}
	}
	if strings.TrimSpace(c.DefaultPolicyName) == "" {
		c.DefaultPolicyName = DefaultPolicyName
	}
	if c.TokenPolicies == nil {
		c.TokenPolicies = map[string]TokenPolicy{}
	}
	if _, ok := lookupFold(c.TokenPolicies, DefaultPolicyName); !ok {
		c.TokenPolicies[DefaultPolicyName] = DefaultTokenPolicy()
	}
	for name, p := range c.TokenPolicies {
		if p.Name == "" {
			p.Name = name
			c.TokenPolicies[name] = p
		}
	}
	if c.Tenants == nil {
		c.Tenants = map[string]TenantOptions{}
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the wiring between policies, tenants and algorithms. Every failure is an
// ErrConfiguration.
func (c *Config) Validate() error {
	for _, alg := range c.GlobalAllowedAlgorithms {
		if !jwt.IsSupported(alg) {
			return configError(fmt.Sprintf("unsupported algorithm %q in GlobalAllowedAlgorithms", alg))
		}
	}

	seen := make(map[string]string, len(c.TokenPolicies))
	for key, p := range c.TokenPolicies {
		folded := strings.ToLower(strings.TrimSpace(key))
		if folded == "" {
			return configError("token policy name must not be empty")
		}
		if other, dup := seen[folded]; dup {
			return configError(fmt.Sprintf("token policies %q and %q differ only by case", other, key))
		}
		seen[folded] = key

		if !strings.EqualFold(p.Name, key) {
			return configError(fmt.Sprintf("token policy %q has mismatched Name %q", key, p.Name))
		}
		if p.ExpireTime <= 0 {
			return configError(fmt.Sprintf("token policy %q ExpireTime must be > 0", key))
		}
		if !jwt.IsSupported(p.SigningAlgorithm) {
			return configError(fmt.Sprintf("token policy %q uses unsupported algorithm %q", key, p.SigningAlgorithm))
		}
		if !containsFold(c.GlobalAllowedAlgorithms, p.SigningAlgorithm) {
			return configError(fmt.Sprintf("token policy %q algorithm %q is not globally allowed", key, p.SigningAlgorithm))
		}
	}

	if _, ok := lookupFold(c.TokenPolicies, c.DefaultPolicyName); !ok {
		return configError(fmt.Sprintf("DefaultPolicyName %q not found", c.DefaultPolicyName))
	}

	tenantSeen := make(map[string]string, len(c.Tenants))
	for id, t := range c.Tenants {
		folded := strings.ToLower(strings.TrimSpace(id))
		if folded == "" {
			return configError("tenant id must not be empty")
		}
		if other, dup := tenantSeen[folded]; dup {
			return configError(fmt.Sprintf("tenants %q and %q differ only by case", other, id))
		}
		tenantSeen[folded] = id

		if strings.TrimSpace(t.Issuer) == "" {
			return configError(fmt.Sprintf("tenant %q Issuer is required", id))
		}
		if len(t.Audiences) == 0 {
			return configError(fmt.Sprintf("tenant %q requires at least one audience", id))
		}
		for _, aud := range t.Audiences {
			if strings.TrimSpace(aud) == "" {
				return configError(fmt.Sprintf("tenant %q has an empty audience", id))
			}
		}
		if len(t.AllowedTokenPolicies) == 0 {
			return configError(fmt.Sprintf("tenant %q must allow at least one token policy", id))
		}
		for _, name := range t.AllowedTokenPolicies {
			if _, ok := lookupFold(c.TokenPolicies, name); !ok {
				return configError(fmt.Sprintf("tenant %q allows unknown token policy %q", id, name))
			}
		}
	}

	issuerSet := strings.TrimSpace(c.DefaultIssuer) != ""
	audienceSet := strings.TrimSpace(c.DefaultAudience) != ""
	if issuerSet != audienceSet {
		return configError("DefaultIssuer and DefaultAudience must be set together")
	}

	if c.Audit.BufferSize < 0 {
		return configError("Audit BufferSize must be >= 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize == 0 {
		return configError("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.GlobalAllowedAlgorithms = slices.Clone(cfg.GlobalAllowedAlgorithms)

	if cfg.TokenPolicies != nil {
		out.TokenPolicies = make(map[string]TokenPolicy, len(cfg.TokenPolicies))
		for k, v := range cfg.TokenPolicies {
			out.TokenPolicies[k] = v
		}
	}
	if cfg.Tenants != nil {
		out.Tenants = make(map[string]TenantOptions, len(cfg.Tenants))
		for k, v := range cfg.Tenants {
			v.Audiences = slices.Clone(v.Audiences)
			v.AllowedTokenPolicies = slices.Clone(v.AllowedTokenPolicies)
			out.Tenants[k] = v
		}
	}
	return out
}

func lookupFold[V any](m map[string]V, name string) (V, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	var zero V
	return zero, false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

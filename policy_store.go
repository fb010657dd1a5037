package goToken

import (
	"strings"

	"github.com/MrEthical07/goToken/keys"
)

// Tenant is a resolved tenant. ID is empty for the implicit default tenant.
type Tenant struct {
	ID      string
	Options TenantOptions
	// allowAll is set for the implicit default tenant, which has no allow-list.
	allowAll bool
}

// Allows reports whether policyName is in the tenant allow-list.
func (t Tenant) Allows(policyName string) bool {
	return t.allowAll || containsFold(t.Options.AllowedTokenPolicies, policyName)
}

// Resolution is the outcome of PolicyStore.Resolve.
type Resolution struct {
	Policy TokenPolicy
	Tenant Tenant
}

// PolicyStore resolves token policies and tenants from a validated config snapshot. It is
// immutable and safe for concurrent use.
type PolicyStore struct {
	cfg      Config
	policies map[string]TokenPolicy
	tenants  map[string]Tenant
}

// NewPolicyStore copies cfg, fills defaults and validates it.
func NewPolicyStore(cfg Config) (*PolicyStore, error) {
	cfg = cloneConfig(cfg)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &PolicyStore{
		cfg:      cfg,
		policies: make(map[string]TokenPolicy, len(cfg.TokenPolicies)),
		tenants:  make(map[string]Tenant, len(cfg.Tenants)),
	}
	for _, p := range cfg.TokenPolicies {
		s.policies[foldKey(p.Name)] = p
	}
	for id, t := range cfg.Tenants {
		s.tenants[foldKey(id)] = Tenant{ID: id, Options: t}
	}
	return s, nil
}

// Config returns a copy of the effective configuration.
func (s *PolicyStore) Config() Config {
	return cloneConfig(s.cfg)
}

// Policy returns the named policy. An empty name selects the default policy; an unknown name is
// ErrPolicyNotFound and never falls back.
func (s *PolicyStore) Policy(name string) (TokenPolicy, error) {
	if strings.TrimSpace(name) == "" {
		name = s.cfg.DefaultPolicyName
	}
	p, ok := s.policies[foldKey(name)]
	if !ok {
		return TokenPolicy{}, newError(KindPolicyNotFound, name, nil)
	}
	return p, nil
}

// Tenant returns the configured tenant. An empty id resolves to the implicit default tenant when
// DefaultIssuer and DefaultAudience are configured.
func (s *PolicyStore) Tenant(id string) (Tenant, error) {
	if strings.TrimSpace(id) == "" {
		if s.cfg.DefaultIssuer == "" {
			return Tenant{}, newError(KindTenantNotFound, "no tenant given and no default tenant configured", nil)
		}
		return Tenant{
			Options: TenantOptions{
				Issuer:    s.cfg.DefaultIssuer,
				Audiences: []string{s.cfg.DefaultAudience},
			},
			allowAll: true,
		}, nil
	}
	t, ok := s.tenants[foldKey(id)]
	if !ok {
		return Tenant{}, newError(KindTenantNotFound, id, nil)
	}
	return t, nil
}

// Resolve returns the policy and tenant for a request and checks the tenant allow-list.
func (s *PolicyStore) Resolve(policyName, tenantID string) (Resolution, error) {
	policy, err := s.Policy(policyName)
	if err != nil {
		return Resolution{}, err
	}
	tenant, err := s.Tenant(tenantID)
	if err != nil {
		return Resolution{}, err
	}
	if !tenant.Allows(policy.Name) {
		return Resolution{}, newError(KindPolicyNotAllowedForTenant, policy.Name+" for "+tenant.ID, nil)
	}
	return Resolution{Policy: policy, Tenant: tenant}, nil
}

// KeyProvider returns the tenant override when set, otherwise fallback.
func (s *PolicyStore) KeyProvider(t Tenant, fallback keys.Provider) keys.Provider {
	if t.Options.KeyProvider != nil {
		return t.Options.KeyProvider
	}
	return fallback
}

func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

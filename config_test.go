package goToken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "acme baseline valid",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "unsupported global algorithm",
			mutate: func(c *Config) {
				c.GlobalAllowedAlgorithms = []string{"ES256", "XX512"}
			},
			wantValid: false,
		},
		{
			name: "policy algorithm not globally allowed",
			mutate: func(c *Config) {
				c.GlobalAllowedAlgorithms = []string{"RS256"}
			},
			wantValid: false,
		},
		{
			name: "policy algorithm none rejected",
			mutate: func(c *Config) {
				p := c.TokenPolicies[DefaultPolicyName]
				p.SigningAlgorithm = "none"
				c.TokenPolicies[DefaultPolicyName] = p
			},
			wantValid: false,
		},
		{
			name: "policy zero lifetime",
			mutate: func(c *Config) {
				p := c.TokenPolicies[DefaultPolicyName]
				p.ExpireTime = 0
				c.TokenPolicies[DefaultPolicyName] = p
			},
			wantValid: false,
		},
		{
			name: "policy name mismatch",
			mutate: func(c *Config) {
				p := c.TokenPolicies[DefaultPolicyName]
				p.Name = "Other"
				c.TokenPolicies[DefaultPolicyName] = p
			},
			wantValid: false,
		},
		{
			name: "policies differing by case",
			mutate: func(c *Config) {
				p := DefaultTokenPolicy()
				p.Name = "accesstoken"
				c.TokenPolicies["accesstoken"] = p
			},
			wantValid: false,
		},
		{
			name: "encrypting policy accepted",
			mutate: func(c *Config) {
				c.TokenPolicies["Sealed"] = TokenPolicy{
					Name:             "Sealed",
					SigningAlgorithm: "ES256",
					EncryptToken:     true,
					ExpireTime:       time.Minute,
				}
			},
			wantValid: true,
		},
		{
			name: "unknown default policy",
			mutate: func(c *Config) {
				c.DefaultPolicyName = "Missing"
			},
			wantValid: false,
		},
		{
			name: "tenant without issuer",
			mutate: func(c *Config) {
				acme := c.Tenants["acme"]
				acme.Issuer = "  "
				c.Tenants["acme"] = acme
			},
			wantValid: false,
		},
		{
			name: "tenant without audiences",
			mutate: func(c *Config) {
				acme := c.Tenants["acme"]
				acme.Audiences = nil
				c.Tenants["acme"] = acme
			},
			wantValid: false,
		},
		{
			name: "tenant with blank audience",
			mutate: func(c *Config) {
				acme := c.Tenants["acme"]
				acme.Audiences = []string{acmeAudience, ""}
				c.Tenants["acme"] = acme
			},
			wantValid: false,
		},
		{
			name: "tenant with empty allow-list",
			mutate: func(c *Config) {
				acme := c.Tenants["acme"]
				acme.AllowedTokenPolicies = nil
				c.Tenants["acme"] = acme
			},
			wantValid: false,
		},
		{
			name: "tenant allows unknown policy",
			mutate: func(c *Config) {
				acme := c.Tenants["acme"]
				acme.AllowedTokenPolicies = []string{"RefreshToken"}
				c.Tenants["acme"] = acme
			},
			wantValid: false,
		},
		{
			name: "tenant allow-list is case-insensitive",
			mutate: func(c *Config) {
				acme := c.Tenants["acme"]
				acme.AllowedTokenPolicies = []string{"ACCESSTOKEN"}
				c.Tenants["acme"] = acme
			},
			wantValid: true,
		},
		{
			name: "tenants differing by case",
			mutate: func(c *Config) {
				c.Tenants["ACME"] = c.Tenants["acme"]
			},
			wantValid: false,
		},
		{
			name: "default issuer without audience",
			mutate: func(c *Config) {
				c.DefaultIssuer = "https://auth.local"
			},
			wantValid: false,
		},
		{
			name: "default issuer and audience",
			mutate: func(c *Config) {
				c.DefaultIssuer = "https://auth.local"
				c.DefaultAudience = "api"
			},
			wantValid: true,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := acmeConfig()
			tc.mutate(&cfg)
			cfg.applyDefaults()
			err := cfg.Validate()
			if tc.wantValid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestConfigApplyDefaultsInjectsBuiltInPolicy(t *testing.T) {
	cfg := Config{
		Tenants: map[string]TenantOptions{
			"acme": {Issuer: acmeIssuer, Audiences: []string{acmeAudience}, AllowedTokenPolicies: []string{DefaultPolicyName}},
		},
	}
	cfg.applyDefaults()

	p, ok := cfg.TokenPolicies[DefaultPolicyName]
	require.True(t, ok, "built-in policy must be injected")
	assert.Equal(t, DefaultTokenPolicy(), p)
	assert.Equal(t, DefaultPolicyName, cfg.DefaultPolicyName)
	assert.NoError(t, cfg.Validate())
}

func TestConfigApplyDefaultsKeepsCustomAccessToken(t *testing.T) {
	cfg := acmeConfig()
	cfg.TokenPolicies = map[string]TokenPolicy{
		"accesstoken": {SigningAlgorithm: "RS256", ExpireTime: time.Hour},
	}
	cfg.applyDefaults()

	assert.Len(t, cfg.TokenPolicies, 1, "custom policy shadows the built-in one")
	assert.Equal(t, "accesstoken", cfg.TokenPolicies["accesstoken"].Name, "Name filled from the map key")
}

func TestPolicyStoreIsolatedFromCallerMutation(t *testing.T) {
	cfg := acmeConfig()
	store, err := NewPolicyStore(cfg)
	require.NoError(t, err)

	acme := cfg.Tenants["acme"]
	acme.Audiences[0] = "mutated"
	cfg.TokenPolicies[DefaultPolicyName] = TokenPolicy{Name: DefaultPolicyName, SigningAlgorithm: "HS256", ExpireTime: time.Hour}

	tenant, err := store.Tenant("acme")
	require.NoError(t, err)
	assert.Equal(t, acmeAudience, tenant.Options.Audiences[0], "store shares audience slice with caller")
	policy, err := store.Policy("")
	require.NoError(t, err)
	assert.Equal(t, "ES256", policy.SigningAlgorithm, "store shares policy map with caller")
}

func TestPolicyStoreResolve(t *testing.T) {
	cfg := acmeConfig()
	cfg.TokenPolicies["RefreshToken"] = TokenPolicy{Name: "RefreshToken", SigningAlgorithm: "ES256", ExpireTime: time.Hour}
	cfg.DefaultIssuer = "https://auth.local"
	cfg.DefaultAudience = "default-aud"
	store, err := NewPolicyStore(cfg)
	require.NoError(t, err)

	tests := []struct {
		name   string
		policy string
		tenant string
		want   error
	}{
		{name: "default policy", policy: "", tenant: "acme"},
		{name: "case folded", policy: "ACCESSTOKEN", tenant: "Acme"},
		{name: "not allowed", policy: "RefreshToken", tenant: "acme", want: ErrPolicyNotAllowedForTenant},
		{name: "unknown policy", policy: "Nope", tenant: "acme", want: ErrPolicyNotFound},
		{name: "unknown tenant", policy: "", tenant: "globex", want: ErrTenantNotFound},
		{name: "default tenant allows all", policy: "RefreshToken", tenant: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := store.Resolve(tc.policy, tc.tenant)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, res.Policy.Name)
			assert.NotEmpty(t, res.Tenant.Options.Issuer)
		})
	}
}

package goToken

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	DefaultPolicy           string                `yaml:"default_policy"`
	DefaultIssuer           string                `yaml:"default_issuer"`
	DefaultAudience         string                `yaml:"default_audience"`
	GlobalAllowedAlgorithms []string              `yaml:"global_allowed_algorithms"`
	TokenPolicies           map[string]filePolicy `yaml:"token_policies"`
	Tenants                 map[string]fileTenant `yaml:"tenants"`
	Metrics                 *fileMetrics          `yaml:"metrics"`
	Audit                   *fileAudit            `yaml:"audit"`
}

// Policy fields are pointers so that omitted properties take the built-in policy defaults.
type filePolicy struct {
	SigningAlgorithm *string `yaml:"signing_algorithm"`
	EncryptToken     *bool   `yaml:"encrypt_token"`
	ExpireTime       *string `yaml:"expire_time"`
	IncludeJwtID     *bool   `yaml:"include_jwt_id"`
	TypHeader        *string `yaml:"typ_header"`
}

type fileTenant struct {
	Issuer               string   `yaml:"issuer"`
	Audiences            []string `yaml:"audiences"`
	AllowedTokenPolicies []string `yaml:"allowed_token_policies"`
}

type fileMetrics struct {
	Enabled           bool `yaml:"enabled"`
	LatencyHistograms bool `yaml:"latency_histograms"`
}

type fileAudit struct {
	Enabled    bool  `yaml:"enabled"`
	BufferSize *int  `yaml:"buffer_size"`
	DropIfFull *bool `yaml:"drop_if_full"`
}

// LoadConfigFile reads a YAML configuration file. See ParseConfig.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, newError(KindConfiguration, "read config file", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML configuration document on top of DefaultConfig. Durations use Go
// syntax ("5m", "1h30m"). Unknown keys are rejected. The result is not validated; Builder.Build
// does that.
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, newError(KindConfiguration, "parse config", err)
	}

	cfg := DefaultConfig()
	if fc.DefaultPolicy != "" {
		cfg.DefaultPolicyName = fc.DefaultPolicy
	}
	cfg.DefaultIssuer = strings.TrimSpace(fc.DefaultIssuer)
	cfg.DefaultAudience = strings.TrimSpace(fc.DefaultAudience)
	if len(fc.GlobalAllowedAlgorithms) > 0 {
		cfg.GlobalAllowedAlgorithms = fc.GlobalAllowedAlgorithms
	}

	for name, fp := range fc.TokenPolicies {
		p, err := fp.toPolicy(name)
		if err != nil {
			return Config{}, err
		}
		for existing := range cfg.TokenPolicies {
			if strings.EqualFold(existing, name) {
				delete(cfg.TokenPolicies, existing)
			}
		}
		cfg.TokenPolicies[name] = p
	}

	for id, ft := range fc.Tenants {
		cfg.Tenants[id] = TenantOptions{
			Issuer:               ft.Issuer,
			Audiences:            ft.Audiences,
			AllowedTokenPolicies: ft.AllowedTokenPolicies,
		}
	}

	if fc.Metrics != nil {
		cfg.Metrics = MetricsConfig{
			Enabled:                 fc.Metrics.Enabled,
			EnableLatencyHistograms: fc.Metrics.LatencyHistograms,
		}
	}
	if fc.Audit != nil {
		cfg.Audit.Enabled = fc.Audit.Enabled
		if fc.Audit.BufferSize != nil {
			cfg.Audit.BufferSize = *fc.Audit.BufferSize
		}
		if fc.Audit.DropIfFull != nil {
			cfg.Audit.DropIfFull = *fc.Audit.DropIfFull
		}
	}

	return cfg, nil
}

func (fp filePolicy) toPolicy(name string) (TokenPolicy, error) {
	p := DefaultTokenPolicy()
	p.Name = name
	if fp.SigningAlgorithm != nil {
		p.SigningAlgorithm = *fp.SigningAlgorithm
	}
	if fp.EncryptToken != nil {
		p.EncryptToken = *fp.EncryptToken
	}
	if fp.ExpireTime != nil {
		d, err := time.ParseDuration(*fp.ExpireTime)
		if err != nil {
			return TokenPolicy{}, newError(KindConfiguration, fmt.Sprintf("token policy %q expire_time", name), err)
		}
		p.ExpireTime = d
	}
	if fp.IncludeJwtID != nil {
		p.IncludeJwtID = *fp.IncludeJwtID
	}
	if fp.TypHeader != nil {
		p.TypHeader = *fp.TypHeader
	}
	return p, nil
}

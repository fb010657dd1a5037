package goToken

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/keys"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	acmeIssuer   = "https://auth.acme.local"
	acmeAudience = "acme-api"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func acmeConfig() Config {
	cfg := DefaultConfig()
	cfg.Tenants = map[string]TenantOptions{
		"acme": {
			Issuer:               acmeIssuer,
			Audiences:            []string{acmeAudience},
			AllowedTokenPolicies: []string{DefaultPolicyName},
		},
	}
	return cfg
}

type testEnv struct {
	engine   *Engine
	clock    *fakeClock
	provider *keys.MemoryProvider
	key      *keys.KeyMaterial
}

func newES256Key(t *testing.T, id string, created time.Time) *keys.KeyMaterial {
	t.Helper()
	k, err := keys.Generate(jwt.ES256, keys.WithKeyID(id), keys.WithCreatedAt(created))
	require.NoError(t, err)
	return k
}

func newHS256Key(t *testing.T, id string, created time.Time) *keys.KeyMaterial {
	t.Helper()
	k, err := keys.Generate(jwt.HS256, keys.WithKeyID(id), keys.WithCreatedAt(created))
	require.NoError(t, err)
	return k
}

// newTestEnv builds an engine over an in-memory ES256 key "k1" and a fake clock at testNow.
// configure may adjust the builder before Build.
func newTestEnv(t *testing.T, cfg Config, configure ...func(*Builder)) *testEnv {
	t.Helper()

	clock := newFakeClock(testNow)
	key := newES256Key(t, "k1", testNow.Add(-time.Hour))
	provider, err := keys.NewMemoryProvider([]*keys.KeyMaterial{key}, keys.WithClock(clock.Now))
	require.NoError(t, err)

	b := New().
		WithConfig(cfg).
		WithKeyProvider(provider).
		WithClock(clock.Now).
		WithMetricsEnabled(true)
	for _, fn := range configure {
		fn(b)
	}

	engine, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, clock: clock, provider: provider, key: key}
}

func (e *testEnv) issue(t *testing.T, policy, tenant string) string {
	t.Helper()
	token, err := e.engine.NewToken(policy, tenant).WithSubject("user-42").Sign(context.Background())
	require.NoError(t, err)
	return token
}

type spySigner struct {
	calls atomic.Int64
	next  jwt.Signer
}

func (s *spySigner) Sign(ctx context.Context, alg string, header, claims map[string]any, key any) (string, error) {
	s.calls.Add(1)
	return s.next.Sign(ctx, alg, header, claims, key)
}

type spyProvider struct {
	keys.Provider
	currentCalls atomic.Int64
	byIDCalls    atomic.Int64
}

func (p *spyProvider) CurrentSigningKey(ctx context.Context, policyName, tenantID string) (*keys.KeyMaterial, error) {
	p.currentCalls.Add(1)
	return p.Provider.CurrentSigningKey(ctx, policyName, tenantID)
}

func (p *spyProvider) KeyByID(ctx context.Context, keyID, tenantID string) (*keys.KeyMaterial, error) {
	p.byIDCalls.Add(1)
	return p.Provider.KeyByID(ctx, keyID, tenantID)
}

// blockingProvider waits for ctx before answering, like a remote store that never responds.
type blockingProvider struct{}

func (blockingProvider) CurrentSigningKey(ctx context.Context, _, _ string) (*keys.KeyMaterial, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingProvider) KeyByID(ctx context.Context, _, _ string) (*keys.KeyMaterial, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type failingProvider struct {
	err error
}

func (p failingProvider) CurrentSigningKey(context.Context, string, string) (*keys.KeyMaterial, error) {
	return nil, p.err
}

func (p failingProvider) KeyByID(context.Context, string, string) (*keys.KeyMaterial, error) {
	return nil, p.err
}

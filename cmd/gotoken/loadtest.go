package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/keys"
	"github.com/MrEthical07/goToken/revocation"
)

type loadtestOptions struct {
	tenants     int
	tokens      int
	concurrency int
	ops         int
	alg         string
	revokeEvery int
}

func newLoadtestCmd(a *app) *cobra.Command {
	o := loadtestOptions{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure issue and validate throughput against the Redis key store",
		Long: `Seed one signing key per tenant in Redis, then run an issue phase and a validate phase.
Validation goes through the Redis revocation list. Without --redis-url an in-process
miniredis is used.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.tenants <= 0 || o.tokens <= 0 || o.concurrency <= 0 || o.ops <= 0 {
				return errors.New("tenants, tokens, concurrency and ops must be > 0")
			}
			if !jwt.IsSupported(o.alg) {
				return fmt.Errorf("unsupported algorithm %q", o.alg)
			}
			return runLoadtest(cmd.Context(), a, cmd.OutOrStdout(), o)
		},
	}

	cmd.Flags().IntVar(&o.tenants, "tenants", 8, "number of tenants to seed")
	cmd.Flags().IntVar(&o.tokens, "tokens", 10000, "tokens issued up front for the validate phase")
	cmd.Flags().IntVar(&o.concurrency, "concurrency", 64, "number of concurrent workers")
	cmd.Flags().IntVar(&o.ops, "ops", 100000, "operations per phase (issue + validate)")
	cmd.Flags().StringVar(&o.alg, "alg", jwt.ES256, "signing algorithm")
	cmd.Flags().IntVar(&o.revokeEvery, "revoke-every", 0, "revoke every n-th seeded token (0 disables)")
	return cmd
}

func runLoadtest(ctx context.Context, a *app, out io.Writer, o loadtestOptions) error {
	client, cleanup, err := loadtestRedis(ctx, a, out)
	if err != nil {
		return err
	}
	defer cleanup()

	prefix := fmt.Sprintf("%s:loadtest:%d", a.env.KeyPrefix, time.Now().UnixNano())
	provider := keys.NewRedisProvider(client, prefix)
	store := revocation.NewRedisStore(client, prefix)

	cfg := loadtestConfig(o)
	tenants := make([]string, 0, o.tenants)
	for i := 0; i < o.tenants; i++ {
		id := tenantName(i)
		k, err := keys.Generate(o.alg, keys.WithKeyID(fmt.Sprintf("%s-k1", id)))
		if err != nil {
			return err
		}
		if err := provider.Put(ctx, id, k); err != nil {
			return fmt.Errorf("seed key: %w", err)
		}
		tenants = append(tenants, id)
	}

	engine, err := goToken.New().
		WithConfig(cfg).
		WithKeyProvider(provider).
		WithValidators(goToken.NewRevocationValidator(store)).
		WithLogger(a.logger).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(out, "seeding %d tokens over %d tenants...\n", o.tokens, o.tenants)
	startSeed := time.Now()
	seeded := make([]seededToken, o.tokens)
	revoked := 0
	for i := range seeded {
		tenant := tenants[i%len(tenants)]
		jti := fmt.Sprintf("seed-%d", i)
		token, err := engine.NewToken("", tenant).
			WithSubject(fmt.Sprintf("user-%d", i)).
			WithClaim("jti", jti).
			Sign(ctx)
		if err != nil {
			return fmt.Errorf("seed token: %w", err)
		}
		seeded[i] = seededToken{tenant: tenant, token: token}
		if o.revokeEvery > 0 && i%o.revokeEvery == 0 {
			if err := store.Revoke(ctx, jti, time.Now().Add(time.Hour)); err != nil {
				return fmt.Errorf("seed revocation: %w", err)
			}
			seeded[i].revoked = true
			revoked++
		}
	}
	fmt.Fprintf(out, "seeded in %s (%d revoked)\n", time.Since(startSeed).Round(time.Millisecond), revoked)

	issueStats := runIssuePhase(ctx, engine, tenants, o.ops, o.concurrency)
	validateStats := runValidatePhase(ctx, engine, seeded, o.ops, o.concurrency)

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "issue", issueStats)
	printStats(out, "validate", validateStats)

	snap := engine.MetricsSnapshot()
	a.logger.Debug("loadtest metrics",
		zap.Uint64("issued", snap.Counters[goToken.MetricIssueSuccess]),
		zap.Uint64("validated", snap.Counters[goToken.MetricValidateSuccess]),
		zap.Uint64("rejected", snap.Counters[goToken.MetricValidateFailure]),
		zap.Uint64("revoked", snap.Counters[goToken.MetricTokenRevoked]),
	)
	return nil
}

type seededToken struct {
	tenant  string
	token   string
	revoked bool
}

func tenantName(i int) string { return fmt.Sprintf("tenant-%d", i) }

func loadtestConfig(o loadtestOptions) goToken.Config {
	cfg := goToken.DefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.GlobalAllowedAlgorithms = []string{o.alg}
	policy := cfg.TokenPolicies[goToken.DefaultPolicyName]
	policy.SigningAlgorithm = o.alg
	policy.IncludeJwtID = true
	policy.ExpireTime = time.Hour
	cfg.TokenPolicies[goToken.DefaultPolicyName] = policy

	cfg.Tenants = make(map[string]goToken.TenantOptions, o.tenants)
	for i := 0; i < o.tenants; i++ {
		id := tenantName(i)
		cfg.Tenants[id] = goToken.TenantOptions{
			Issuer:               "https://" + id + ".loadtest.local",
			Audiences:            []string{id + "-api"},
			AllowedTokenPolicies: []string{goToken.DefaultPolicyName},
		}
	}
	return cfg
}

// loadtestRedis uses the configured Redis, or starts a miniredis when none is set.
func loadtestRedis(ctx context.Context, a *app, out io.Writer) (redis.UniversalClient, func(), error) {
	client, err := a.redisClient(ctx)
	if err != nil {
		return nil, nil, err
	}
	if client != nil {
		fmt.Fprintf(out, "using redis at %s\n", a.env.RedisURL)
		return client, func() {}, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func runIssuePhase(ctx context.Context, engine *goToken.Engine, tenants []string, ops, concurrency int) phaseStats {
	return runPhase(ops, concurrency, 6151, func(r *rand.Rand, i int) bool {
		tenant := tenants[r.Intn(len(tenants))]
		_, err := engine.NewToken("", tenant).
			WithSubject(fmt.Sprintf("user-%d", i)).
			Sign(ctx)
		return err == nil
	})
}

// runValidatePhase counts a revoked token that is rejected as a success.
func runValidatePhase(ctx context.Context, engine *goToken.Engine, seeded []seededToken, ops, concurrency int) phaseStats {
	return runPhase(ops, concurrency, 7919, func(r *rand.Rand, _ int) bool {
		s := seeded[r.Intn(len(seeded))]
		_, err := engine.Validate(ctx, s.token, "", s.tenant)
		if s.revoked {
			return errors.Is(err, goToken.ErrTokenRevoked)
		}
		return err == nil
	})
}

func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand, i int) bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				ok := op(r, i)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

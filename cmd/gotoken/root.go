package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/keys"
	"github.com/MrEthical07/goToken/revocation"
)

// localIssuer is the implicit tenant used when no config file is given.
const localIssuer = "urn:gotoken:local"

type environment struct {
	ConfigFile       string `env:"GOTOKEN_CONFIG"`
	RedisURL         string `env:"GOTOKEN_REDIS_URL"`
	KeyPrefix        string `env:"GOTOKEN_KEY_PREFIX" envDefault:"gotoken"`
	RevocationPrefix string `env:"GOTOKEN_REVOCATION_PREFIX" envDefault:"gotoken"`
	LogLevel         string `env:"GOTOKEN_LOG_LEVEL" envDefault:"info"`
}

// app carries what PersistentPreRunE resolved for the subcommands.
type app struct {
	env    environment
	logger *zap.Logger
	redis  redis.UniversalClient
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var (
		configFlag   string
		redisFlag    string
		logLevelFlag string
	)

	root := &cobra.Command{
		Use:   "gotoken",
		Short: "Multi-tenant JWT issuance and validation",
		Long: `gotoken drives a goToken engine from the command line.

Configuration is read from GOTOKEN_* environment variables (a .env file in the working
directory is loaded first) and can be overridden with flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnvironment()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("config") {
				e.ConfigFile = configFlag
			}
			if cmd.Flags().Changed("redis-url") {
				e.RedisURL = redisFlag
			}
			if cmd.Flags().Changed("log-level") {
				e.LogLevel = logLevelFlag
			}
			a.env = e

			logger, err := newLogger(e.LogLevel)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	root.PersistentFlags().StringVar(&configFlag, "config", "", "YAML config file (env GOTOKEN_CONFIG)")
	root.PersistentFlags().StringVar(&redisFlag, "redis-url", "", "Redis URL for keys and revocations (env GOTOKEN_REDIS_URL)")
	root.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "Log level: debug, info, warn, error (env GOTOKEN_LOG_LEVEL)")

	root.AddCommand(
		newKeygenCmd(a),
		newIssueCmd(a),
		newValidateCmd(a),
		newRevokeCmd(a),
		newLoadtestCmd(a),
		newBenchcmpCmd(),
	)
	return root
}

func loadEnvironment() (environment, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return environment{}, fmt.Errorf("load .env: %w", err)
	}
	var e environment
	if err := env.Parse(&e); err != nil {
		return environment{}, fmt.Errorf("parse environment: %w", err)
	}
	return e, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// config loads the YAML file, or a single implicit tenant issuing for urn:gotoken:local.
func (a *app) config() (goToken.Config, error) {
	if a.env.ConfigFile == "" {
		cfg := goToken.DefaultConfig()
		cfg.DefaultIssuer = localIssuer
		cfg.DefaultAudience = localIssuer
		return cfg, nil
	}
	return goToken.LoadConfigFile(a.env.ConfigFile)
}

// redisClient connects lazily; it returns nil when no Redis URL is configured.
func (a *app) redisClient(ctx context.Context) (redis.UniversalClient, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	if a.env.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(a.env.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	a.redis = client
	a.logger.Debug("connected to redis", zap.String("addr", opts.Addr))
	return client, nil
}

func (a *app) requireRedis(ctx context.Context, command string) (redis.UniversalClient, error) {
	client, err := a.redisClient(ctx)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("%s needs Redis: set GOTOKEN_REDIS_URL or --redis-url", command)
	}
	return client, nil
}

// keySource picks the key provider: a PEM file when keyFile is set, otherwise the Redis key store.
func (a *app) keySource(ctx context.Context, keyFile, keyID, alg string) (keys.Provider, error) {
	if keyFile != "" {
		if keyID == "" {
			return nil, errors.New("--kid is required with --key")
		}
		data, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read key: %w", err)
		}
		handle, err := keys.ParsePEM(alg, data)
		if err != nil {
			return nil, fmt.Errorf("parse key: %w", err)
		}
		k, err := keys.NewKeyMaterial(handle, keyID, alg, time.Now(), time.Time{})
		if err != nil {
			return nil, err
		}
		return keys.NewMemoryProvider([]*keys.KeyMaterial{k})
	}

	client, err := a.redisClient(ctx)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("no key source: pass --key and --kid, or configure Redis")
	}
	return keys.NewRedisProvider(client, a.env.KeyPrefix), nil
}

// revocationStore returns the Redis deny list, or nil without Redis.
func (a *app) revocationStore(ctx context.Context) (revocation.Store, error) {
	client, err := a.redisClient(ctx)
	if err != nil || client == nil {
		return nil, err
	}
	return revocation.NewRedisStore(client, a.env.RevocationPrefix), nil
}

// policyAlgorithm resolves the signing algorithm of policyName in cfg.
func policyAlgorithm(cfg goToken.Config, policyName string) (string, error) {
	store, err := goToken.NewPolicyStore(cfg)
	if err != nil {
		return "", err
	}
	p, err := store.Policy(policyName)
	if err != nil {
		return "", err
	}
	return p.SigningAlgorithm, nil
}

func (a *app) buildEngine(ctx context.Context, cfg goToken.Config, provider keys.Provider) (*goToken.Engine, error) {
	store, err := a.revocationStore(ctx)
	if err != nil {
		return nil, err
	}
	b := goToken.New().
		WithConfig(cfg).
		WithKeyProvider(provider).
		WithLogger(a.logger)
	if store != nil {
		b.WithValidators(goToken.NewRevocationValidator(store))
	}
	return b.Build()
}

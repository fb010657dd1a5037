package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/keys"
)

func newKeygenCmd(a *app) *cobra.Command {
	var (
		alg       string
		keyID     string
		ttl       time.Duration
		out       string
		publicOut string
		publish   bool
		tenant    string
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key",
		Long: `Generate a signing key and write it as PEM (raw bytes for HMAC).

With --publish the key is also stored in the Redis key store, where issue and validate pick it
up. Published keys are scoped to --tenant, or global when it is empty.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !jwt.IsSupported(alg) {
				return fmt.Errorf("unsupported algorithm %q", alg)
			}
			opts := []keys.GenerateOption{keys.WithTTL(ttl)}
			if keyID != "" {
				opts = append(opts, keys.WithKeyID(keyID))
			}
			k, err := keys.Generate(alg, opts...)
			if err != nil {
				return err
			}

			private, err := keys.EncodePEM(k.Key())
			if err != nil {
				return err
			}
			if err := writeOutput(cmd, out, private); err != nil {
				return err
			}
			if publicOut != "" {
				if jwt.IsSymmetric(alg) {
					return fmt.Errorf("%s keys have no public half", alg)
				}
				public, err := keys.EncodePEM(k.VerificationKey())
				if err != nil {
					return err
				}
				if err := os.WriteFile(publicOut, public, 0o644); err != nil {
					return fmt.Errorf("write public key: %w", err)
				}
			}

			if publish {
				client, err := a.requireRedis(cmd.Context(), "keygen --publish")
				if err != nil {
					return err
				}
				if err := keys.NewRedisProvider(client, a.env.KeyPrefix).Put(cmd.Context(), tenant, k); err != nil {
					return fmt.Errorf("publish key: %w", err)
				}
			}

			a.logger.Info("key generated",
				zap.String("kid", k.KeyID()),
				zap.String("alg", k.Algorithm()),
				zap.Bool("published", publish),
				zap.String("tenant", tenant),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&alg, "alg", jwt.ES256, "Signing algorithm")
	cmd.Flags().StringVar(&keyID, "kid", "", "Key id (random when empty)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Key lifetime (0 never expires)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Private key output file (stdout when empty)")
	cmd.Flags().StringVar(&publicOut, "public-out", "", "Public key output file")
	cmd.Flags().BoolVar(&publish, "publish", false, "Store the key in the Redis key store")
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant scope for --publish")
	return cmd
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MrEthical07/goToken/revocation"
)

func newRevokeCmd(a *app) *cobra.Command {
	var (
		jti string
		ttl time.Duration
	)

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Put a token id on the Redis deny list",
		Long: `Put a token id on the Redis deny list. Engines built with a RevocationValidator over the
same Redis prefix reject the token until the window ends; use the token lifetime as --ttl.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if jti == "" {
				return errors.New("--jti is required")
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}
			client, err := a.requireRedis(cmd.Context(), "revoke")
			if err != nil {
				return err
			}
			until := time.Now().Add(ttl)
			if err := revocation.NewRedisStore(client, a.env.RevocationPrefix).Revoke(cmd.Context(), jti, until); err != nil {
				return err
			}
			a.logger.Info("token revoked", zap.String("jti", jti), zap.Time("until", until))
			return nil
		},
	}

	cmd.Flags().StringVar(&jti, "jti", "", "Token id to revoke")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Revocation window")
	return cmd
}

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newIssueCmd(a *app) *cobra.Command {
	var (
		policy   string
		tenant   string
		subject  string
		audience string
		ttl      time.Duration
		claims   []string
		keyFile  string
		keyID    string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed token",
		Example: `  gotoken issue --tenant acme --sub user-42 --claim role=admin
  gotoken issue --key es256.pem --kid k1 --sub svc --ttl 1m`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := a.config()
			if err != nil {
				return err
			}
			alg, err := policyAlgorithm(cfg, policy)
			if err != nil {
				return err
			}
			provider, err := a.keySource(ctx, keyFile, keyID, alg)
			if err != nil {
				return err
			}
			engine, err := a.buildEngine(ctx, cfg, provider)
			if err != nil {
				return err
			}
			defer engine.Close()

			custom, err := parseClaims(claims)
			if err != nil {
				return err
			}

			token, err := engine.NewToken(policy, tenant).
				WithSubject(subject).
				WithClaims(custom).
				WithAudience(audience).
				ExpiresIn(ttl).
				Sign(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "", "Token policy (default policy when empty)")
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant id")
	cmd.Flags().StringVar(&subject, "sub", "", "Subject claim")
	cmd.Flags().StringVar(&audience, "aud", "", "Audience override")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Lifetime override")
	cmd.Flags().StringArrayVar(&claims, "claim", nil, "Custom claim name=value; JSON values are decoded")
	cmd.Flags().StringVar(&keyFile, "key", "", "PEM private key file instead of the Redis key store")
	cmd.Flags().StringVar(&keyID, "kid", "", "Key id for --key")
	return cmd
}

// parseClaims turns name=value pairs into claims. Values that parse as JSON keep their type.
func parseClaims(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("claim %q: want name=value", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[name] = v
	}
	return out, nil
}

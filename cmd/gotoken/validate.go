package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	goToken "github.com/MrEthical07/goToken"
)

type principalView struct {
	Subject   string         `json:"sub,omitempty"`
	Issuer    string         `json:"iss"`
	Audience  []string       `json:"aud"`
	TokenID   string         `json:"jti,omitempty"`
	KeyID     string         `json:"kid"`
	Tenant    string         `json:"tenant,omitempty"`
	Policy    string         `json:"policy"`
	Type      string         `json:"typ,omitempty"`
	IssuedAt  time.Time      `json:"issued_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	Claims    map[string]any `json:"claims"`
}

func viewOf(p *goToken.Principal) principalView {
	return principalView{
		Subject:   p.Subject,
		Issuer:    p.Issuer,
		Audience:  p.Audience,
		TokenID:   p.ID,
		KeyID:     p.KeyID,
		Tenant:    p.TenantID,
		Policy:    p.Policy,
		Type:      p.TokenType(),
		IssuedAt:  p.IssuedAt,
		ExpiresAt: p.ExpiresAt,
		Claims:    p.Claims,
	}
}

func newValidateCmd(a *app) *cobra.Command {
	var (
		policy  string
		tenant  string
		keyFile string
		keyID   string
	)

	cmd := &cobra.Command{
		Use:   "validate [token|-]",
		Short: "Validate a token and print its principal as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			token, err := readToken(cmd, args)
			if err != nil {
				return err
			}

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

			p, err := engine.Validate(ctx, token, policy, tenant)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(viewOf(p))
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "", "Token policy (default policy when empty)")
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant id")
	cmd.Flags().StringVar(&keyFile, "key", "", "PEM key file (public or private) instead of the Redis key store")
	cmd.Flags().StringVar(&keyID, "kid", "", "Key id for --key")
	return cmd
}

// readToken takes the token from the first argument, or from stdin when it is "-" or absent.
func readToken(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return strings.TrimSpace(args[0]), nil
	}
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no token given")
	}
	return strings.TrimSpace(scanner.Text()), nil
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "kuruma/internal/jwt_token"
	"kuruma/internal/platform/config"
	id "kuruma/pkg/domain"
)

func newTokenCmd() *cobra.Command {
	var (
		account string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for an account",
		Long: `Mint an HS256 access token using JWT_SIGNING_KEY, JWT_ISSUER and
JWT_AUDIENCE from the environment (or .env).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accountID, err := id.ParseAccountID(account)
			if err != nil {
				return fmt.Errorf("invalid --account: %w", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.JWT.TokenTTL
			}
			svc := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)
			token, err := svc.GenerateAccessToken(accountID, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "account ID (UUID)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime; defaults to JWT_TOKEN_TTL")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

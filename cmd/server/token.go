package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dkeye/songroom/internal/config"
	"github.com/dkeye/songroom/internal/domain"
	"github.com/dkeye/songroom/internal/identity"
)

func tokenCmd() *cobra.Command {
	var (
		sub string
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token with the configured secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.TokenTTL
			}
			if sub == "" {
				sub = uuid.NewString()
			}
			tokens, err := identity.NewTokens(cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			tok, err := tokens.Issue(domain.UserID(sub))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "user id (random when empty)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (config token_ttl when zero)")
	return cmd
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/leadwireai/leadwire/internal/auth"
)

var (
	tokenSubject string
	tokenExpires time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API token for the message endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is not configured")
		}
		expires := tokenExpires
		if expires <= 0 {
			parsed, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
			if err != nil {
				return fmt.Errorf("parse auth.jwt_expires_in: %w", err)
			}
			expires = parsed
		}
		signed, expiresAt, err := auth.GenerateToken(tokenSubject, cfg.Auth.JWTSecret, expires)
		if err != nil {
			return err
		}
		fmt.Println(signed)
		fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "ops", "token subject claim")
	tokenCmd.Flags().DurationVar(&tokenExpires, "expires", 0, "token lifetime (default auth.jwt_expires_in)")
}

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/meganet/portal/internal/authz"
)

var (
	tokenUser     string
	tokenRole     string
	tokenUsername string
	tokenEmail    string
	tokenTTL      time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for testing the API",
	Long: `Signs a token with the configured auth.jwt_secret carrying the given user
and role. Send it as "Authorization: Bearer <token>".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is not set in %s", cfgFile)
		}

		ttl := cfg.Auth.TokenTTL
		if cmd.Flags().Changed("ttl") {
			ttl = tokenTTL
		}
		token, err := authz.NewTokens(cfg.Auth.JWTSecret, ttl).Issue(tokenUser, tokenUsername, tokenEmail, tokenRole)
		if err != nil {
			return fmt.Errorf("signing token: %w", err)
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "", "role id (required)")
	tokenCmd.Flags().StringVar(&tokenUsername, "username", "", "username claim")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	tokenCmd.MarkFlagRequired("user")
	tokenCmd.MarkFlagRequired("role")
	rootCmd.AddCommand(tokenCmd)
}

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"quizboard-service/internal/auth"
	"quizboard-service/internal/config"
)

// NewTokenCmd mints a bearer token for a user id.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		userID int64
		admin  bool
		ttl    string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user must be a positive user id")
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			lifetime := config.TTLDuration(ttl, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))
			token, err := auth.NewAuthenticator([]byte(cfg.Auth.Secret), cfg.Auth.Issuer).Issue(userID, admin, lifetime)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id to put in the token subject")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant administrator access")
	cmd.Flags().StringVar(&ttl, "ttl", "", "token lifetime, e.g. 12h (defaults to auth.tokenTtl)")
	return cmd
}

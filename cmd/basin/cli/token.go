package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		userID  string
		tenants []string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a session token",
		Long: `Issue a JWT bearer token signed with auth.jwt_secret. The subject is the user id
stamped into audit fields; tenants restrict the namespaces the token may access.`,
		Example: `  basin token --user editor-1 --tenant acme --ttl 2h
  curl -H "Authorization: Bearer $(basin token --user admin)" localhost:8080/api/v1/system/tenants`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not set; set it in basin.yaml or BASIN_AUTH_JWT_SECRET")
			}
			authSvc := newAuthService(cfg, newLogger(cfg.Logging, io.Discard, false))
			token, err := authSvc.IssueJWT(cmd.Context(), userID, tenants, ttl)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id carried as the token subject (required)")
	cmd.Flags().StringSliceVar(&tenants, "tenant", nil, "Tenant the token may access (repeatable; omit for all)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("user")

	return cmd
}

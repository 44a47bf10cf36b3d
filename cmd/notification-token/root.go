package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/notification/internal/config"
	"github.com/nao1215/notification/pkg/middleware"
)

func newRootCmd() *cobra.Command {
	var (
		secret string
		userID int64
		role   string
	)

	cmd := &cobra.Command{
		Use:   "notification-token",
		Short: "Issue a bearer token for the notification service",
		Long:  "notification-token signs an HS256 token carrying user_id and role, for local testing of the notification API.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID <= 0 {
				return errors.New("--user-id must be a positive integer")
			}
			r := middleware.Role(role)
			if r != middleware.RoleUser && r != middleware.RoleAdmin {
				return fmt.Errorf("--role must be %s or %s, got %q", middleware.RoleUser, middleware.RoleAdmin, role)
			}

			token, err := middleware.GenerateJWT(secret, userID, r)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultSecret := os.Getenv("JWT_SECRET")
	if defaultSecret == "" {
		defaultSecret = config.DefaultJWTSecret
	}
	cmd.Flags().StringVar(&secret, "secret", defaultSecret, "HS256 signing secret (default: $JWT_SECRET)")
	cmd.Flags().Int64Var(&userID, "user-id", 0, "user id to embed in the token")
	cmd.Flags().StringVar(&role, "role", string(middleware.RoleUser), "role to embed in the token (USER or ADMIN)")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"unitlens/pkg/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	var user, role string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a JWT signed with the configured secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.JWTSecret == "" {
				return fmt.Errorf("jwt_secret is not configured")
			}
			r, err := auth.ParseRole(role)
			if err != nil {
				return fmt.Errorf("%w: %q", err, role)
			}
			svc, err := newJWTService(a.cfg.JWTSecret, a.cfg.JWTIssuer)
			if err != nil {
				return err
			}
			token, err := svc.GenerateToken(user, r, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "subject of the token")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleViewer), "viewer, operator or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (0 uses the default of one hour)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

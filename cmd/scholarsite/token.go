package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scholarsite/scholarsite/pkg/auth"
)

func newTokenCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an admin token signed with AUTH_SECRET",
		Long: `Issue an admin bearer token without going through the login route, for
scripts and local testing. The token is valid for 7 days.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if email == "" {
				email = cfg.Auth.AdminEmail
			}
			if email == "" {
				return errors.New("no email: set AUTH_ADMIN_EMAIL or pass --email")
			}

			issuer, err := auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.Issuer)
			if err != nil {
				return err
			}
			token, err := issuer.Issue(auth.User{Email: email, Role: auth.RoleAdmin})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "subject email (defaults to AUTH_ADMIN_EMAIL)")
	return cmd
}

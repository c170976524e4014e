package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agencydesk/mdconsole/pkg/auth"
)

func newLoginCmd(a *app) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a session token for later commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.session()
			if err != nil {
				return err
			}
			if err := session.Save(token); err != nil {
				return err
			}
			claims, err := auth.ParseUnverified(token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (company %d)\n", displayUser(claims), claims.CompID)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Session token issued by the console (required)")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.session()
			if err != nil {
				return err
			}
			session.Invalidate(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func displayUser(claims *auth.SessionClaims) string {
	if claims.Name != "" {
		return claims.Name
	}
	return fmt.Sprintf("user %d", claims.UserID)
}

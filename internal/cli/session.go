package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in and print an access token",
		Long: `Log in with --email and --password and print the access token.

Export it as MEALSYNC_TOKEN (or pass --token) so later commands reuse the
session without sending the password again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.Email == "" || rootOpts.Password == "" {
				return NewExitError(ExitCommandError, "login needs --email and --password")
			}
			sess, err := rootOpts.App.Session.Login(cmd.Context(), rootOpts.Email, rootOpts.Password)
			if err != nil {
				return err
			}
			data := map[string]any{
				"user":         sess.User,
				"access_token": sess.AccessToken,
				"expires_at":   sess.ExpiresAt,
			}
			return rootOpts.Out.Success(data, func(w io.Writer) {
				fmt.Fprintf(w, "Logged in as %s\n", sess.User.Email)
				fmt.Fprintf(w, "export MEALSYNC_TOKEN=%s\n", sess.AccessToken)
			})
		},
	}
}

func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the current access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := rootOpts.authenticate(ctx); err != nil {
				return err
			}
			if err := rootOpts.App.Session.Logout(ctx); err != nil {
				return err
			}
			return rootOpts.Out.Success(map[string]any{"authenticated": false}, func(w io.Writer) {
				fmt.Fprintln(w, "Logged out")
			})
		},
	}
}

func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user of the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := rootOpts.authenticate(ctx); err != nil {
				return err
			}
			user, err := rootOpts.App.Session.UserInfo(ctx)
			if err != nil {
				return err
			}
			return rootOpts.Out.Success(user, func(w io.Writer) {
				fmt.Fprintf(w, "%s (%s)\n", user.Email, user.ID)
			})
		},
	}
}

func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	var confirm string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Create an account with --email and --password.

The password needs at least 8 characters including a digit and must be
repeated with --confirm.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := rootOpts.App.Session.Register(cmd.Context(), rootOpts.Email, rootOpts.Password, confirm)
			if err != nil {
				return err
			}
			return rootOpts.Out.Success(user, func(w io.Writer) {
				fmt.Fprintf(w, "Registered %s\n", user.Email)
			})
		},
	}
	cmd.Flags().StringVar(&confirm, "confirm", "", "password again")
	return cmd
}

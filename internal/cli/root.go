// Package cli implements the mealsync command line client.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mmynk/mealsync/internal/app"
	"github.com/mmynk/mealsync/internal/config"
	"github.com/mmynk/mealsync/pkg/logging"
)

// RootOptions holds global flags and the App built from them.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	EnvFile    string
	BackendURL string
	Email      string
	Password   string
	Token      string

	App *app.App
	Out *OutputFormatter
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the mealsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "mealsync",
		Short:         "mealsync - recipes kept in sync with a remote backend",
		Long:          "Browse, author and share recipes stored on a mealsync backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.App != nil {
				opts.App.Close()
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging on stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load")
	cmd.PersistentFlags().StringVar(&opts.BackendURL, "backend", "", "backend URL (default $MEALSYNC_BACKEND_URL)")
	cmd.PersistentFlags().StringVar(&opts.Email, "email", "", "account email (default $MEALSYNC_EMAIL)")
	cmd.PersistentFlags().StringVar(&opts.Password, "password", "", "account password (default $MEALSYNC_PASSWORD)")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "access token from login (default $MEALSYNC_TOKEN)")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewRecipesCommand(opts))
	cmd.AddCommand(NewIngredientsCommand(opts))
	cmd.AddCommand(NewSharedCommand(opts))
	cmd.AddCommand(NewPDFCommand(opts))

	return cmd
}

func (o *RootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.EnvFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if o.BackendURL != "" {
		cfg.BackendURL = o.BackendURL
	}
	if o.Email == "" {
		o.Email = cfg.Email
	}
	if o.Password == "" {
		o.Password = cfg.Password
	}
	if o.Token == "" {
		o.Token = cfg.Token
	}

	level := cfg.LogLevel
	if o.Verbose {
		level = slog.LevelDebug
	}
	logger := logging.New(cmd.ErrOrStderr(), level)

	o.App = app.New(cfg, logger)
	o.Out = &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
	return nil
}

// authenticate establishes a session from --token or, failing that, from
// --email and --password.
func (o *RootOptions) authenticate(ctx context.Context) error {
	if o.Token != "" {
		return o.App.Resume(ctx, o.Token)
	}
	if o.Email == "" || o.Password == "" {
		return NewExitError(ExitAuthError, "this command needs a session: pass --token, or --email and --password")
	}
	_, err := o.App.Session.Login(ctx, o.Email, o.Password)
	return err
}

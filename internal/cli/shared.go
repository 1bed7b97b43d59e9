package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

func NewSharedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shared",
		Short: "Recipes shared between users",
	}
	cmd.AddCommand(newSharedListCommand(rootOpts))
	cmd.AddCommand(newSharedAddCommand(rootOpts))
	cmd.AddCommand(newSharedStepCommand(rootOpts))
	return cmd
}

func newSharedListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List shared recipes with their progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			shared, err := rootOpts.App.Sharing.List(cmd.Context())
			if err != nil {
				return err
			}
			return rootOpts.Out.Success(shared, func(w io.Writer) {
				if len(shared) == 0 {
					fmt.Fprintln(w, "No shared recipes")
					return
				}
				for _, s := range shared {
					title := s.Meal
					if s.Recipe != nil {
						title = s.Recipe.StrMeal
					}
					fmt.Fprintf(w, "%d  %s  step %d (%d events)\n", s.ID, title, s.LastStep(), len(s.Events))
				}
			})
		},
	}
}

func newSharedAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <recipe-id>",
		Short: "Share a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := rootOpts.authenticate(ctx); err != nil {
				return err
			}
			if err := rootOpts.App.Sharing.Share(ctx, args[0]); err != nil {
				return err
			}
			return rootOpts.Out.Success(map[string]any{"meal": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "Shared %s\n", args[0])
			})
		},
	}
}

func newSharedStepCommand(rootOpts *RootOptions) *cobra.Command {
	var step int
	cmd := &cobra.Command{
		Use:   "step <shared-recipe-id>",
		Short: "Record a cooking step on a shared recipe",
		Long: `Record a step as the current user. Without --step, the step after the
last recorded one is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid shared recipe id", err)
			}
			if err := rootOpts.authenticate(ctx); err != nil {
				return err
			}
			user := rootOpts.App.Session.CurrentUser()
			if user == nil {
				return NewExitError(ExitAuthError, "no session")
			}

			if cmd.Flags().Changed("step") {
				err = rootOpts.App.Sharing.RecordStep(ctx, id, step, user.ID)
			} else {
				step, err = rootOpts.App.Sharing.Advance(ctx, id, user.ID)
			}
			if err != nil {
				return err
			}
			return rootOpts.Out.Success(map[string]any{"shared_recipe": id, "step": step}, func(w io.Writer) {
				fmt.Fprintf(w, "Recorded step %d on %d\n", step, id)
			})
		},
	}
	cmd.Flags().IntVar(&step, "step", 0, "step number to record")
	return cmd
}

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmynk/mealsync/internal/models"
	"github.com/mmynk/mealsync/internal/recipes"
)

func NewRecipesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipes",
		Short: "Browse and author recipes",
	}
	cmd.AddCommand(newRecipesListCommand(rootOpts))
	cmd.AddCommand(newRecipesSearchCommand(rootOpts))
	cmd.AddCommand(newRecipesShowCommand(rootOpts))
	cmd.AddCommand(newRecipesCreateCommand(rootOpts))
	cmd.AddCommand(newRecipesEditCommand(rootOpts))
	return cmd
}

func printRecipes(w io.Writer, rs []models.Recipe) {
	if len(rs) == 0 {
		fmt.Fprintln(w, "No recipes")
		return
	}
	for _, r := range rs {
		fmt.Fprintf(w, "%s  %s\n", r.IDMeal, r.StrMeal)
	}
}

func newRecipesListCommand(rootOpts *RootOptions) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recipes, optionally filtered by title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := rootOpts.App.Catalog.List(cmd.Context(), query)
			if err != nil {
				return err
			}
			return rootOpts.Out.Success(rs, func(w io.Writer) { printRecipes(w, rs) })
		},
	}
	cmd.Flags().StringVarP(&query, "search", "s", "", "case-insensitive title filter")
	return cmd
}

func newRecipesSearchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search",
		Short: "Search interactively, one query per input line",
		Long: `Read search text from stdin, one line per keystroke, and print the
matching recipes once typing pauses. Repeated queries are not searched again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), rootOpts, cmd.InOrStdin())
		},
	}
}

type searchResult struct {
	query   string
	recipes []models.Recipe
	err     error
}

func runSearch(ctx context.Context, rootOpts *RootOptions, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a := rootOpts.App

	results := make(chan searchResult, 1)
	stop := a.Catalog.Follow(ctx, a.Search, func(q string, rs []models.Recipe, err error) {
		select {
		case results <- searchResult{q, rs, err}:
		case <-ctx.Done():
		}
	})
	defer stop()

	lines := make(chan string)
	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimRight(scanner.Text(), "\r"):
			case <-ctx.Done():
				return
			}
		}
	}()
	a.Search.Attach(ctx, lines)

	// After input ends, wait for the last query to settle and its result to land.
	grace := 2*a.Search.Window() + time.Second
	var idle <-chan time.Time
	done := inputDone
	for {
		select {
		case r := <-results:
			if r.err != nil {
				return r.err
			}
			if err := rootOpts.Out.Success(map[string]any{"query": r.query, "recipes": r.recipes}, func(w io.Writer) {
				fmt.Fprintf(w, "> %s\n", r.query)
				printRecipes(w, r.recipes)
			}); err != nil {
				return err
			}
			if done == nil {
				idle = time.After(grace)
			}
		case <-done:
			done = nil
			idle = time.After(grace)
		case <-idle:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func newRecipesShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <recipe-id>",
		Short: "Show a recipe with its ingredients",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := rootOpts.App
			r, err := a.Catalog.Get(ctx, args[0])
			if err != nil {
				return err
			}
			seq, err := a.Ingredients.Resolve(ctx, r.IDIngredients)
			if err != nil {
				return err
			}
			byID := make(map[string]models.Ingredient)
			for ing := range seq {
				byID[ing.IDIngredient] = ing
			}

			ings := make([]ingredientView, 0, len(r.IDIngredients))
			for _, id := range r.IngredientIDs() {
				ing, ok := byID[id]
				if !ok {
					ing = models.Ingredient{IDIngredient: id}
				}
				ings = append(ings, viewIngredient(ing))
			}
			data := map[string]any{"recipe": r, "ingredients": ings, "has_document": r.PDF != ""}
			return rootOpts.Out.Success(data, func(w io.Writer) {
				fmt.Fprintf(w, "%s\n%s\n\n%s\n\n", r.StrMeal, strings.Repeat("=", len(r.StrMeal)), r.StrInstructions)
				for _, ing := range ings {
					fmt.Fprintf(w, "- %s\n", ing.text())
				}
				if r.PDF != "" {
					fmt.Fprintf(w, "\nDocument attached (%s)\n", r.MimePDF)
				}
			})
		},
	}
}

type draftFlags struct {
	title        string
	instructions string
	ingredients  []string
	remove       []int
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "recipe title")
	cmd.Flags().StringVar(&f.instructions, "instructions", "", "preparation steps")
	cmd.Flags().StringArrayVarP(&f.ingredients, "ingredient", "i", nil, "ingredient id to append (repeatable)")
}

// apply writes the flags that were set into the form.
func (f *draftFlags) apply(cmd *cobra.Command, form *recipes.Coordinator) error {
	if cmd.Flags().Changed("title") {
		if err := form.SetTitle(f.title); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("instructions") {
		if err := form.SetInstructions(f.instructions); err != nil {
			return err
		}
	}
	// highest index first so earlier removals do not shift later ones
	remove := slices.Clone(f.remove)
	slices.Sort(remove)
	remove = slices.Compact(remove)
	for i := len(remove) - 1; i >= 0; i-- {
		if err := form.RemoveIngredientSlot(remove[i]); err != nil {
			return WrapExitError(ExitCommandError, "cannot remove ingredient", err)
		}
	}
	for _, id := range f.ingredients {
		idx, err := form.AddIngredientSlot()
		if err != nil {
			return err
		}
		if err := form.SetIngredient(idx, id); err != nil {
			return err
		}
	}
	return nil
}

func submit(cmd *cobra.Command, rootOpts *RootOptions, form *recipes.Coordinator) error {
	r, err := form.Submit(cmd.Context())
	if err != nil {
		return err
	}
	return rootOpts.Out.Success(r, func(w io.Writer) {
		fmt.Fprintf(w, "Saved %s  %s\n", r.IDMeal, r.StrMeal)
	})
}

func newRecipesCreateCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &draftFlags{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a recipe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.authenticate(cmd.Context()); err != nil {
				return err
			}
			form := rootOpts.App.NewRecipeForm()
			if err := flags.apply(cmd, form); err != nil {
				return err
			}
			return submit(cmd, rootOpts, form)
		},
	}
	flags.register(cmd)
	return cmd
}

func newRecipesEditCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &draftFlags{}
	cmd := &cobra.Command{
		Use:   "edit <recipe-id>",
		Short: "Edit a recipe",
		Long: `Load a recipe, apply the given changes and save it.

--remove-ingredient takes positions as shown by "recipes show", starting at 0,
and is applied before new ingredients are appended.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := rootOpts.authenticate(ctx); err != nil {
				return err
			}
			form := rootOpts.App.NewRecipeForm()
			if err := form.Load(ctx, args[0]); err != nil {
				return err
			}
			if err := flags.apply(cmd, form); err != nil {
				return err
			}
			return submit(cmd, rootOpts, form)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntSliceVar(&flags.remove, "remove-ingredient", nil, "ingredient position to remove (repeatable)")
	return cmd
}

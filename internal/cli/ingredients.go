package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmynk/mealsync/internal/models"
)

type ingredientView struct {
	ID    string `json:"idIngredient"`
	Name  string `json:"strIngredient,omitempty"`
	Image string `json:"image,omitempty"`
	Type  string `json:"type,omitempty"`
	Size  int    `json:"size,omitempty"`
}

func viewIngredient(ing models.Ingredient) ingredientView {
	v := ingredientView{ID: ing.IDIngredient, Name: ing.StrIngredient}
	if ing.Image != nil {
		v.Image = ing.Image.URL
		v.Type = ing.Image.MIMEType
		v.Size = ing.Image.Size()
	}
	return v
}

func (v ingredientView) text() string {
	name := v.Name
	if name == "" {
		name = "(unknown)"
	}
	if v.Image == "" {
		return fmt.Sprintf("%s  %s  no image", v.ID, name)
	}
	return fmt.Sprintf("%s  %s  %s, %d bytes", v.ID, name, v.Type, v.Size)
}

func NewIngredientsCommand(rootOpts *RootOptions) *cobra.Command {
	var saveDir string
	cmd := &cobra.Command{
		Use:   "ingredients <ingredient-id>...",
		Short: "Resolve ingredients and their images",
		Long: `Fetch the named ingredients and download their images concurrently.
Results are printed as each image arrives. With --save-dir, images are
written there as <ingredient-id><ext>.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := rootOpts.App.Ingredients.Resolve(cmd.Context(), args)
			if err != nil {
				return err
			}
			var views []ingredientView
			for ing := range seq {
				if saveDir != "" && ing.Image != nil {
					if err := saveImage(saveDir, ing); err != nil {
						return err
					}
				}
				v := viewIngredient(ing)
				views = append(views, v)
				if rootOpts.Format == "text" {
					fmt.Fprintln(cmd.OutOrStdout(), v.text())
				}
			}
			if rootOpts.Format == "text" {
				if len(views) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No ingredients")
				}
				return nil
			}
			slices.SortFunc(views, func(a, b ingredientView) int { return strings.Compare(a.ID, b.ID) })
			return rootOpts.Out.Success(views, nil)
		},
	}
	cmd.Flags().StringVar(&saveDir, "save-dir", "", "directory to write images to")
	return cmd
}

func saveImage(dir string, ing models.Ingredient) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return WrapExitError(ExitCommandError, "cannot create image directory", err)
	}
	ext := filepath.Ext(ing.StrStorageImg)
	path := filepath.Join(dir, filepath.Base(ing.IDIngredient)+ext)
	if err := os.WriteFile(path, ing.Image.Bytes(), 0o644); err != nil {
		return WrapExitError(ExitCommandError, "cannot write image", err)
	}
	return nil
}

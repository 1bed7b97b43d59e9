package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmynk/mealsync/internal/codec"
	"github.com/mmynk/mealsync/internal/recipes"
)

func NewPDFCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdf",
		Short: "Recipe documents",
	}
	cmd.AddCommand(newPDFAttachCommand(rootOpts))
	cmd.AddCommand(newPDFURICommand(rootOpts))
	cmd.AddCommand(newPDFSaveCommand(rootOpts))
	return cmd
}

func newPDFAttachCommand(rootOpts *RootOptions) *cobra.Command {
	var mimeType string
	cmd := &cobra.Command{
		Use:   "attach <recipe-id> <file>",
		Short: "Attach a document to a recipe",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := os.ReadFile(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "cannot read document", err)
			}
			if err := rootOpts.authenticate(ctx); err != nil {
				return err
			}
			if err := rootOpts.App.Catalog.AttachFile(ctx, args[0], data, mimeType); err != nil {
				return err
			}
			return rootOpts.Out.Success(map[string]any{"idMeal": args[0], "size": len(data)}, func(w io.Writer) {
				fmt.Fprintf(w, "Attached %s (%d bytes) to %s\n", args[1], len(data), args[0])
			})
		},
	}
	cmd.Flags().StringVar(&mimeType, "type", "", "MIME type (default: detected)")
	return cmd
}

func newPDFURICommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "uri <recipe-id>",
		Short: "Print the document of a recipe as a data URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rootOpts.App.Catalog.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			uri, err := recipes.DataURI(r)
			if err != nil {
				return WrapExitError(ExitFailure, "no document on "+args[0], err)
			}
			return rootOpts.Out.Success(map[string]any{"uri": uri}, func(w io.Writer) {
				fmt.Fprintln(w, uri)
			})
		},
	}
}

func newPDFSaveCommand(rootOpts *RootOptions) *cobra.Command {
	var object bool
	cmd := &cobra.Command{
		Use:   "save <recipe-id> <file>",
		Short: "Write the document of a recipe to a file",
		Long: `Write the document of a recipe to a file. With --object, the pdf column
names an object in the recipes bucket, which is downloaded instead of decoded.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := rootOpts.App.Catalog.Get(ctx, args[0])
			if err != nil {
				return err
			}
			var h *codec.Handle
			if object {
				h, err = rootOpts.App.Catalog.Download(ctx, r)
			} else {
				h, err = recipes.Handle(r)
			}
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], h.Bytes(), 0o644); err != nil {
				return WrapExitError(ExitCommandError, "cannot write document", err)
			}
			return rootOpts.Out.Success(map[string]any{"file": args[1], "type": h.MIMEType, "size": h.Size()}, func(w io.Writer) {
				fmt.Fprintf(w, "Wrote %s (%s, %d bytes)\n", args[1], h.MIMEType, h.Size())
			})
		},
	}
	cmd.Flags().BoolVar(&object, "object", false, "download from the object store")
	return cmd
}

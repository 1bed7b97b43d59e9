package recipes

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mmynk/mealsync/internal/codec"
	"github.com/mmynk/mealsync/internal/models"
	"github.com/mmynk/mealsync/internal/remote"
)

// DefaultDocumentType is assumed for documents stored without a MIME type.
const DefaultDocumentType = "application/pdf"

var ErrNoDocument = errors.New("recipe has no document")

func documentType(r models.Recipe) string {
	if r.MimePDF != "" {
		return r.MimePDF
	}
	return DefaultDocumentType
}

// DataURI renders the stored document of r as a data URI.
func DataURI(r models.Recipe) (string, error) {
	if r.PDF == "" {
		return "", ErrNoDocument
	}
	return codec.DataURI(r.PDF, documentType(r)), nil
}

// Handle decodes the stored document of r into a displayable handle.
func Handle(r models.Recipe) (*codec.Handle, error) {
	if r.PDF == "" {
		return nil, ErrNoDocument
	}
	data, err := codec.FromBase64(r.PDF)
	if err != nil {
		return nil, fmt.Errorf("recipe %s: %w", r.IDMeal, err)
	}
	return codec.ToDisplayableReference(data, documentType(r)), nil
}

// Download fetches a document stored as an object in the recipes bucket,
// for rows whose pdf column holds a filename rather than the payload.
func (c *Catalog) Download(ctx context.Context, r models.Recipe) (*codec.Handle, error) {
	if r.PDF == "" {
		return nil, ErrNoDocument
	}
	data, err := c.gw.Download(ctx, models.BucketRecipes, r.PDF)
	if err != nil {
		return nil, err
	}
	mimeType := r.MimePDF
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return codec.ToDisplayableReference(data, mimeType), nil
}

// Attach stores the document carried by dataURL on recipe id.
func (c *Catalog) Attach(ctx context.Context, id, dataURL string) error {
	b64, mimeType, err := codec.ParseDataURI(dataURL)
	if err != nil {
		return &remote.Error{Kind: remote.ErrValidation, Op: "attach document", Message: err.Error(), Err: err}
	}
	if _, err := codec.FromBase64(b64); err != nil {
		return &remote.Error{Kind: remote.ErrValidation, Op: "attach document", Message: err.Error(), Err: err}
	}
	if err := c.gw.Update(ctx, models.TableMeals, models.ColumnIDMeal, id, remote.Row{
		"pdf":     b64,
		"mimepdf": mimeType,
	}); err != nil {
		return err
	}
	c.logger.Info("Document attached", "id", id, "type", mimeType)
	return nil
}

// AttachFile stores data as the document of recipe id.
func (c *Catalog) AttachFile(ctx context.Context, id string, data []byte, mimeType string) error {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return c.Attach(ctx, id, codec.DataURI(codec.ToBase64(data), mimeType))
}

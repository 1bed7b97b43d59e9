package models

import "github.com/mmynk/mealsync/internal/codec"

// Ingredient represents a row of the ingredients table.
type Ingredient struct {
	// IDIngredient is the unique identifier for the ingredient.
	IDIngredient string `json:"idIngredient"`

	// StrIngredient is the display name.
	StrIngredient string `json:"strIngredient"`

	// StrStorageImg is the path of the ingredient image in the recipes bucket.
	StrStorageImg string `json:"strStorageimg"`

	// Image is the locally renderable image, set only after resolution.
	// Never persisted.
	Image *codec.Handle `json:"-"`
}

// Resolved reports whether the image has been resolved.
func (i *Ingredient) Resolved() bool {
	return i.Image != nil
}

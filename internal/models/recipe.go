package models

// Recipe represents a row of the meals table.
type Recipe struct {
	// IDMeal is the unique identifier for the recipe (UUID format, generated
	// client-side on creation).
	IDMeal string `json:"idMeal"`

	// StrMeal is the recipe title. Required for persistence.
	StrMeal string `json:"strMeal"`

	// StrInstructions is the free-form preparation text. Required for persistence.
	StrInstructions string `json:"strInstructions"`

	// IDIngredients is the ordered list of ingredient ids.
	// Entries are positional; the remote column allows null slots, which decode
	// as empty strings and are skipped by loaders.
	IDIngredients []string `json:"idIngredients"`

	// PDF is the attached document, stored as base64 (or, for older rows, the
	// filename of an object in the recipes bucket).
	PDF string `json:"pdf,omitempty"`

	// MimePDF is the MIME type of PDF.
	MimePDF string `json:"mimepdf,omitempty"`
}

// IngredientIDs returns the non-empty ingredient ids in order.
func (r *Recipe) IngredientIDs() []string {
	ids := make([]string, 0, len(r.IDIngredients))
	for _, id := range r.IDIngredients {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

package models

// SharedRecipe represents a row of the shared_recipes table.
// Recipe and Events are populated when the row is fetched with its embeds.
type SharedRecipe struct {
	ID     int64               `json:"id"`
	Meal   string              `json:"meal"`
	Recipe *Recipe             `json:"meals,omitempty"`
	Events []SharedRecipeEvent `json:"shared_recipes_events,omitempty"`
}

// LastStep returns the highest step recorded for the shared recipe, or 0.
func (s *SharedRecipe) LastStep() int {
	last := 0
	for _, e := range s.Events {
		if e.Step > last {
			last = e.Step
		}
	}
	return last
}

// SharedRecipeEvent is one step taken on a shared recipe.
// Events are append-only.
type SharedRecipeEvent struct {
	ID           int64  `json:"id,omitempty"`
	SharedRecipe int64  `json:"shared_recipe"`
	Step         int    `json:"step"`
	User         string `json:"user"`
}

// Package models defines the domain models shared by the mealsync client layer
// and the development backend.
//
// # Models
//
//   - Recipe: a row of the meals table, with an ordered list of ingredient ids
//   - Ingredient: a row of the ingredients table, plus a transient resolved image
//   - User / Session: the authenticated profile and the process-wide auth state
//   - SharedRecipe / SharedRecipeEvent: recipes shared between users and the
//     append-only log of steps taken while cooking them
//
// # Design Principles
//
// 1. **Remote is authoritative**: every value here is a projection of a remote row
// and is only trusted for the scope of one fetch
// 2. **Wire names are kept**: JSON tags match the remote column names
// (idMeal, strMeal, ...) so rows decode without mapping tables
// 3. **Transient fields are never persisted**: they carry `json:"-"`
package models

// Remote tables and buckets.
const (
	TableMeals              = "meals"
	TableIngredients        = "ingredients"
	TableSharedRecipes      = "shared_recipes"
	TableSharedRecipeEvents = "shared_recipes_events"
	TableUsers              = "users"

	BucketRecipes = "recipes"
)

// Identifier columns.
const (
	ColumnIDMeal       = "idMeal"
	ColumnIDIngredient = "idIngredient"
	ColumnID           = "id"
)

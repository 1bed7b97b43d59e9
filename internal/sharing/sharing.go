// Package sharing reads recipes shared between users and records the steps
// taken while cooking them.
package sharing

import (
	"context"
	"log/slog"

	"github.com/mmynk/mealsync/internal/models"
	"github.com/mmynk/mealsync/internal/remote"
)

var embeds = []remote.Embed{
	{
		Table:        models.TableMeals,
		LocalField:   "meal",
		ForeignField: models.ColumnIDMeal,
	},
	{
		Table:        models.TableSharedRecipeEvents,
		LocalField:   models.ColumnID,
		ForeignField: "shared_recipe",
		Many:         true,
	},
}

type Service struct {
	gw     *remote.Gateway
	logger *slog.Logger
}

func NewService(gw *remote.Gateway, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gw: gw, logger: logger}
}

// List returns every shared recipe with its recipe and step events joined.
func (s *Service) List(ctx context.Context) ([]models.SharedRecipe, error) {
	return remote.FetchAs[models.SharedRecipe](ctx, s.gw, models.TableSharedRecipes, remote.Query{
		Embeds: embeds,
	})
}

// Get returns one shared recipe with its joins.
func (s *Service) Get(ctx context.Context, id int64) (models.SharedRecipe, error) {
	found, err := remote.FetchAs[models.SharedRecipe](ctx, s.gw, models.TableSharedRecipes, remote.Query{
		Filter: map[string]any{models.ColumnID: id},
		Embeds: embeds,
	})
	if err != nil {
		return models.SharedRecipe{}, err
	}
	if len(found) == 0 {
		return models.SharedRecipe{}, remote.NewError(remote.ErrNotFound, "get shared recipe", "shared recipe not found")
	}
	return found[0], nil
}

// RecordStep appends a step event for sharedRecipeID by userID.
func (s *Service) RecordStep(ctx context.Context, sharedRecipeID int64, step int, userID string) error {
	switch {
	case step < 0:
		return remote.NewError(remote.ErrValidation, "record step", "step must not be negative")
	case userID == "":
		return remote.NewError(remote.ErrValidation, "record step", "user is required")
	}

	event := models.SharedRecipeEvent{SharedRecipe: sharedRecipeID, Step: step, User: userID}
	row, err := remote.Encode(event)
	if err != nil {
		return err
	}
	if err := s.gw.Insert(ctx, models.TableSharedRecipeEvents, row); err != nil {
		return err
	}
	s.logger.Info("Step recorded", "shared_recipe", sharedRecipeID, "step", step, "user", userID)
	return nil
}

// Advance records the step after the last one recorded for sharedRecipeID
// and returns it.
func (s *Service) Advance(ctx context.Context, sharedRecipeID int64, userID string) (int, error) {
	sr, err := s.Get(ctx, sharedRecipeID)
	if err != nil {
		return 0, err
	}
	step := sr.LastStep() + 1
	if err := s.RecordStep(ctx, sharedRecipeID, step, userID); err != nil {
		return 0, err
	}
	return step, nil
}

// Share publishes recipe mealID as a new shared recipe.
func (s *Service) Share(ctx context.Context, mealID string) error {
	if mealID == "" {
		return remote.NewError(remote.ErrValidation, "share recipe", "recipe id is required")
	}
	if err := s.gw.Insert(ctx, models.TableSharedRecipes, remote.Row{"meal": mealID}); err != nil {
		return err
	}
	s.logger.Info("Recipe shared", "meal", mealID)
	return nil
}

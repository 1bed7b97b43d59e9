package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/mealsync/internal/config"
	"github.com/mmynk/mealsync/internal/models"
	"github.com/mmynk/mealsync/internal/recipes"
	"github.com/mmynk/mealsync/internal/remote"
	"github.com/mmynk/mealsync/internal/service/servicetest"
)

// TestEndToEnd drives the client layer against a real backend over Connect.
func TestEndToEnd(t *testing.T) {
	srv := servicetest.New(t)
	ctx := context.Background()
	a := New(&config.Config{BackendURL: srv.URL, SearchDebounce: 10 * time.Millisecond}, nil)
	defer a.Close()

	// reads are public, writes need a session
	_, err := a.Catalog.List(ctx, "")
	require.NoError(t, err)

	form := a.NewRecipeForm()
	require.NoError(t, form.SetTitle("Pisto"))
	require.NoError(t, form.SetInstructions("Stew the vegetables."))
	_, err = form.Submit(ctx)
	assert.ErrorIs(t, err, remote.ErrAuth)
	assert.Equal(t, recipes.StateFailed, form.State())

	_, err = a.Session.Register(ctx, "cook@example.com", "password1", "password1")
	require.NoError(t, err)
	_, err = a.Session.Login(ctx, "cook@example.com", "password1")
	require.NoError(t, err)
	require.True(t, a.Session.Current().Authenticated)
	user := a.Session.CurrentUser()
	require.NotNil(t, user)

	// ingredients with images
	require.NoError(t, a.Gateway.Insert(ctx, models.TableIngredients, remote.Row{
		"idIngredient": "pepper", "strIngredient": "Pepper", "strStorageimg": "pepper.png",
	}))
	require.NoError(t, a.Gateway.Insert(ctx, models.TableIngredients, remote.Row{
		"idIngredient": "zucchini", "strIngredient": "Zucchini", "strStorageimg": "zucchini.png",
	}))
	require.NoError(t, a.Gateway.Upload(ctx, models.BucketRecipes, "pepper.png", []byte("\x89PNG\r\n\x1a\n"), "image/png"))

	// create, then update through the same draft
	_, err = form.AddIngredientSlot()
	require.NoError(t, err)
	require.NoError(t, form.SetIngredient(0, "pepper"))
	_, err = form.AddIngredientSlot()
	require.NoError(t, err)
	require.NoError(t, form.SetIngredient(1, "zucchini"))
	created, err := form.Submit(ctx)
	require.NoError(t, err)
	require.NoError(t, form.SetTitle("Pisto manchego"))
	_, err = form.Submit(ctx)
	require.NoError(t, err)

	got, err := a.Catalog.Get(ctx, created.IDMeal)
	require.NoError(t, err)
	assert.Equal(t, "Pisto manchego", got.StrMeal)
	assert.Equal(t, []string{"pepper", "zucchini"}, got.IDIngredients)

	seq, err := a.Ingredients.Resolve(ctx, got.IDIngredients)
	require.NoError(t, err)
	resolved := make(map[string]bool)
	for ing := range seq {
		resolved[ing.IDIngredient] = ing.Resolved()
	}
	assert.Equal(t, map[string]bool{"pepper": true, "zucchini": false}, resolved)

	// documents
	require.NoError(t, a.Catalog.AttachFile(ctx, created.IDMeal, []byte("%PDF-1.4 pisto"), ""))
	got, err = a.Catalog.Get(ctx, created.IDMeal)
	require.NoError(t, err)
	h, err := recipes.Handle(got)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", h.MIMEType)

	// sharing
	require.NoError(t, a.Sharing.Share(ctx, created.IDMeal))
	shared, err := a.Sharing.List(ctx)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	step, err := a.Sharing.Advance(ctx, shared[0].ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, step)
	shared, err = a.Sharing.List(ctx)
	require.NoError(t, err)
	require.NotNil(t, shared[0].Recipe)
	assert.Equal(t, "Pisto manchego", shared[0].Recipe.StrMeal)
	assert.Equal(t, 1, shared[0].LastStep())

	// debounced search
	results := make(chan []models.Recipe, 1)
	stop := a.Catalog.Follow(ctx, a.Search, func(_ string, rs []models.Recipe, err error) {
		if err == nil {
			results <- rs
		}
	})
	defer stop()
	a.Search.Push("pis")
	a.Search.Push("pisto")
	select {
	case rs := <-results:
		require.Len(t, rs, 1)
		assert.Equal(t, created.IDMeal, rs[0].IDMeal)
	case <-time.After(2 * time.Second):
		t.Fatal("no search result")
	}

	require.NoError(t, a.Session.Logout(ctx))
	assert.False(t, a.Session.Current().Authenticated)
	s, err := a.Session.CheckSession(ctx)
	require.NoError(t, err)
	assert.False(t, s.Authenticated)
}

package remote_test

import (
	"context"
	"errors"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/mealsync/internal/models"
	"github.com/mmynk/mealsync/internal/remote"
	"github.com/mmynk/mealsync/internal/remote/remotetest"
)

func newGateway(t *testing.T) (*remote.Gateway, *remotetest.Backend) {
	t.Helper()
	fake := remotetest.New()
	return remote.NewGateway(fake, nil), fake
}

func TestFetchFilterAndIDSet(t *testing.T) {
	gw, fake := newGateway(t)
	fake.Seed(models.TableIngredients,
		remote.Row{"idIngredient": "i1", "strIngredient": "Salt"},
		remote.Row{"idIngredient": "i2", "strIngredient": "Pepper"},
		remote.Row{"idIngredient": "i3", "strIngredient": "Salt"},
	)
	ctx := context.Background()

	rows, err := gw.Fetch(ctx, models.TableIngredients, remote.Query{
		Filter: map[string]any{"strIngredient": "Salt"},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	ings, err := remote.FetchAs[models.Ingredient](ctx, gw, models.TableIngredients, remote.Query{
		IDField: models.ColumnIDIngredient,
		IDs:     []string{"i2", "i3"},
	})
	require.NoError(t, err)
	require.Len(t, ings, 2)
	assert.Equal(t, "Pepper", ings[0].StrIngredient)
}

func TestFetchDefaultsIDField(t *testing.T) {
	gw, fake := newGateway(t)
	_, err := gw.Fetch(context.Background(), models.TableSharedRecipes, remote.Query{IDs: []string{"1"}})
	require.NoError(t, err)

	calls := fake.Calls("Select")
	require.Len(t, calls, 1)
	assert.Equal(t, remote.DefaultIDField, calls[0].Query.IDField)
}

func TestFetchNeverCaches(t *testing.T) {
	gw, fake := newGateway(t)
	ctx := context.Background()
	for range 2 {
		_, err := gw.Fetch(ctx, models.TableMeals, remote.Query{})
		require.NoError(t, err)
	}
	assert.Len(t, fake.Calls("Select"), 2)
}

func TestFailuresAreClassified(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"plain error is network", errors.New("connection refused"), remote.ErrNetwork},
		{"connect unauthenticated", connect.NewError(connect.CodeUnauthenticated, errors.New("jwt expired")), remote.ErrAuth},
		{"connect not found", connect.NewError(connect.CodeNotFound, errors.New("no rows")), remote.ErrNotFound},
		{"connect already exists", connect.NewError(connect.CodeAlreadyExists, errors.New("duplicate key")), remote.ErrConflict},
		{"connect unavailable", connect.NewError(connect.CodeUnavailable, errors.New("down")), remote.ErrNetwork},
		{"already classified", remote.NewError(remote.ErrConflict, "", "row locked"), remote.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, fake := newGateway(t)
			fake.Err["Insert"] = tt.err

			err := gw.Insert(context.Background(), models.TableMeals, remote.Row{"idMeal": "m1"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.NotEmpty(t, remote.Message(err))

			var rerr *remote.Error
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, "insert meals", rerr.Op)
		})
	}
}

func TestUpdateMissingRowIsNotFound(t *testing.T) {
	gw, _ := newGateway(t)
	err := gw.Update(context.Background(), models.TableMeals, models.ColumnIDMeal, "missing", remote.Row{"strMeal": "x"})
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestDownload(t *testing.T) {
	gw, fake := newGateway(t)
	fake.PutObject(models.BucketRecipes, "salt.png", []byte{1, 2, 3})
	ctx := context.Background()

	data, err := gw.Download(ctx, models.BucketRecipes, "salt.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, err = gw.Download(ctx, models.BucketRecipes, "missing.png")
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestGetUserWithoutSession(t *testing.T) {
	gw, _ := newGateway(t)
	_, err := gw.GetUser(context.Background())
	assert.ErrorIs(t, err, remote.ErrAuth)
}

func TestEncodeDecode(t *testing.T) {
	row, err := remote.Encode(models.Recipe{IDMeal: "m1", StrMeal: "Soup", IDIngredients: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "m1", row["idMeal"])
	assert.NotContains(t, row, "pdf")

	recipes, err := remote.Decode[models.Recipe]([]remote.Row{row})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, recipes[0].IDIngredients)
}

package service_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/mmynk/mealsync/internal/models"
	"github.com/mmynk/mealsync/internal/remote"
	"github.com/mmynk/mealsync/internal/remote/rpcclient"
	"github.com/mmynk/mealsync/internal/service/servicetest"
)

// setupGateway starts a backend and returns a gateway connected to it.
func setupGateway(t *testing.T) (*remote.Gateway, *rpcclient.Client, *servicetest.Server) {
	t.Helper()
	server := servicetest.New(t)
	client := rpcclient.New(http.DefaultClient, server.URL)
	return remote.NewGateway(client, nil), client, server
}

func signedIn(t *testing.T, gw *remote.Gateway) *models.User {
	t.Helper()
	ctx := context.Background()
	if _, err := gw.SignUp(ctx, "cook@example.com", "password1"); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	sess, err := gw.SignIn(ctx, "cook@example.com", "password1")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	return sess.User
}

func TestAuthFlow(t *testing.T) {
	gw, client, _ := setupGateway(t)
	ctx := context.Background()

	if _, err := gw.GetUser(ctx); !errors.Is(err, remote.ErrAuth) {
		t.Fatalf("expected auth failure before login, got %v", err)
	}

	if _, err := gw.SignUp(ctx, "cook@example.com", "weak"); !errors.Is(err, remote.ErrValidation) {
		t.Errorf("expected validation failure for weak password, got %v", err)
	}

	user := signedIn(t, gw)
	if user == nil || user.Email != "cook@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := gw.SignUp(ctx, "cook@example.com", "password1"); !errors.Is(err, remote.ErrConflict) {
		t.Errorf("expected conflict for duplicate sign up, got %v", err)
	}

	got, err := gw.GetUser(ctx)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("GetUser returned %s, want %s", got.ID, user.ID)
	}

	token := client.Token()
	if err := gw.SignOut(ctx); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if _, err := gw.GetUser(ctx); !errors.Is(err, remote.ErrAuth) {
		t.Errorf("expected auth failure after logout, got %v", err)
	}

	// The revoked token must stay unusable even if presented again
	client.SetToken(token)
	if _, err := gw.GetUser(ctx); !errors.Is(err, remote.ErrAuth) {
		t.Errorf("expected revoked token to be rejected, got %v", err)
	}
}

func TestSignInWithWrongPassword(t *testing.T) {
	gw, _, _ := setupGateway(t)
	ctx := context.Background()
	signedIn(t, gw)

	_, err := gw.SignIn(ctx, "cook@example.com", "nope12345")
	if !errors.Is(err, remote.ErrAuth) {
		t.Fatalf("expected auth failure, got %v", err)
	}
	if remote.Message(err) == "" {
		t.Error("expected a human-readable message")
	}
}

func TestWritesRequireSession(t *testing.T) {
	gw, _, _ := setupGateway(t)
	ctx := context.Background()

	err := gw.Insert(ctx, models.TableMeals, remote.Row{"idMeal": "m1", "strMeal": "Soup"})
	if !errors.Is(err, remote.ErrAuth) {
		t.Fatalf("expected auth failure for anonymous insert, got %v", err)
	}

	// Reads stay public
	if _, err := gw.Fetch(ctx, models.TableMeals, remote.Query{}); err != nil {
		t.Errorf("anonymous fetch failed: %v", err)
	}
}

func TestRowsRoundTrip(t *testing.T) {
	gw, _, _ := setupGateway(t)
	ctx := context.Background()
	signedIn(t, gw)

	recipe := models.Recipe{IDMeal: "m1", StrMeal: "Soup", StrInstructions: "Boil", IDIngredients: []string{"i1", "i2"}}
	row, err := remote.Encode(recipe)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if err := gw.Insert(ctx, models.TableMeals, row); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := gw.Insert(ctx, models.TableMeals, row); !errors.Is(err, remote.ErrConflict) {
		t.Errorf("expected conflict for duplicate insert, got %v", err)
	}

	err = gw.Update(ctx, models.TableMeals, models.ColumnIDMeal, "m1", remote.Row{"strMeal": "Tomato Soup"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	err = gw.Update(ctx, models.TableMeals, models.ColumnIDMeal, "missing", remote.Row{"strMeal": "x"})
	if !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("expected not found for missing row, got %v", err)
	}

	recipes, err := remote.FetchAs[models.Recipe](ctx, gw, models.TableMeals, remote.Query{
		Filter: map[string]any{models.ColumnIDMeal: "m1"},
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(recipes) != 1 {
		t.Fatalf("expected 1 recipe, got %d", len(recipes))
	}
	if recipes[0].StrMeal != "Tomato Soup" || len(recipes[0].IDIngredients) != 2 {
		t.Errorf("unexpected recipe: %+v", recipes[0])
	}

	if _, err := gw.Fetch(ctx, "bills", remote.Query{}); !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("expected not found for unknown table, got %v", err)
	}
}

func TestObjects(t *testing.T) {
	gw, _, _ := setupGateway(t)
	ctx := context.Background()
	signedIn(t, gw)

	payload := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}
	if err := gw.Upload(ctx, models.BucketRecipes, "salt.png", payload, "image/png"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	got, err := gw.Download(ctx, models.BucketRecipes, "salt.png")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("payload mismatch: %v", got)
	}

	if _, err := gw.Download(ctx, models.BucketRecipes, "missing.png"); !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMetricsAreRecorded(t *testing.T) {
	gw, _, server := setupGateway(t)
	ctx := context.Background()

	if _, err := gw.Fetch(ctx, models.TableMeals, remote.Query{}); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	families, err := server.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "mealsync_backend_requests_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected mealsync_backend_requests_total to be registered")
	}
}

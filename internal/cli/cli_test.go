package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/mealsync/internal/models"
	"github.com/mmynk/mealsync/internal/remote"
	"github.com/mmynk/mealsync/internal/service/servicetest"
	"github.com/mmynk/mealsync/internal/storage"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "mealsync", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"login"}, {"logout"}, {"whoami"}, {"register"},
		{"recipes", "list"}, {"recipes", "search"}, {"recipes", "show"}, {"recipes", "create"}, {"recipes", "edit"},
		{"ingredients"},
		{"shared", "list"}, {"shared", "add"}, {"shared", "step"},
		{"pdf", "attach"}, {"pdf", "uri"}, {"pdf", "save"},
	}
	for _, path := range commands {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			sub, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"verbose", "format", "env-file", "backend", "email", "password", "token"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)
}

// cliRunner runs commands against one backend.
type cliRunner struct {
	t       *testing.T
	backend string
	stdin   string
}

func newRunner(t *testing.T) (*cliRunner, *servicetest.Server) {
	t.Helper()
	srv := servicetest.New(t)
	return &cliRunner{t: t, backend: srv.URL}, srv
}

func (r *cliRunner) run(args ...string) (string, error) {
	r.t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(r.stdin))
	base := []string{"--backend", r.backend, "--env-file", filepath.Join(r.t.TempDir(), "none.env")}
	cmd.SetArgs(append(base, args...))
	err := cmd.Execute()
	return out.String(), err
}

// decode runs a command with --format json and decodes its data into v.
func (r *cliRunner) decode(v any, args ...string) {
	r.t.Helper()
	out, err := r.run(append([]string{"--format", "json"}, args...)...)
	require.NoError(r.t, err, out)
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(r.t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(r.t, "ok", resp.Status)
	require.NoError(r.t, json.Unmarshal(resp.Data, v))
}

func (r *cliRunner) json(args ...string) map[string]any {
	r.t.Helper()
	var data map[string]any
	r.decode(&data, args...)
	return data
}

func TestInvalidFormat(t *testing.T) {
	r, _ := newRunner(t)
	_, err := r.run("--format", "yaml", "recipes", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestWritesNeedSession(t *testing.T) {
	r, _ := newRunner(t)
	_, err := r.run("recipes", "create", "--title", "Tea", "--instructions", "Steep.")
	require.Error(t, err)
	assert.Equal(t, ExitAuthError, GetExitCode(err))

	_, err = r.run("--token", "garbage", "whoami")
	require.Error(t, err)
	assert.Equal(t, ExitAuthError, GetExitCode(err))
}

func TestRegisterValidation(t *testing.T) {
	r, _ := newRunner(t)
	_, err := r.run("--email", "cook@example.com", "--password", "short", "register", "--confirm", "short")
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrValidation)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestWorkflow(t *testing.T) {
	r, srv := newRunner(t)
	ctx := context.Background()

	require.NoError(t, srv.Store.InsertRows(ctx, models.TableIngredients, []remote.Row{
		{"idIngredient": "rice", "strIngredient": "Rice", "strStorageimg": "rice.png"},
		{"idIngredient": "saffron", "strIngredient": "Saffron", "strStorageimg": "saffron.png"},
		{"idIngredient": "prawns", "strIngredient": "Prawns"},
	}))
	require.NoError(t, srv.Store.PutObject(ctx, &storage.Object{
		Bucket: models.BucketRecipes, Path: "rice.png", MIMEType: "image/png", Data: []byte("\x89PNG\r\n\x1a\nrice"),
	}))

	out, err := r.run("--email", "cook@example.com", "--password", "password1", "register", "--confirm", "password1")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered cook@example.com")

	login := r.json("--email", "cook@example.com", "--password", "password1", "login")
	token, _ := login["access_token"].(string)
	require.NotEmpty(t, token)

	created := r.json("--token", token, "recipes", "create",
		"--title", "Paella", "--instructions", "Cook the rice.",
		"-i", "rice", "-i", "prawns", "-i", "saffron")
	id, _ := created["idMeal"].(string)
	require.NotEmpty(t, id)

	out, err = r.run("recipes", "list", "--search", "PAEL")
	require.NoError(t, err)
	assert.Contains(t, out, id+"  Paella")

	out, err = r.run("--token", token, "recipes", "edit", id, "--title", "Paella valenciana", "--remove-ingredient", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved "+id)

	out, err = r.run("recipes", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Paella valenciana")
	assert.Contains(t, out, "rice  Rice  image/png")
	assert.Contains(t, out, "saffron  Saffron  no image")
	assert.NotContains(t, out, "prawns")

	imgDir := t.TempDir()
	out, err = r.run("ingredients", "rice", "saffron", "--save-dir", imgDir)
	require.NoError(t, err)
	assert.Contains(t, out, "rice  Rice")
	saved, err := os.ReadFile(filepath.Join(imgDir, "rice.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\nrice"), saved)

	doc := filepath.Join(t.TempDir(), "paella.pdf")
	require.NoError(t, os.WriteFile(doc, []byte("%PDF-1.4 paella"), 0o600))
	_, err = r.run("--token", token, "pdf", "attach", id, doc)
	require.NoError(t, err)

	uri := r.json("pdf", "uri", id)
	assert.True(t, strings.HasPrefix(uri["uri"].(string), "data:application/pdf;base64,"))

	copyPath := filepath.Join(t.TempDir(), "copy.pdf")
	_, err = r.run("pdf", "save", id, copyPath)
	require.NoError(t, err)
	copied, err := os.ReadFile(copyPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 paella"), copied)

	_, err = r.run("--token", token, "shared", "add", id)
	require.NoError(t, err)
	var shared []models.SharedRecipe
	r.decode(&shared, "shared", "list")
	require.Len(t, shared, 1)
	sharedID := strconv.FormatInt(shared[0].ID, 10)

	out, err = r.run("shared", "list")
	require.NoError(t, err)
	assert.Contains(t, out, sharedID+"  Paella valenciana  step 0 (0 events)")

	step := r.json("--token", token, "shared", "step", sharedID)
	assert.EqualValues(t, 1, step["step"])
	out, err = r.run("--token", token, "shared", "step", sharedID, "--step", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded step 5 on "+sharedID)
	r.decode(&shared, "shared", "list")
	assert.Equal(t, 5, shared[0].LastStep())
	assert.Len(t, shared[0].Events, 2)

	who := r.json("--token", token, "whoami")
	assert.Equal(t, "cook@example.com", who["email"])

	out, err = r.run("--token", token, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = r.run("--token", token, "whoami")
	assert.Equal(t, ExitAuthError, GetExitCode(err))
}

func TestSearchCommand(t *testing.T) {
	r, srv := newRunner(t)
	require.NoError(t, srv.Store.InsertRows(context.Background(), models.TableMeals, []remote.Row{
		{"idMeal": "m1", "strMeal": "Tortilla"},
		{"idMeal": "m2", "strMeal": "Tarta de queso"},
	}))

	r.stdin = "t\nto\ntor\n"
	out, err := r.run("recipes", "search")
	require.NoError(t, err)
	assert.Contains(t, out, "> tor\nm1  Tortilla\n")
	assert.NotContains(t, out, "Tarta")
}

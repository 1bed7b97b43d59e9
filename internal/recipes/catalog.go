package recipes

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/mmynk/mealsync/internal/models"
	"github.com/mmynk/mealsync/internal/remote"
)

// Catalog reads recipes from the meals table.
type Catalog struct {
	gw     *remote.Gateway
	logger *slog.Logger
}

func NewCatalog(gw *remote.Gateway, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{gw: gw, logger: logger}
}

// List returns every recipe whose title contains query, ignoring case.
// An empty query returns all recipes.
func (c *Catalog) List(ctx context.Context, query string) ([]models.Recipe, error) {
	all, err := remote.FetchAs[models.Recipe](ctx, c.gw, models.TableMeals, remote.Query{})
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return all, nil
	}
	out := all[:0]
	for _, r := range all {
		if strings.Contains(strings.ToLower(r.StrMeal), query) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Get returns the recipe with the given id.
func (c *Catalog) Get(ctx context.Context, id string) (models.Recipe, error) {
	found, err := remote.FetchAs[models.Recipe](ctx, c.gw, models.TableMeals, remote.Query{
		Filter: map[string]any{models.ColumnIDMeal: id},
	})
	if err != nil {
		return models.Recipe{}, err
	}
	if len(found) == 0 {
		return models.Recipe{}, remote.NewError(remote.ErrNotFound, "get recipe", "recipe not found: "+id)
	}
	return found[0], nil
}

// Source is a stream of search strings, such as a search.Debouncer.
type Source interface {
	Subscribe(fn func(string)) (cancel func())
}

// Follow runs List for every search string src publishes and hands the
// result to fn. Results of a query superseded by a newer one are dropped, so
// fn only ever sees answers in query order. Cancelling ctx or calling the
// returned function stops following.
func (c *Catalog) Follow(ctx context.Context, src Source, fn func(query string, recipes []models.Recipe, err error)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var (
		mu     sync.Mutex
		latest uint64
	)
	unsubscribe := src.Subscribe(func(query string) {
		mu.Lock()
		latest++
		seq := latest
		mu.Unlock()

		go func() {
			recipes, err := c.List(ctx, query)
			if ctx.Err() != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seq != latest {
				c.logger.Debug("Dropping stale search result", "query", query)
				return
			}
			fn(query, recipes, err)
		}()
	})
	return func() {
		unsubscribe()
		cancel()
	}
}

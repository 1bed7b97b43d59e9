// Package ingredients resolves ingredient ids into records with locally
// renderable images.
package ingredients

import (
	"context"
	"iter"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/mealsync/internal/codec"
	"github.com/mmynk/mealsync/internal/models"
	"github.com/mmynk/mealsync/internal/remote"
)

// DefaultConcurrency bounds the image downloads in flight per Resolve.
const DefaultConcurrency = 8

type Resolver struct {
	gw          *remote.Gateway
	bucket      string
	concurrency int
	logger      *slog.Logger
}

func NewResolver(gw *remote.Gateway, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		gw:          gw,
		bucket:      models.BucketRecipes,
		concurrency: DefaultConcurrency,
		logger:      logger,
	}
}

// SetConcurrency changes the download limit. Values below 1 mean 1.
func (r *Resolver) SetConcurrency(n int) {
	r.concurrency = max(n, 1)
}

// Resolve fetches the ingredients named by ids in one batched call and
// returns a sequence that downloads their images concurrently, yielding each
// ingredient as soon as its download settles. Empty ids are ignored. A failed
// download yields the ingredient with a nil Image. Breaking out of the range
// loop cancels the downloads still running.
func (r *Resolver) Resolve(ctx context.Context, ids []string) (iter.Seq[models.Ingredient], error) {
	wanted := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			wanted = append(wanted, id)
		}
	}
	if len(wanted) == 0 {
		return func(func(models.Ingredient) bool) {}, nil
	}

	found, err := remote.FetchAs[models.Ingredient](ctx, r.gw, models.TableIngredients, remote.Query{
		IDField: models.ColumnIDIngredient,
		IDs:     wanted,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Ingredients fetched", "requested", len(wanted), "found", len(found))

	return func(yield func(models.Ingredient) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		results := make(chan models.Ingredient)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)

		go func() {
			defer close(results)
			for _, ing := range found {
				if gctx.Err() != nil {
					break
				}
				g.Go(func() error {
					ing.Image = r.image(gctx, ing)
					select {
					case results <- ing:
					case <-gctx.Done():
					}
					return nil
				})
			}
			_ = g.Wait()
		}()

		for ing := range results {
			if !yield(ing) {
				cancel()
				for range results {
				}
				return
			}
		}
	}, nil
}

// image downloads the stored image of ing, or returns nil when it has none or
// the download fails.
func (r *Resolver) image(ctx context.Context, ing models.Ingredient) *codec.Handle {
	if ing.StrStorageImg == "" {
		return nil
	}
	data, err := r.gw.Download(ctx, r.bucket, ing.StrStorageImg)
	if err != nil {
		r.logger.Warn("Ingredient image unavailable",
			"ingredient", ing.IDIngredient,
			"path", ing.StrStorageImg,
			"error", err,
		)
		return nil
	}
	return codec.ToDisplayableReference(data, http.DetectContentType(data))
}

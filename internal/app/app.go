// Package app wires the mealsync client components together. An App is
// built once at startup and handed to whatever needs the session, search or
// recipe services; there are no package-level singletons.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmynk/mealsync/internal/config"
	"github.com/mmynk/mealsync/internal/ingredients"
	"github.com/mmynk/mealsync/internal/recipes"
	"github.com/mmynk/mealsync/internal/remote"
	"github.com/mmynk/mealsync/internal/remote/rpcclient"
	"github.com/mmynk/mealsync/internal/search"
	"github.com/mmynk/mealsync/internal/session"
	"github.com/mmynk/mealsync/internal/sharing"
)

// ErrTokenUnsupported is returned by Resume for backends that cannot carry
// an access token across processes.
var ErrTokenUnsupported = errors.New("backend does not accept access tokens")

type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Gateway *remote.Gateway
	backend remote.Backend

	Session     *session.Manager
	Search      *search.Debouncer
	Catalog     *recipes.Catalog
	Ingredients *ingredients.Resolver
	Sharing     *sharing.Service
}

// New connects to the backend at cfg.BackendURL.
func New(cfg *config.Config, logger *slog.Logger) *App {
	client := rpcclient.New(&http.Client{Timeout: 30 * time.Second}, cfg.BackendURL)
	return NewWithBackend(cfg, client, logger)
}

// NewWithBackend builds an App over any backend implementation.
func NewWithBackend(cfg *config.Config, backend remote.Backend, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	gw := remote.NewGateway(backend, logger.With("component", "gateway"))
	return &App{
		Config:      cfg,
		Logger:      logger,
		Gateway:     gw,
		backend:     backend,
		Session:     session.NewManager(gw, logger.With("component", "session")),
		Search:      search.NewDebouncer(search.WithWindow(cfg.SearchDebounce), search.WithLogger(logger)),
		Catalog:     recipes.NewCatalog(gw, logger),
		Ingredients: ingredients.NewResolver(gw, logger),
		Sharing:     sharing.NewService(gw, logger),
	}
}

// NewRecipeForm returns a coordinator for one recipe draft.
func (a *App) NewRecipeForm() *recipes.Coordinator {
	return recipes.NewCoordinator(a.Gateway, a.Logger.With("component", "recipe-form"))
}

// Resume continues a session from an access token obtained by an earlier
// login and publishes the resulting state.
func (a *App) Resume(ctx context.Context, token string) error {
	ts, ok := a.backend.(interface{ SetToken(string) })
	if !ok {
		return ErrTokenUnsupported
	}
	ts.SetToken(token)
	s, err := a.Session.CheckSession(ctx)
	if err != nil {
		return err
	}
	if !s.Authenticated {
		return remote.NewError(remote.ErrAuth, "resume session", "access token is no longer valid")
	}
	return nil
}

// Token returns the access token of the current session, if the backend
// keeps one.
func (a *App) Token() string {
	if tg, ok := a.backend.(interface{ Token() string }); ok {
		return tg.Token()
	}
	return ""
}

// Close stops background work.
func (a *App) Close() {
	a.Search.Stop()
}

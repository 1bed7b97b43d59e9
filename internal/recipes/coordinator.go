// Package recipes manages recipe authoring and browsing against the remote
// meals table.
package recipes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mmynk/mealsync/internal/models"
	"github.com/mmynk/mealsync/internal/remote"
	"github.com/mmynk/mealsync/internal/signal"
)

// State is the lifecycle state of a Coordinator.
type State int

const (
	StateEmpty State = iota
	StateLoaded
	StateDirty
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	case StateDirty:
		return "dirty"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrInvalidTransition is returned for operations not allowed in the
	// current state, such as a second Submit while one is in flight.
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrIndexOutOfRange   = errors.New("ingredient index out of range")
	// ErrDiscarded is returned by Submit when the draft was discarded before
	// the remote call finished.
	ErrDiscarded = errors.New("draft discarded")
	// ErrSuperseded is returned by Load when the draft was edited, discarded
	// or loaded again before the fetch finished. The newer draft is kept.
	ErrSuperseded = errors.New("load superseded")
)

// Snapshot is what subscribers observe after every change.
type Snapshot struct {
	State     State
	Draft     Draft
	LastError string
}

// Coordinator owns one recipe draft and reconciles it with the remote
// store. It is safe for concurrent use; no lock is held across remote calls.
type Coordinator struct {
	gw      *remote.Gateway
	logger  *slog.Logger
	newID   func() string
	changes *signal.Signal[Snapshot]

	mu      sync.Mutex
	state   State
	draft   Draft
	touched map[string]bool
	lastErr error
	gen     uint64 // bumped by Discard, Load and edits; stale remote results are dropped
	cancel  context.CancelFunc
}

func NewCoordinator(gw *remote.Gateway, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		gw:      gw,
		logger:  logger,
		newID:   uuid.NewString,
		touched: make(map[string]bool),
	}
	c.changes = signal.New(c.snapshotLocked())
	return c
}

// Subscribe delivers the current snapshot, then one per change.
func (c *Coordinator) Subscribe(fn func(Snapshot)) (cancel func()) {
	return c.changes.Subscribe(fn)
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Draft returns a copy of the current draft.
func (c *Coordinator) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.clone()
}

// LastError returns the error of the last failed submit, or nil.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Touched reports whether field has been touched.
func (c *Coordinator) Touched(field string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touched[field]
}

// Touch marks field as touched.
func (c *Coordinator) Touch(field string) {
	c.mu.Lock()
	c.touched[field] = true
	c.mu.Unlock()
}

// Validate runs the form rules over the current draft.
func (c *Coordinator) Validate() Violations {
	return Validate(c.Draft())
}

// Load fetches recipe id and replaces the draft with it, binding the draft
// to that id. Empty ingredient slots on the stored row are skipped.
func (c *Coordinator) Load(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.state == StateSubmitting {
		c.mu.Unlock()
		return fmt.Errorf("load while %s: %w", c.state, ErrInvalidTransition)
	}
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	found, err := remote.FetchAs[models.Recipe](ctx, c.gw, models.TableMeals, remote.Query{
		Filter: map[string]any{models.ColumnIDMeal: id},
	})
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return remote.NewError(remote.ErrNotFound, "load recipe", "recipe not found: "+id)
	}
	recipe := found[0]

	c.mu.Lock()
	if gen != c.gen || c.state == StateSubmitting {
		c.mu.Unlock()
		c.logger.Debug("Dropping superseded load", "id", id)
		return ErrSuperseded
	}
	c.draft = Draft{
		ID:           recipe.IDMeal,
		Title:        recipe.StrMeal,
		Instructions: recipe.StrInstructions,
		Ingredients:  recipe.IngredientIDs(),
	}
	clear(c.touched)
	c.lastErr = nil
	c.state = StateLoaded
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Debug("Recipe loaded", "id", id, "ingredients", len(snap.Draft.Ingredients))
	c.changes.Publish(snap)
	return nil
}

func (c *Coordinator) SetTitle(title string) error {
	return c.edit(func(d *Draft) error {
		d.Title = title
		return nil
	})
}

func (c *Coordinator) SetInstructions(instructions string) error {
	return c.edit(func(d *Draft) error {
		d.Instructions = instructions
		return nil
	})
}

// SetIngredient stores id in slot i.
func (c *Coordinator) SetIngredient(i int, id string) error {
	return c.edit(func(d *Draft) error {
		if i < 0 || i >= len(d.Ingredients) {
			return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(d.Ingredients))
		}
		d.Ingredients[i] = id
		return nil
	})
}

// AddIngredientSlot appends an empty slot and returns its index.
func (c *Coordinator) AddIngredientSlot() (int, error) {
	var idx int
	err := c.edit(func(d *Draft) error {
		d.Ingredients = append(d.Ingredients, "")
		idx = len(d.Ingredients) - 1
		return nil
	})
	return idx, err
}

// RemoveIngredientSlot removes slot i; later slots shift down by one.
func (c *Coordinator) RemoveIngredientSlot(i int) error {
	return c.edit(func(d *Draft) error {
		if i < 0 || i >= len(d.Ingredients) {
			return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(d.Ingredients))
		}
		d.Ingredients = append(d.Ingredients[:i], d.Ingredients[i+1:]...)
		return nil
	})
}

func (c *Coordinator) edit(fn func(*Draft) error) error {
	c.mu.Lock()
	if c.state == StateSubmitting {
		c.mu.Unlock()
		return fmt.Errorf("edit while %s: %w", c.state, ErrInvalidTransition)
	}
	if err := fn(&c.draft); err != nil {
		c.mu.Unlock()
		return err
	}
	c.gen++ // an in-flight Load must not overwrite the edit
	c.state = StateDirty
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.changes.Publish(snap)
	return nil
}

// Submit validates the draft and persists it: an insert under a fresh id
// when the draft is unbound, an update keyed by the bound id otherwise.
//
// An invalid draft marks every field touched and returns an ErrValidation
// error without any remote call. A remote failure leaves the coordinator in
// StateFailed with the draft intact for a retry.
func (c *Coordinator) Submit(ctx context.Context) (models.Recipe, error) {
	c.mu.Lock()
	if c.state == StateSubmitting {
		c.mu.Unlock()
		return models.Recipe{}, fmt.Errorf("submit while %s: %w", StateSubmitting, ErrInvalidTransition)
	}
	if v := Validate(c.draft); len(v) > 0 {
		c.touchAllLocked()
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.changes.Publish(snap)
		return models.Recipe{}, &remote.Error{
			Kind:    remote.ErrValidation,
			Op:      "submit recipe",
			Message: v.Error(),
			Err:     v,
		}
	}

	recipe := models.Recipe{
		IDMeal:          c.draft.ID,
		StrMeal:         c.draft.Title,
		StrInstructions: c.draft.Instructions,
		IDIngredients:   append([]string{}, c.draft.Ingredients...),
	}
	create := recipe.IDMeal == ""
	if create {
		recipe.IDMeal = c.newID()
	}

	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = StateSubmitting
	snap := c.snapshotLocked()
	c.mu.Unlock()
	defer cancel()
	c.changes.Publish(snap)

	var err error
	row := recipeRow(recipe)
	if create {
		err = c.gw.Insert(ctx, models.TableMeals, row)
	} else {
		err = c.gw.Update(ctx, models.TableMeals, models.ColumnIDMeal, recipe.IDMeal, row)
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("Dropping result for discarded draft", "id", recipe.IDMeal)
		return models.Recipe{}, ErrDiscarded
	}
	c.cancel = nil
	if err != nil {
		c.state = StateFailed
		c.lastErr = err
	} else {
		c.state = StateSucceeded
		c.lastErr = nil
		c.draft.ID = recipe.IDMeal
	}
	snap = c.snapshotLocked()
	c.mu.Unlock()
	c.changes.Publish(snap)

	if err != nil {
		c.logger.Warn("Recipe submit failed", "id", recipe.IDMeal, "create", create, "error", err)
		return models.Recipe{}, err
	}
	if create {
		c.logger.Info("Recipe created", "id", recipe.IDMeal)
	} else {
		c.logger.Info("Recipe updated", "id", recipe.IDMeal)
	}
	return recipe, nil
}

// Discard abandons the draft, cancelling any submit in flight; its result
// will not be applied.
func (c *Coordinator) Discard() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.draft = Draft{}
	clear(c.touched)
	c.lastErr = nil
	c.state = StateEmpty
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.changes.Publish(snap)
}

func (c *Coordinator) touchAllLocked() {
	c.touched[FieldTitle] = true
	c.touched[FieldInstructions] = true
	for i := range c.draft.Ingredients {
		c.touched[IngredientField(i)] = true
	}
}

func (c *Coordinator) snapshotLocked() Snapshot {
	s := Snapshot{State: c.state, Draft: c.draft.clone()}
	if c.lastErr != nil {
		s.LastError = remote.Message(c.lastErr)
	}
	return s
}

// recipeRow is the persisted payload: the form's ingredient list is stored
// as idIngredients.
func recipeRow(r models.Recipe) remote.Row {
	return remote.Row{
		models.ColumnIDMeal: r.IDMeal,
		"strMeal":           r.StrMeal,
		"strInstructions":   r.StrInstructions,
		"idIngredients":     r.IDIngredients,
	}
}

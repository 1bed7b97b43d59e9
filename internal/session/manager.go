// Package session owns the process-wide authentication state and publishes
// it to every session-aware consumer.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/mmynk/mealsync/internal/auth"
	"github.com/mmynk/mealsync/internal/models"
	"github.com/mmynk/mealsync/internal/remote"
	"github.com/mmynk/mealsync/internal/signal"
)

// Gateway is the auth surface the manager needs.
type Gateway interface {
	SignIn(ctx context.Context, email, password string) (*remote.AuthSession, error)
	SignUp(ctx context.Context, email, password string) (*models.User, error)
	SignOut(ctx context.Context) error
	GetUser(ctx context.Context) (*models.User, error)
}

var ErrPasswordMismatch = errors.New("passwords do not match")

// Manager tracks whether the process is authenticated.
//
// The state starts anonymous. Login success and a session check that finds a
// live user publish authenticated; logout and a check that finds none publish
// anonymous. Checks that were started before a logout never override it;
// otherwise the last check to complete wins.
type Manager struct {
	gw     Gateway
	state  *signal.Signal[models.Session]
	logger *slog.Logger

	mu    sync.Mutex // held across the epoch check and the publish that follows it
	epoch uint64     // bumped by logout to invalidate in-flight checks
}

// NewManager creates a manager in the anonymous state.
func NewManager(gw Gateway, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		gw:     gw,
		state:  signal.New(models.Anonymous()),
		logger: logger,
	}
}

// Subscribe delivers the current session immediately, then every change.
// Callbacks may read the state but must not call Login, Logout or
// CheckSession.
func (m *Manager) Subscribe(fn func(models.Session)) (cancel func()) {
	return m.state.Subscribe(fn)
}

// Current returns the current session.
func (m *Manager) Current() models.Session {
	s, _ := m.state.Value()
	return s
}

// CurrentUser returns the profile of the current session, or nil when anonymous.
func (m *Manager) CurrentUser() *models.User {
	s := m.Current()
	if !s.Authenticated {
		return nil
	}
	return s.User
}

// Login authenticates remotely, re-checks the session so the new state is
// published, and returns the sign-in payload. A failed login does not change
// the state; the returned error carries the remote message.
func (m *Manager) Login(ctx context.Context, email, password string) (*remote.AuthSession, error) {
	m.logger.Info("Login request", "email", email)

	sess, err := m.gw.SignIn(ctx, email, password)
	if err != nil {
		m.logger.Warn("Login failed", "email", email, "error", err)
		return nil, err
	}

	if _, err := m.CheckSession(ctx); err != nil {
		// The sign-in itself succeeded; the state catches up on the next check.
		m.logger.Warn("Session check after login failed", "error", err)
	}

	m.logger.Info("User logged in successfully", "email", email)
	return sess, nil
}

// Logout signs out remotely and, on success, publishes anonymous at once.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.gw.SignOut(ctx); err != nil {
		m.logger.Warn("Logout failed", "error", err)
		return err
	}

	m.mu.Lock()
	m.epoch++
	m.state.Publish(models.Anonymous())
	m.mu.Unlock()

	m.logger.Info("User logged out")
	return nil
}

// CheckSession asks the backend for a live user and publishes the result.
// An auth failure means "no session" and publishes anonymous; any other
// failure leaves the state untouched and is returned.
func (m *Manager) CheckSession(ctx context.Context) (models.Session, error) {
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	var next models.Session
	user, err := m.gw.GetUser(ctx)
	switch {
	case err == nil:
		next = models.Authenticated(user)
	case errors.Is(err, remote.ErrAuth):
		next = models.Anonymous()
	default:
		return m.Current(), err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if epoch != m.epoch {
		m.logger.Debug("Discarding session check started before logout")
		return m.Current(), nil
	}
	m.state.Publish(next)
	return next, nil
}

// UserInfo fetches the profile of the live session from the backend.
func (m *Manager) UserInfo(ctx context.Context) (*models.User, error) {
	return m.gw.GetUser(ctx)
}

// Register validates the sign-up form locally and creates the account.
// Validation failures never reach the network.
func (m *Manager) Register(ctx context.Context, email, password, confirm string) (*models.User, error) {
	if err := ValidateRegistration(email, password, confirm); err != nil {
		return nil, err
	}

	m.logger.Info("Register request", "email", email)
	user, err := m.gw.SignUp(ctx, email, password)
	if err != nil {
		m.logger.Warn("Registration failed", "email", email, "error", err)
		return nil, err
	}
	return user, nil
}

// ValidateRegistration applies the sign-up form rules: a plausible email,
// a password of at least eight characters with a digit, typed twice.
func ValidateRegistration(email, password, confirm string) error {
	var problems []error
	if err := auth.ValidateEmail(email); err != nil {
		problems = append(problems, err)
	}
	if err := auth.ValidatePassword(password); err != nil {
		problems = append(problems, err)
	}
	if password != confirm {
		problems = append(problems, ErrPasswordMismatch)
	}
	if len(problems) == 0 {
		return nil
	}
	msgs := make([]string, len(problems))
	for i, p := range problems {
		msgs[i] = p.Error()
	}
	return &remote.Error{
		Kind:    remote.ErrValidation,
		Op:      "register",
		Message: strings.Join(msgs, "; "),
		Err:     errors.Join(problems...),
	}
}

// Package remotetest provides an in-memory remote.Backend for tests.
package remotetest

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/mmynk/mealsync/internal/models"
	"github.com/mmynk/mealsync/internal/remote"
)

// Call records one backend invocation.
type Call struct {
	Method string // Select, Insert, Update, Download, Upload, SignIn, SignUp, SignOut, GetUser
	Table  string // table or bucket
	Query  remote.Query
	Rows   []remote.Row
	Field  string
	Value  any
	Path   string
}

// Backend is an in-memory remote.Backend. Errors can be injected per method
// or per object path; every call is recorded.
type Backend struct {
	mu       sync.Mutex
	tables   map[string][]remote.Row
	objects  map[string][]byte
	accounts map[string]string // email -> password
	users    map[string]*models.User
	current  *models.User
	calls    []Call

	// Err, keyed by method name, fails every call of that method.
	Err map[string]error
	// DownloadErr, keyed by object path, fails downloads of that object.
	DownloadErr map[string]error
	// Hook runs at the start of every call, outside the lock.
	Hook func(method string)
}

var _ remote.Backend = (*Backend)(nil)

// New creates an empty fake backend.
func New() *Backend {
	return &Backend{
		tables:      make(map[string][]remote.Row),
		objects:     make(map[string][]byte),
		accounts:    make(map[string]string),
		users:       make(map[string]*models.User),
		Err:         make(map[string]error),
		DownloadErr: make(map[string]error),
	}
}

// Seed appends rows to table without recording a call.
func (b *Backend) Seed(table string, rows ...remote.Row) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range rows {
		b.tables[table] = append(b.tables[table], maps.Clone(r))
	}
}

// PutObject stores an object without recording a call.
func (b *Backend) PutObject(bucket, path string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[bucket+"/"+path] = data
}

// AddAccount registers credentials without recording a call.
func (b *Backend) AddAccount(email, password string) *models.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	user := &models.User{ID: uuid.NewString(), Email: email}
	b.accounts[email] = password
	b.users[email] = user
	return user
}

// Rows returns a copy of the rows of table.
func (b *Backend) Rows(table string) []remote.Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]remote.Row, len(b.tables[table]))
	for i, r := range b.tables[table] {
		out[i] = maps.Clone(r)
	}
	return out
}

// Calls returns the recorded calls, optionally restricted to one method.
func (b *Backend) Calls(method string) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Call
	for _, c := range b.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

func (b *Backend) begin(c Call) error {
	if b.Hook != nil {
		b.Hook(c.Method)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, c)
	return b.Err[c.Method]
}

func (b *Backend) Select(ctx context.Context, table string, q remote.Query) ([]remote.Row, error) {
	if err := b.begin(Call{Method: "Select", Table: table, Query: q}); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []remote.Row
	for _, r := range b.tables[table] {
		if q.Matches(r) {
			out = append(out, maps.Clone(r))
		}
	}
	for _, e := range q.Embeds {
		for _, r := range out {
			e.Join(r, b.tables[e.Table])
		}
	}
	return out, nil
}

func (b *Backend) Insert(ctx context.Context, table string, rows []remote.Row) error {
	if err := b.begin(Call{Method: "Insert", Table: table, Rows: rows}); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range rows {
		b.tables[table] = append(b.tables[table], maps.Clone(r))
	}
	return nil
}

func (b *Backend) Update(ctx context.Context, table string, patch remote.Row, eqField string, eqValue any) error {
	if err := b.begin(Call{Method: "Update", Table: table, Rows: []remote.Row{patch}, Field: eqField, Value: eqValue}); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.tables[table] {
		if remote.SameValue(r[eqField], eqValue) {
			maps.Copy(r, patch)
			n++
		}
	}
	if n == 0 {
		return remote.NewError(remote.ErrNotFound, "", fmt.Sprintf("no %s row with %s = %v", table, eqField, eqValue))
	}
	return nil
}

func (b *Backend) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	if err := b.begin(Call{Method: "Download", Table: bucket, Path: path}); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.DownloadErr[path]; err != nil {
		return nil, err
	}
	data, ok := b.objects[bucket+"/"+path]
	if !ok {
		return nil, remote.NewError(remote.ErrNotFound, "", "object not found: "+path)
	}
	return data, nil
}

func (b *Backend) Upload(ctx context.Context, bucket, path string, data []byte, mimeType string) error {
	if err := b.begin(Call{Method: "Upload", Table: bucket, Path: path}); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[bucket+"/"+path] = data
	return nil
}

func (b *Backend) SignInWithPassword(ctx context.Context, email, password string) (*remote.AuthSession, error) {
	if err := b.begin(Call{Method: "SignIn", Value: email}); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if pw, ok := b.accounts[email]; !ok || pw != password {
		return nil, remote.NewError(remote.ErrAuth, "", "Invalid login credentials")
	}
	b.current = b.users[email]
	return &remote.AuthSession{User: b.current, AccessToken: "token-" + b.current.ID}, nil
}

func (b *Backend) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	if err := b.begin(Call{Method: "SignUp", Value: email}); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[email]; ok {
		return nil, remote.NewError(remote.ErrConflict, "", "User already registered")
	}
	user := &models.User{ID: uuid.NewString(), Email: email}
	b.accounts[email] = password
	b.users[email] = user
	return user, nil
}

func (b *Backend) SignOut(ctx context.Context) error {
	if err := b.begin(Call{Method: "SignOut"}); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = nil
	return nil
}

func (b *Backend) GetUser(ctx context.Context) (*models.User, error) {
	if err := b.begin(Call{Method: "GetUser"}); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return nil, remote.NewError(remote.ErrAuth, "", "Auth session missing!")
	}
	return b.current, nil
}

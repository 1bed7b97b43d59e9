// Package servicetest runs a complete mealsync backend for tests.
package servicetest

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/mealsync/internal/auth"
	"github.com/mmynk/mealsync/internal/middleware"
	"github.com/mmynk/mealsync/internal/rpcapi"
	"github.com/mmynk/mealsync/internal/service"
	"github.com/mmynk/mealsync/internal/storage/sqlite"
)

// Server is a running backend over a temp database.
type Server struct {
	*httptest.Server
	Store    *sqlite.SQLiteStore
	Registry *prometheus.Registry
}

// New starts a backend and stops it when the test ends.
func New(t *testing.T) *Server {
	t.Helper()

	dir, err := os.MkdirTemp("", "mealsync-server-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	store, err := sqlite.New(filepath.Join(dir, "backend.db"))
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("failed to create store: %v", err)
	}

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
	svc := service.NewBackendService(store, authenticator, jwtManager, nil)

	reg := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(reg)

	path, handler := service.NewBackendServiceHandler(svc, connect.WithInterceptors(
		metrics.Interceptor(),
		middleware.Auth(jwtManager, store, rpcapi.WriteProcedures),
		middleware.LoggingInterceptor(nil, rpcapi.ReadProcedures...),
	))
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		store.Close()
		os.RemoveAll(dir)
	})

	return &Server{Server: server, Store: store, Registry: reg}
}

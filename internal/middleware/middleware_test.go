package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/mealsync/internal/auth"
	"github.com/mmynk/mealsync/internal/models"
)

const (
	openProcedure   = "/mealsync.test.v1.Echo/Open"
	closedProcedure = "/mealsync.test.v1.Echo/Closed"
)

type revocations struct {
	ids map[string]bool
	err error
}

func (r *revocations) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	return r.ids[tokenID], r.err
}

// whoami answers with the user id the interceptors put in the context.
func whoami(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	msg, err := structpb.NewStruct(map[string]any{"user_id": GetUserID(ctx), "email": GetEmail(ctx)})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(msg), nil
}

type harness struct {
	jwt     *auth.JWTManager
	revoked *revocations
	metrics *Metrics
	open    *connect.Client[structpb.Struct, structpb.Struct]
	closed  *connect.Client[structpb.Struct, structpb.Struct]
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		jwt:     auth.NewJWTManager("test-secret", time.Hour),
		revoked: &revocations{ids: map[string]bool{}},
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	opts := connect.WithInterceptors(
		h.metrics.Interceptor(),
		Auth(h.jwt, h.revoked, map[string]bool{closedProcedure: true}),
		LoggingInterceptor(nil, openProcedure),
	)

	mux := http.NewServeMux()
	mux.Handle(openProcedure, connect.NewUnaryHandler(openProcedure, whoami, opts))
	mux.Handle(closedProcedure, connect.NewUnaryHandler(closedProcedure, whoami, opts))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	h.open = connect.NewClient[structpb.Struct, structpb.Struct](server.Client(), server.URL+openProcedure)
	h.closed = connect.NewClient[structpb.Struct, structpb.Struct](server.Client(), server.URL+closedProcedure)
	return h
}

func (h *harness) call(t *testing.T, client *connect.Client[structpb.Struct, structpb.Struct], header string) (string, error) {
	t.Helper()
	req := connect.NewRequest(&structpb.Struct{})
	if header != "" {
		req.Header().Set("Authorization", header)
	}
	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return "", err
	}
	return resp.Msg.GetFields()["user_id"].GetStringValue(), nil
}

func TestAuth(t *testing.T) {
	h := newHarness(t)
	user := &models.User{ID: "user-1", Email: "cook@example.com"}
	token, _, err := h.jwt.Generate(user)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	bearer := "Bearer " + token

	tests := []struct {
		name     string
		closed   bool
		header   string
		wantUser string
		wantCode connect.Code
	}{
		{"open anonymous", false, "", "", 0},
		{"open with token", false, bearer, "user-1", 0},
		{"open with garbage token", false, "Bearer nope", "", 0},
		{"closed anonymous", true, "", "", connect.CodeUnauthenticated},
		{"closed wrong scheme", true, "Basic " + token, "", connect.CodeUnauthenticated},
		{"closed with token", true, bearer, "user-1", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := h.open
			if tt.closed {
				client = h.closed
			}
			got, err := h.call(t, client, tt.header)
			if tt.wantCode != 0 {
				if connect.CodeOf(err) != tt.wantCode {
					t.Fatalf("Expected code %v, got %v", tt.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Call failed: %v", err)
			}
			if got != tt.wantUser {
				t.Errorf("Expected user %q, got %q", tt.wantUser, got)
			}
		})
	}
}

func TestAuthRevokedToken(t *testing.T) {
	h := newHarness(t)
	token, _, err := h.jwt.Generate(&models.User{ID: "user-1", Email: "cook@example.com"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	claims, err := h.jwt.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	h.revoked.ids[claims.ID] = true

	if _, err := h.call(t, h.closed, "Bearer "+token); connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("Expected revoked token to be rejected, got %v", err)
	}
	got, err := h.call(t, h.open, "Bearer "+token)
	if err != nil || got != "" {
		t.Errorf("Expected anonymous open call, got %q, %v", got, err)
	}

	h.revoked.err = errors.New("disk on fire")
	if _, err := h.call(t, h.open, "Bearer "+token); connect.CodeOf(err) != connect.CodeInternal {
		t.Errorf("Expected internal error when revocations cannot be read, got %v", err)
	}
}

func TestMetricsCountsByCode(t *testing.T) {
	h := newHarness(t)

	if _, err := h.call(t, h.open, ""); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if _, err := h.call(t, h.closed, ""); err == nil {
		t.Fatal("Expected closed call to fail")
	}

	if got := testutil.ToFloat64(h.metrics.requests.WithLabelValues(openProcedure, "ok")); got != 1 {
		t.Errorf("Expected 1 ok call, got %v", got)
	}
	unauth := connect.CodeUnauthenticated.String()
	if got := testutil.ToFloat64(h.metrics.requests.WithLabelValues(closedProcedure, unauth)); got != 1 {
		t.Errorf("Expected 1 unauthenticated call, got %v", got)
	}
	if got := testutil.CollectAndCount(h.metrics.duration); got != 2 {
		t.Errorf("Expected 2 latency series, got %d", got)
	}
}

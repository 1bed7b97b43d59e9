// Package service implements the Connect handlers of the mealsync backend:
// the row store, the object store and the auth service consumed by the
// client layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mmynk/mealsync/internal/auth"
	"github.com/mmynk/mealsync/internal/codec"
	"github.com/mmynk/mealsync/internal/middleware"
	"github.com/mmynk/mealsync/internal/remote"
	"github.com/mmynk/mealsync/internal/rpcapi"
	"github.com/mmynk/mealsync/internal/storage"
)

// BackendService implements the BackendService procedures.
type BackendService struct {
	store         storage.Store
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	logger        *slog.Logger
}

// NewBackendService creates a new BackendService with the given storage backend.
func NewBackendService(store storage.Store, authenticator auth.Authenticator, jwtManager *auth.JWTManager, logger *slog.Logger) *BackendService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackendService{
		store:         store,
		authenticator: authenticator,
		jwtManager:    jwtManager,
		logger:        logger,
	}
}

// NewBackendServiceHandler mounts every procedure of svc and returns the
// path prefix to register the handler under.
func NewBackendServiceHandler(svc *BackendService, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(rpcapi.SelectProcedure, connect.NewUnaryHandler(rpcapi.SelectProcedure, svc.Select, opts...))
	mux.Handle(rpcapi.InsertProcedure, connect.NewUnaryHandler(rpcapi.InsertProcedure, svc.Insert, opts...))
	mux.Handle(rpcapi.UpdateProcedure, connect.NewUnaryHandler(rpcapi.UpdateProcedure, svc.Update, opts...))
	mux.Handle(rpcapi.DownloadProcedure, connect.NewUnaryHandler(rpcapi.DownloadProcedure, svc.Download, opts...))
	mux.Handle(rpcapi.UploadProcedure, connect.NewUnaryHandler(rpcapi.UploadProcedure, svc.Upload, opts...))
	mux.Handle(rpcapi.SignInProcedure, connect.NewUnaryHandler(rpcapi.SignInProcedure, svc.SignInWithPassword, opts...))
	mux.Handle(rpcapi.SignUpProcedure, connect.NewUnaryHandler(rpcapi.SignUpProcedure, svc.SignUp, opts...))
	mux.Handle(rpcapi.SignOutProcedure, connect.NewUnaryHandler(rpcapi.SignOutProcedure, svc.SignOut, opts...))
	mux.Handle(rpcapi.GetUserProcedure, connect.NewUnaryHandler(rpcapi.GetUserProcedure, svc.GetUser, opts...))
	return "/" + rpcapi.ServiceName + "/", mux
}

// storageError maps storage failures onto Connect codes.
func storageError(err error) *connect.Error {
	switch {
	case errors.Is(err, storage.ErrUnknownTable), errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, storage.ErrInvalidField), errors.Is(err, storage.ErrMissingKey):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, storage.ErrDuplicateKey):
		return connect.NewError(connect.CodeAlreadyExists, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// Select returns the rows of a table matching the request.
func (s *BackendService) Select(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	table, q, err := rpcapi.ParseSelect(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	s.logger.Debug("Select request received", "table", table, "filter", q.Filter, "ids", len(q.IDs))

	rows, err := s.store.SelectRows(ctx, table, q)
	if err != nil {
		s.logger.Error("Select failed", "table", table, "error", err)
		return nil, storageError(err)
	}

	msg, err := rpcapi.RowsMessage("", rows)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// Insert stores new rows.
func (s *BackendService) Insert(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	table := rpcapi.String(req.Msg, "table")
	rows, err := rpcapi.ParseRows(req.Msg)
	if err != nil || table == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("table and rows required"))
	}
	s.logger.Info("Insert request received",
		"table", table,
		"rows", len(rows),
		"user_id", middleware.GetUserID(ctx),
	)

	if err := s.store.InsertRows(ctx, table, rows); err != nil {
		s.logger.Error("Insert failed", "table", table, "error", err)
		return nil, storageError(err)
	}

	msg, err := rpcapi.RowsMessage(table, rows)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// Update merges a patch into the matching rows.
func (s *BackendService) Update(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	table, patch, field, value, err := rpcapi.ParseUpdate(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	s.logger.Info("Update request received",
		"table", table,
		field, value,
		"user_id", middleware.GetUserID(ctx),
	)

	n, err := s.store.UpdateRows(ctx, table, patch, field, value)
	if err != nil {
		s.logger.Error("Update failed", "table", table, "error", err)
		return nil, storageError(err)
	}
	if n == 0 {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("no %s row with %s = %v", table, field, value))
	}

	msg, err := rpcapi.ToStruct(map[string]any{"updated": n})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// Download returns the bytes of a stored object.
func (s *BackendService) Download(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[wrapperspb.BytesValue], error) {
	bucket := rpcapi.String(req.Msg, "bucket")
	path := rpcapi.String(req.Msg, "path")
	if bucket == "" || path == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("bucket and path required"))
	}

	obj, err := s.store.GetObject(ctx, bucket, path)
	if err != nil {
		s.logger.Warn("Download failed", "bucket", bucket, "path", path, "error", err)
		return nil, storageError(err)
	}

	return connect.NewResponse(wrapperspb.Bytes(obj.Data)), nil
}

// Upload stores an object, replacing any previous one.
func (s *BackendService) Upload(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	obj := &storage.Object{
		Bucket:   rpcapi.String(req.Msg, "bucket"),
		Path:     rpcapi.String(req.Msg, "path"),
		MIMEType: rpcapi.String(req.Msg, "mime_type"),
	}
	if obj.Bucket == "" || obj.Path == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("bucket and path required"))
	}
	data, err := codec.FromBase64(rpcapi.String(req.Msg, "data"))
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	obj.Data = data

	if err := s.store.PutObject(ctx, obj); err != nil {
		s.logger.Error("Upload failed", "bucket", obj.Bucket, "path", obj.Path, "error", err)
		return nil, storageError(err)
	}
	s.logger.Info("Object stored", "bucket", obj.Bucket, "path", obj.Path, "bytes", len(data))
	return connect.NewResponse(&structpb.Struct{}), nil
}

// SignInWithPassword authenticates a user and returns an access token.
func (s *BackendService) SignInWithPassword(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	email, password := rpcapi.ParseCredentials(req.Msg)
	s.logger.Info("Login request", "email", email)

	if email == "" || password == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidCredentials)
	}

	user, err := s.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		s.logger.Warn("Login failed", "email", email, "error", err)
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidCredentials)
	}

	token, expiresAt, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	msg, err := rpcapi.SessionMessage(&remote.AuthSession{User: user, AccessToken: token, ExpiresAt: expiresAt})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("User logged in successfully", "user_id", user.ID, "email", user.Email)
	return connect.NewResponse(msg), nil
}

// SignUp creates a new user account.
func (s *BackendService) SignUp(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	email, password := rpcapi.ParseCredentials(req.Msg)
	s.logger.Info("Register request", "email", email)

	user, err := s.authenticator.Register(ctx, email, password)
	if err != nil {
		s.logger.Error("Registration failed", "email", email, "error", err)
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			return nil, connect.NewError(connect.CodeAlreadyExists, err)
		case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidEmail):
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		default:
			return nil, connect.NewError(connect.CodeInternal, err)
		}
	}

	msg, err := rpcapi.ToStruct(map[string]any{"user": rpcapi.UserMessage(user)})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("User registered successfully", "user_id", user.ID, "email", user.Email)
	return connect.NewResponse(msg), nil
}

// SignOut revokes the presented token.
func (s *BackendService) SignOut(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	tokenID := middleware.GetTokenID(ctx)
	if tokenID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}

	if err := s.store.RevokeToken(ctx, tokenID, middleware.GetTokenExpiry(ctx)); err != nil {
		s.logger.Error("Logout failed", "user_id", middleware.GetUserID(ctx), "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("User logged out", "user_id", middleware.GetUserID(ctx))
	return connect.NewResponse(&structpb.Struct{}), nil
}

// GetUser returns the user of the presented token.
func (s *BackendService) GetUser(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Warn("GetUser failed", "user_id", userID, "error", err)
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
	}

	msg, err := rpcapi.ToStruct(map[string]any{"user": rpcapi.UserMessage(user)})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

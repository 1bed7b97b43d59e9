package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// LoggingInterceptor logs every RPC with its procedure, caller, user and
// duration. Reads succeed at debug level so polling clients do not flood
// the log; writes and auth calls succeed at info. Place it after Auth so
// the user id is known.
func LoggingInterceptor(logger *slog.Logger, quiet ...string) connect.UnaryInterceptorFunc {
	if logger == nil {
		logger = slog.Default()
	}
	debugOnly := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		debugOnly[p] = true
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure

			resp, err := next(ctx, req)

			attrs := []any{
				"procedure", procedure,
				"peer", req.Peer().Addr,
				"user_id", GetUserID(ctx), // empty if anonymous
				"duration_ms", time.Since(start).Milliseconds(),
			}
			var connectErr *connect.Error
			switch {
			case err == nil && debugOnly[procedure]:
				logger.Debug("RPC ok", attrs...)
			case err == nil:
				logger.Info("RPC ok", attrs...)
			case errors.As(err, &connectErr) && connectErr.Code() != connect.CodeInternal:
				logger.Warn("RPC rejected", append(attrs, "code", connectErr.Code(), "error", connectErr.Message())...)
			default:
				logger.Error("RPC failed", append(attrs, "error", err)...)
			}
			return resp, err
		}
	}
}

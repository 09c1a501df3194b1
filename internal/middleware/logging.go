package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/hogar/internal/metrics"
)

// loggingInterceptor logs and measures every RPC handled by the server.
type loggingInterceptor struct {
	logger *slog.Logger
}

// LoggingInterceptor returns a Connect interceptor that logs every RPC call and records
// request metrics. It logs the procedure name, user ID, duration, and any error codes/messages.
//
// Install it after the auth interceptor so the user ID is known.
func LoggingInterceptor(logger *slog.Logger) connect.Interceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingInterceptor{logger: logger}
}

func (i *loggingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		start := time.Now()
		resp, err := next(ctx, req)
		i.record(ctx, req.Spec().Procedure, start, err)
		return resp, err
	}
}

func (i *loggingInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *loggingInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		start := time.Now()
		err := next(ctx, conn)
		i.record(ctx, conn.Spec().Procedure, start, err)
		return err
	}
}

func (i *loggingInterceptor) record(ctx context.Context, procedure string, start time.Time, err error) {
	elapsed := time.Since(start)
	duration := elapsed.Milliseconds()
	userID := GetUserID(ctx) // empty if pre-auth

	code := "ok"
	if err != nil {
		code = connect.CodeOf(err).String()
	}
	metrics.RPCRequests.WithLabelValues(procedure, code).Inc()
	metrics.RPCDuration.WithLabelValues(procedure).Observe(elapsed.Seconds())

	if err == nil {
		i.logger.Info("RPC ok",
			"procedure", procedure,
			"user_id", userID,
			"duration_ms", duration,
		)
		return
	}

	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		i.logger.Warn("RPC error",
			"procedure", procedure,
			"code", connectErr.Code(),
			"error", connectErr.Message(),
			"user_id", userID,
			"duration_ms", duration,
		)
		return
	}
	i.logger.Error("RPC error",
		"procedure", procedure,
		"error", err,
		"user_id", userID,
		"duration_ms", duration,
	)
}

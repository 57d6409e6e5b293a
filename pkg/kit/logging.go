package kit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RequestID assigns a random request ID unless the context already carries one.
func RequestID() Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, request any) (any, error) {
			if GetRequestID(ctx) == "" {
				ctx = WithRequestID(ctx, uuid.NewString())
			}
			return next(ctx, request)
		}
	}
}

// RequestLogger logs one line per call with the endpoint name, transport,
// request ID and latency. Failures log at warn level.
func RequestLogger(logger *slog.Logger, name string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, request any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, request)
			attrs := []any{
				"endpoint", name,
				"transport", GetTransport(ctx),
				"request_id", GetRequestID(ctx),
				"duration", time.Since(start),
			}
			if err != nil {
				logger.Warn("endpoint failed", append(attrs, "error", err)...)
			} else {
				logger.Debug("endpoint", attrs...)
			}
			return resp, err
		}
	}
}

package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs each call's method, duration, and errors.
func Logging(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, method string, params interface{}) (interface{}, error) {
			start := time.Now()
			result, err := next(ctx, method, params)
			duration := time.Since(start)

			attrs := []slog.Attr{
				slog.String("method", method),
				slog.Duration("duration", duration),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "call failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelDebug, "call completed", attrs...)
			}

			return result, err
		}
	}
}

package middleware

import (
	"context"
)

// Tracing returns middleware that tags the context with the method name.
// This is a lightweight implementation that sets context values;
// for OpenTelemetry integration, use the otel build tag.
func Tracing() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, method string, params interface{}) (interface{}, error) {
			ctx = context.WithValue(ctx, traceMethodKey{}, method)
			return next(ctx, method, params)
		}
	}
}

type traceMethodKey struct{}

// TraceMethod returns the LSP method name from the context, if set by Tracing middleware.
func TraceMethod(ctx context.Context) string {
	if v, ok := ctx.Value(traceMethodKey{}).(string); ok {
		return v
	}
	return ""
}

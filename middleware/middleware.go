// Package middleware provides composable middleware for parley clients.
// Middleware wraps the JSON-RPC dispatch layer on both sides: the client's
// outbound requests to the server, and inbound server-to-client requests.
// Cross-cutting concerns like logging, panic recovery, and tracing apply to
// every method uniformly.
package middleware

import (
	"context"
)

// Handler processes a JSON-RPC method call and returns a result. For
// outbound calls params is the request payload before encoding; for inbound
// server requests it is the undecoded jsonrpc.RawMessage.
type Handler func(ctx context.Context, method string, params interface{}) (interface{}, error)

// Middleware wraps a Handler to add cross-cutting behavior.
type Middleware func(Handler) Handler

// Chain composes multiple middleware into a single middleware.
// Middleware is applied in the order given: the first middleware in the slice
// is the outermost wrapper (executes first).
func Chain(mws ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

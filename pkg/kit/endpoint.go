package kit

import "context"

// Endpoint is one action (parse, locate, compare...) independent of transport.
// HTTP handlers and MCP tools decode their input into a request value and
// call the same Endpoint.
type Endpoint func(ctx context.Context, request any) (response any, err error)

// Middleware wraps an Endpoint (logging, request IDs).
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first is outermost.
// Chain(a, b, c)(endpoint) == a(b(c(endpoint)))
func Chain(outer Middleware, others ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(others) - 1; i >= 0; i-- {
			next = others[i](next)
		}
		return outer(next)
	}
}

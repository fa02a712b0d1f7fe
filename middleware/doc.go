// Package middleware adapts goSession.Engine to net/http.
//
// # Handlers
//
//   - [Guard] authenticates the bearer access token and stores the
//     [goSession.Identity] in the request context.
//   - [ClientMetadata] records the caller's address and User-Agent for
//     Issue and Refresh.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// parse tokens, reach the session repository or make authorization
// decisions beyond pass/reject.
package middleware

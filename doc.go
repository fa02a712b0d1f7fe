// Package goSession provides a session-authentication core: short-lived
// access tokens verified without I/O, and rotating single-use refresh tokens
// backed by server-side credential records with reuse detection.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Engine], [Builder], [Config]
// and value types (TokenPair, Identity, SessionInfo, MetricsSnapshot). Flow
// orchestration, secret handling, rate limiting and audit dispatch live under
// internal/. Token encoding lives in jwt/ and credential storage in session/.
//
// # What this package must NOT do
//
//   - Expose record digests or refresh secrets in its public API.
//   - Touch the session repository from Authenticate.
//   - Import any sub-package that re-imports goSession (no import cycles).
//
// # Performance contract
//
// Authenticate is the hot path: signature and claim checks only. Refresh
// costs one ListActive, one TryConsume and one Create on the repository.
package goSession

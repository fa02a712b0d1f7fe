// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunIssue, RunRefresh, RunAuthenticate, RunLogout, ...)
// accepts a typed dependency struct and returns a result carrying a
// FailureKind. The root engine maps that kind to public errors, metrics and
// audit events. This keeps the Engine type thin and lets every branch be
// tested with fakes.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the session repository, token codec
// and rate limiter. They do NOT own any of these resources; ownership stays
// with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency interfaces.
package flows

// Package internal holds helpers private to goSession: refresh-secret
// generation, keyed credential digests and record identifiers.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function orchestrators for refresh, authenticate and logout
//   - metrics: lock-free counters and latency histograms
//   - rate: Redis-backed refresh throttle
//   - security: security posture report
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSession API.
//   - Perform storage I/O.
package internal

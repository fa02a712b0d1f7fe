// Package rate provides the Redis-backed fixed-window refresh throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys are
// <prefix>:ar:<subject>.
//
// # What this package must NOT do
//
//   - Decide what happens to a throttled caller (the engine maps the error).
//   - Be imported outside the goSession module.
package rate

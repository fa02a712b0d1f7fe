// Package session persists refresh-token credential records.
//
// One [Record] exists per issued refresh token. Records are only ever mutated
// to set RevokedAt; rotation revokes the old record and creates a new one.
// The core never deletes records; [PostgresStore.PruneExpired] and Redis key
// TTLs handle housekeeping.
//
// # Backends
//
//   - [MemoryStore]: mutex-guarded maps for tests and single-process use.
//   - [RedisStore]: hash per record plus a per-user sorted set; conditional
//     writes run as Lua scripts.
//   - [PostgresStore]: one row per record; conditional UPDATE statements.
//
// # What this package must NOT do
//
//   - Import goSession or jwt (no upward imports).
//   - Store raw refresh tokens or secrets; only keyed digests.
//   - Decide reuse policy. Callers interpret TryConsume results.
package session

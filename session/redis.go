package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldUserID  = "uid"
	fieldDigest  = "dg"
	fieldCreated = "ca"
	fieldExpires = "ea"
	fieldRevoked = "ra"
	fieldDevice  = "dev"
	fieldAddr    = "addr"
)

// Times are stored as unix milliseconds so Lua can compare them exactly.
const createRecordScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "uid", ARGV[1], "dg", ARGV[2], "ca", ARGV[3], "ea", ARGV[4], "dev", ARGV[5], "addr", ARGV[6])
redis.call("PEXPIRE", KEYS[1], ARGV[7])
redis.call("ZADD", KEYS[2], ARGV[3], ARGV[8])
local ttl = redis.call("PTTL", KEYS[2])
if ttl == -1 or ttl < tonumber(ARGV[7]) then
  redis.call("PEXPIRE", KEYS[2], ARGV[7])
end
return 1
`

// ARGV[1] now (ms), ARGV[2] "1" to require the record to be unexpired.
// Returns 0 when nothing changed, 1 when an active record was revoked and 2
// when an expired record was marked revoked.
const revokeRecordScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "ra") then
  return 0
end
local exp = tonumber(redis.call("HGET", KEYS[1], "ea"))
local live = exp and tonumber(ARGV[1]) < exp
if ARGV[2] == "1" and not live then
  return 0
end
redis.call("HSET", KEYS[1], "ra", ARGV[1])
if live then
  return 1
end
return 2
`

// ARGV[1] window (ms). The TTL is applied whenever the key lacks one.
const trackReplayScript = `
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`

var (
	createRecordLua = redis.NewScript(createRecordScript)
	revokeRecordLua = redis.NewScript(revokeRecordScript)
	trackReplayLua  = redis.NewScript(trackReplayScript)
)

// RedisStore is a Redis-backed [Repository].
//
// Layout:
//
//	<prefix>:r:<id>      hash with the record fields
//	<prefix>:u:<userID>  sorted set of record IDs scored by created_at (ms)
//	<prefix>:rp:<userID> replay anomaly counter
//
// Record keys expire at ExpiresAt plus the retention window. Index entries
// whose record key is gone are removed lazily by ListActive.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewRedisStore creates a [RedisStore]. Honors WithClock, WithPrefix and
// WithRetention.
func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	o := applyOptions(opts)
	return &RedisStore{
		redis:     client,
		prefix:    o.prefix,
		retention: o.retention,
		now:       o.now,
	}
}

func (s *RedisStore) recordKey(id string) string {
	return s.prefix + ":r:" + id
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

func (s *RedisStore) replayKey(userID string) string {
	return s.prefix + ":rp:" + userID
}

// Create stores rec and indexes it under its user.
//
//	Performance: 1 Lua EVALSHA.
func (s *RedisStore) Create(ctx context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}

	ttl := rec.ExpiresAt.Sub(s.now()) + s.retention
	if ttl < time.Second {
		ttl = time.Second
	}

	res, err := createRecordLua.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(rec.ID), s.userKey(rec.UserID)},
		rec.UserID,
		rec.CredentialDigest[:],
		rec.CreatedAt.UnixMilli(),
		rec.ExpiresAt.UnixMilli(),
		rec.DeviceInfo,
		rec.ClientAddress,
		ttl.Milliseconds(),
		rec.ID,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if res == 0 {
		return fmt.Errorf("%w: %s", ErrRecordExists, rec.ID)
	}
	return nil
}

// ListActive reads the user index and fetches every record in one pipeline.
//
//	Performance: 1 ZRANGE + 1 pipelined HGETALL batch.
func (s *RedisStore) ListActive(ctx context.Context, userID string) ([]Record, error) {
	userKey := s.userKey(userID)
	ids, err := s.redis.ZRange(ctx, userKey, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.recordKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	now := s.now()
	out := make([]Record, 0, len(ids))
	var stale []any
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		if len(fields) == 0 {
			stale = append(stale, ids[i])
			continue
		}
		rec, err := decodeRecord(ids[i], fields)
		if err != nil {
			return nil, fmt.Errorf("%w: record %s: %v", ErrStorageUnavailable, ids[i], err)
		}
		if rec.Active(now) {
			out = append(out, rec)
		}
	}

	if len(stale) > 0 {
		// Best-effort index cleanup; the records are already gone.
		_ = s.redis.ZRem(ctx, userKey, stale...).Err()
	}

	sortByCreated(out)
	return out, nil
}

// TryConsume revokes the record only if it is still active.
//
//	Performance: 1 Lua EVALSHA.
func (s *RedisStore) TryConsume(ctx context.Context, recordID string) (bool, error) {
	return s.revoke(ctx, recordID, true)
}

// Revoke revokes the record if it is not already revoked.
func (s *RedisStore) Revoke(ctx context.Context, recordID string) (bool, error) {
	return s.revoke(ctx, recordID, false)
}

func (s *RedisStore) revoke(ctx context.Context, recordID string, requireUnexpired bool) (bool, error) {
	check := "0"
	if requireUnexpired {
		check = "1"
	}
	res, err := revokeRecordLua.Run(ctx, s.redis, []string{s.recordKey(recordID)}, s.now().UnixMilli(), check).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return res != 0, nil
}

// RevokeAll applies the conditional revoke script to every indexed record of
// the user. Each record transition is atomic; records indexed after the
// ZRANGE are not covered. Expired records are marked revoked but only
// records that were still active are counted.
//
//	Performance: 1 ZRANGE + 1 pipelined EVAL batch.
func (s *RedisStore) RevokeAll(ctx context.Context, userID string) (int, error) {
	ids, err := s.redis.ZRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	now := s.now().UnixMilli()
	pipe := s.redis.Pipeline()
	cmds := make([]*redis.Cmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Eval(ctx, revokeRecordScript, []string{s.recordKey(id)}, now, "0")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	revoked := 0
	for _, cmd := range cmds {
		n, err := cmd.Int64()
		if err != nil {
			return revoked, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		if n == 1 {
			revoked++
		}
	}
	return revoked, nil
}

// TrackReplay increments the user's replay anomaly counter. The window
// starts at the first anomaly.
//
//	Performance: 1 Lua EVALSHA.
func (s *RedisStore) TrackReplay(ctx context.Context, userID string, window time.Duration) (int64, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}

	count, err := trackReplayLua.Run(ctx, s.redis, []string{s.replayKey(userID)}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return count, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return time.Since(start), nil
}

func decodeRecord(id string, fields map[string]string) (Record, error) {
	rec := Record{
		ID:            id,
		UserID:        fields[fieldUserID],
		DeviceInfo:    fields[fieldDevice],
		ClientAddress: fields[fieldAddr],
	}

	digest := fields[fieldDigest]
	if len(digest) != len(rec.CredentialDigest) {
		return Record{}, errors.New("invalid digest length")
	}
	copy(rec.CredentialDigest[:], digest)

	created, err := parseMillis(fields[fieldCreated])
	if err != nil {
		return Record{}, fmt.Errorf("created_at: %w", err)
	}
	expires, err := parseMillis(fields[fieldExpires])
	if err != nil {
		return Record{}, fmt.Errorf("expires_at: %w", err)
	}
	rec.CreatedAt = created
	rec.ExpiresAt = expires

	if raw, ok := fields[fieldRevoked]; ok && raw != "" {
		revoked, err := parseMillis(raw)
		if err != nil {
			return Record{}, fmt.Errorf("revoked_at: %w", err)
		}
		rec.RevokedAt = &revoked
	}
	return rec, nil
}

func parseMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

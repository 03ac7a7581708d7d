package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport-level failures of the ledger.
var ErrRedisUnavailable = errors.New("session redis unavailable")

// TouchStatus is the outcome of a liveness check.
type TouchStatus int

const (
	// TouchMissing means no record exists for (identity, token).
	TouchMissing TouchStatus = iota
	// TouchExpired means the record existed but its expiry had passed; the
	// record was deleted as part of the check.
	TouchExpired
	// TouchOK means the record is valid and was refreshed.
	TouchOK
)

// TouchResult carries the refreshed state after a TouchOK.
type TouchResult struct {
	Status          TouchStatus
	ReloadRemaining int
	// ExpiresAt is zero when duration-limiting is off for this session.
	ExpiresAt time.Time
}

// touchScript validates, refreshes and (optionally) consumes one reload in
// a single atomic unit. Expiry is checked against ARGV[1] (caller-supplied
// now) so the check stays deterministic under an injected clock.
//
// ARGV: now-unix, slide-enabled(0/1), consume-reload(0/1), token.
// Returns {status, reloadRemaining, expiresAt} with status -1 missing,
// 0 expired, 1 ok.
var touchScript = redis.NewScript(`
local key = KEYS[1]
local idx = KEYS[2]
if redis.call("EXISTS", key) == 0 then
  redis.call("SREM", idx, ARGV[4])
  return {-1, 0, 0}
end
local now = tonumber(ARGV[1])
local exp = tonumber(redis.call("HGET", key, "expires_at") or "0")
if ARGV[2] == "1" and exp > 0 and now > exp then
  redis.call("DEL", key)
  redis.call("SREM", idx, ARGV[4])
  return {0, 0, 0}
end
redis.call("HSET", key, "last_activity", now)
if ARGV[2] == "1" then
  local dur = tonumber(redis.call("HGET", key, "duration_min") or "0")
  if dur > 0 then
    exp = now + dur * 60
    redis.call("HSET", key, "expires_at", exp)
  end
end
local reload = tonumber(redis.call("HGET", key, "reload_remaining") or "0")
if ARGV[3] == "1" and reload > 0 then
  reload = reload - 1
  redis.call("HSET", key, "reload_remaining", reload)
end
return {1, reload, exp}
`)

// deleteScript removes the record and its index entry together. Idempotent:
// deleting an absent session returns 0 and changes nothing else.
var deleteScript = redis.NewScript(`
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`)

// Store is the Redis-backed session ledger. Records for different
// identities are independent; no cross-identity coordination happens here.
type Store struct {
	redis  *redis.Client
	prefix string
}

func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(identity, token string) string {
	return s.prefix + ":ss:" + identity + ":" + token
}

func (s *Store) indexKey(identity string) string {
	return s.prefix + ":ssi:" + identity
}

// Create persists a new session record.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	key := s.key(sess.Identity, sess.Token)

	fields := []any{
		"created", sess.CreatedAt.Unix(),
		"last_activity", sess.LastActivity.Unix(),
		"duration_min", sess.DurationMinutes,
		"reload_remaining", sess.ReloadRemaining,
		"user_agent", sess.UserAgent,
		"ip", sess.IP,
	}
	if !sess.ExpiresAt.IsZero() {
		fields = append(fields, "expires_at", sess.ExpiresAt.Unix())
	}

	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, key, fields...)
	pipe.SAdd(ctx, s.indexKey(sess.Identity), sess.Token)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Touch runs one liveness check: validates the record, refreshes
// last_activity, slides the expiry under ExpirySliding, and consumes one
// reload when consumeReload is set.
func (s *Store) Touch(ctx context.Context, identity, token string, now time.Time, policy ExpiryPolicy, consumeReload bool) (TouchResult, error) {
	slideFlag, reloadFlag := "0", "0"
	if policy == ExpirySliding {
		slideFlag = "1"
	}
	if consumeReload {
		reloadFlag = "1"
	}

	raw, err := touchScript.Run(ctx, s.redis,
		[]string{s.key(identity, token), s.indexKey(identity)},
		now.Unix(), slideFlag, reloadFlag, token,
	).Int64Slice()
	if err != nil {
		return TouchResult{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(raw) != 3 {
		return TouchResult{}, fmt.Errorf("%w: unexpected touch reply", ErrRedisUnavailable)
	}

	res := TouchResult{ReloadRemaining: int(raw[1])}
	switch raw[0] {
	case -1:
		res.Status = TouchMissing
	case 0:
		res.Status = TouchExpired
	default:
		res.Status = TouchOK
		if raw[2] > 0 {
			res.ExpiresAt = time.Unix(raw[2], 0)
		}
	}
	return res, nil
}

// Delete removes one session. Returns false when no record existed.
func (s *Store) Delete(ctx context.Context, identity, token string) (bool, error) {
	existed, err := deleteScript.Run(ctx, s.redis,
		[]string{s.key(identity, token), s.indexKey(identity)},
		token,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return existed == 1, nil
}

// DeleteIdentity removes every session of one identity.
func (s *Store) DeleteIdentity(ctx context.Context, identity string) (int, error) {
	tokens, err := s.redis.SMembers(ctx, s.indexKey(identity)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	var removed int
	for _, token := range tokens {
		existed, err := s.Delete(ctx, identity, token)
		if err != nil {
			return removed, err
		}
		if existed {
			removed++
		}
	}
	return removed, nil
}

// DeleteAll clears the whole ledger.
func (s *Store) DeleteAll(ctx context.Context) (int, error) {
	var removed int
	for _, pattern := range []string{s.prefix + ":ss:*", s.prefix + ":ssi:*"} {
		iter := s.redis.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
				return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			removed++
		}
		if err := iter.Err(); err != nil {
			return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return removed, nil
}

// PurgeStale removes sessions whose last activity precedes cutoff. Coarse
// GC for records orphaned by abnormal termination; independent of the
// per-session expiry.
func (s *Store) PurgeStale(ctx context.Context, cutoff time.Time) (int, error) {
	var purged int
	iter := s.redis.Scan(ctx, 0, s.prefix+":ss:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.redis.HGet(ctx, key, "last_activity").Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return purged, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		last, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || last >= cutoff.Unix() {
			continue
		}

		identity, token, ok := s.splitKey(key)
		if !ok {
			continue
		}
		if _, err := s.Delete(ctx, identity, token); err != nil {
			return purged, err
		}
		purged++
	}
	if err := iter.Err(); err != nil {
		return purged, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return purged, nil
}

// splitKey recovers (identity, token) from a session key. Tokens are hex
// and never contain ':', so the last separator is unambiguous.
func (s *Store) splitKey(key string) (identity, token string, ok bool) {
	rest, found := strings.CutPrefix(key, s.prefix+":ss:")
	if !found {
		return "", "", false
	}
	i := strings.LastIndexByte(rest, ':')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// Get loads one session record, mainly for introspection and tests.
func (s *Store) Get(ctx context.Context, identity, token string) (*Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(identity, token)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	sess := &Session{Identity: identity, Token: token}
	if v, err := strconv.ParseInt(fields["created"], 10, 64); err == nil {
		sess.CreatedAt = time.Unix(v, 0)
	}
	if v, err := strconv.ParseInt(fields["last_activity"], 10, 64); err == nil {
		sess.LastActivity = time.Unix(v, 0)
	}
	if v, err := strconv.ParseInt(fields["expires_at"], 10, 64); err == nil && v > 0 {
		sess.ExpiresAt = time.Unix(v, 0)
	}
	sess.DurationMinutes, _ = strconv.Atoi(fields["duration_min"])
	sess.ReloadRemaining, _ = strconv.Atoi(fields["reload_remaining"])
	sess.UserAgent = fields["user_agent"]
	sess.IP = fields["ip"]
	return sess, nil
}

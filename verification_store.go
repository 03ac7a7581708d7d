package codegate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	errCodeMismatch = errors.New("verification code mismatch")
)

// consumeCodeScript deletes the live code only on an exact match, so a
// code is consumed at most once. A miss deletes nothing.
//
// Returns 1 on match, -1 on mismatch, 0 when no live code exists.
var consumeCodeScript = redis.NewScript(`
local code = redis.call("HGET", KEYS[1], "code")
if not code then
  return 0
end
if code ~= ARGV[1] then
  return -1
end
redis.call("DEL", KEYS[1])
return 1
`)

// VerificationStore is the short-lived ledger of (identity, code, issuedAt)
// tuples. At most one live code exists per identity: Put replaces, the key
// TTL enforces expiry even when a code is never consumed.
type VerificationStore struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

func NewVerificationStore(client *redis.Client, prefix string, ttl time.Duration) *VerificationStore {
	return &VerificationStore{redis: client, prefix: prefix, ttl: ttl}
}

func (s *VerificationStore) key(identity string) string {
	return s.prefix + ":vc:" + identity
}

// Put stores the code for identity, replacing any prior code.
func (s *VerificationStore) Put(ctx context.Context, identity, code string, issuedAt time.Time) error {
	identity = NormalizeIdentity(identity)
	key := s.key(identity)

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, "code", code, "issued_at", issuedAt.Unix())
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Consume matches and deletes the live code for identity. Returns
// errCodeMismatch when no live code matches; the stored code (if any) is
// left in place in that case.
func (s *VerificationStore) Consume(ctx context.Context, identity, code string) error {
	identity = NormalizeIdentity(identity)
	res, err := consumeCodeScript.Run(ctx, s.redis, []string{s.key(identity)}, code).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if res != 1 {
		return errCodeMismatch
	}
	return nil
}

// Drop removes any pending code for identity without consuming it. Used by
// per-identity and global resets.
func (s *VerificationStore) Drop(ctx context.Context, identity string) error {
	identity = NormalizeIdentity(identity)
	if err := s.redis.Del(ctx, s.key(identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// DropAll clears the whole ledger.
func (s *VerificationStore) DropAll(ctx context.Context) error {
	iter := s.redis.Scan(ctx, 0, s.prefix+":vc:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

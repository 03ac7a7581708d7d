package codegate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var errPrincipalNotFound = errors.New("principal not found")

// admitScript performs the conditional budget decrement. It is a single
// atomic unit so that two concurrent verifications can never both observe
// remaining=1 and both admit.
//
// A principal without an explicit budget override inherits the policy
// default (ARGV[2]); the script seeds the field in the same step.
//
// Returns -1 when the principal does not exist, 0 when the budget is
// exhausted, otherwise 1.
var admitScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
if ARGV[3] == "1" then
  local rem = redis.call("HGET", KEYS[1], "remaining")
  if not rem then
    rem = ARGV[2]
  end
  rem = tonumber(rem)
  if rem <= 0 then
    return 0
  end
  redis.call("HSET", KEYS[1], "remaining", rem - 1)
end
redis.call("HSET", KEYS[1], "verified", "1")
redis.call("HSET", KEYS[1], "last_login", ARGV[1])
return 1
`)

// PrincipalStore keeps one record per authorized identity. The core never
// deletes principals; Remove exists for the external admin surface, which
// also cascades removal of pending verification codes.
type PrincipalStore struct {
	redis  *redis.Client
	prefix string
}

func NewPrincipalStore(client *redis.Client, prefix string) *PrincipalStore {
	return &PrincipalStore{redis: client, prefix: prefix}
}

func (s *PrincipalStore) key(identity string) string {
	return s.prefix + ":pr:" + identity
}

// NormalizeIdentity lowers and trims an identity string. Every store and
// engine entry point goes through this so records are keyed consistently.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// Provision creates the principal if absent. Existing records are left
// untouched, matching upsert-with-setOnInsert provisioning.
func (s *PrincipalStore) Provision(ctx context.Context, identity string, now time.Time) error {
	identity = NormalizeIdentity(identity)
	created, err := s.redis.HSetNX(ctx, s.key(identity), "created", now.Unix()).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if created {
		if err := s.redis.HSet(ctx, s.key(identity), "verified", "0").Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return nil
}

// Get returns the principal record, or errPrincipalNotFound.
func (s *PrincipalStore) Get(ctx context.Context, identity string) (*Principal, error) {
	identity = NormalizeIdentity(identity)
	fields, err := s.redis.HGetAll(ctx, s.key(identity)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, errPrincipalNotFound
	}

	p := &Principal{Identity: identity}
	if v, ok := fields["remaining"]; ok {
		p.RemainingSessions, _ = strconv.Atoi(v)
		p.HasBudget = true
	}
	if v, ok := fields["duration_min"]; ok {
		p.DurationMinutes, _ = strconv.Atoi(v)
		p.HasDuration = true
	}
	p.Verified = fields["verified"] == "1"
	if v, ok := fields["last_login"]; ok {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil && unix > 0 {
			p.LastLoginAt = time.Unix(unix, 0)
		}
	}
	if v, ok := fields["created"]; ok {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil && unix > 0 {
			p.CreatedAt = time.Unix(unix, 0)
		}
	}
	return p, nil
}

// EffectiveRemaining resolves the identity's budget against the policy
// default. Read-only; admission must go through Admit instead.
func (p *Principal) EffectiveRemaining(policy SessionPolicy) int {
	if p.HasBudget {
		return p.RemainingSessions
	}
	return policy.MaxSessions
}

// EffectiveDuration resolves the identity's session duration in minutes.
func (p *Principal) EffectiveDuration(policy SessionPolicy) int {
	if p.HasDuration {
		return p.DurationMinutes
	}
	return policy.SessionDurationMinutes
}

type admitResult int

const (
	admitNotFound admitResult = iota
	admitExhausted
	admitOK
)

// Admit marks the principal verified and, when limiting is enabled,
// atomically decrements its budget guarded by remaining > 0.
func (s *PrincipalStore) Admit(ctx context.Context, identity string, policy SessionPolicy, now time.Time) (admitResult, error) {
	identity = NormalizeIdentity(identity)
	limitFlag := "0"
	if policy.LimitEnabled {
		limitFlag = "1"
	}
	res, err := admitScript.Run(ctx, s.redis,
		[]string{s.key(identity)},
		now.Unix(), policy.MaxSessions, limitFlag,
	).Int64()
	if err != nil {
		return admitNotFound, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	switch res {
	case -1:
		return admitNotFound, nil
	case 0:
		return admitExhausted, nil
	default:
		return admitOK, nil
	}
}

// SetSessionOverrides pins per-identity budget and duration values.
func (s *PrincipalStore) SetSessionOverrides(ctx context.Context, identity string, remaining, durationMinutes int) error {
	identity = NormalizeIdentity(identity)
	exists, err := s.redis.Exists(ctx, s.key(identity)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if exists == 0 {
		return errPrincipalNotFound
	}
	err = s.redis.HSet(ctx, s.key(identity),
		"remaining", remaining,
		"duration_min", durationMinutes,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RestoreDefaults resets one identity's budget and duration to the policy
// values.
func (s *PrincipalStore) RestoreDefaults(ctx context.Context, identity string, policy SessionPolicy) error {
	return s.SetSessionOverrides(ctx, identity, policy.MaxSessions, policy.SessionDurationMinutes)
}

// RestoreAllDefaults resets every principal to the policy values. Part of
// the global reset.
func (s *PrincipalStore) RestoreAllDefaults(ctx context.Context, policy SessionPolicy) (int, error) {
	var restored int
	iter := s.redis.Scan(ctx, 0, s.prefix+":pr:*", 100).Iterator()
	for iter.Next(ctx) {
		err := s.redis.HSet(ctx, iter.Val(),
			"remaining", policy.MaxSessions,
			"duration_min", policy.SessionDurationMinutes,
		).Err()
		if err != nil {
			return restored, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		restored++
	}
	if err := iter.Err(); err != nil {
		return restored, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return restored, nil
}

// Remove deletes the principal record. Admin-surface helper; callers are
// expected to cascade verification-code removal themselves.
func (s *PrincipalStore) Remove(ctx context.Context, identity string) error {
	identity = NormalizeIdentity(identity)
	if err := s.redis.Del(ctx, s.key(identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

package codegate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DiscoveredStore is the append-only, time-ordered list of harvested
// codes, globally capped to the display limit.
type DiscoveredStore struct {
	redis  *redis.Client
	prefix string
}

func NewDiscoveredStore(client *redis.Client, prefix string) *DiscoveredStore {
	return &DiscoveredStore{redis: client, prefix: prefix}
}

func (s *DiscoveredStore) key() string {
	return s.prefix + ":dc"
}

// Append persists one discovered code and trims the list to cap. Newest
// entries sit at the head.
func (s *DiscoveredStore) Append(ctx context.Context, dc DiscoveredCode, cap int) error {
	data, err := json.Marshal(dc)
	if err != nil {
		return err
	}
	pipe := s.redis.TxPipeline()
	pipe.LPush(ctx, s.key(), data)
	if cap > 0 {
		pipe.LTrim(ctx, s.key(), 0, int64(cap-1))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Recent returns up to limit codes, most recent first. A non-empty
// identity keeps only codes whose recipient matches case-insensitively.
func (s *DiscoveredStore) Recent(ctx context.Context, identity string, limit int) ([]DiscoveredCode, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := s.redis.LRange(ctx, s.key(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := make([]DiscoveredCode, 0, len(raw))
	for _, item := range raw {
		var dc DiscoveredCode
		if err := json.Unmarshal([]byte(item), &dc); err != nil {
			continue
		}
		if identity != "" && !strings.EqualFold(dc.Recipient, identity) {
			continue
		}
		out = append(out, dc)
	}
	return out, nil
}

package codegate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blocklist is the denylisted-address gate. The core only calls Contains;
// Block, Unblock and List exist for the external admin surface.
type Blocklist struct {
	redis  *redis.Client
	prefix string
}

// BlockedAddress is one denylist entry with its provenance.
type BlockedAddress struct {
	Address   string    `json:"address"`
	BlockedAt time.Time `json:"blockedAt"`
	BlockedBy string    `json:"blockedBy"`
}

func NewBlocklist(client *redis.Client, prefix string) *Blocklist {
	return &Blocklist{redis: client, prefix: prefix}
}

func (b *Blocklist) setKey() string {
	return b.prefix + ":blk"
}

func (b *Blocklist) metaKey(addr string) string {
	return b.prefix + ":blkm:" + addr
}

// Contains reports whether addr is denylisted.
func (b *Blocklist) Contains(ctx context.Context, addr string) (bool, error) {
	if addr == "" {
		return false, nil
	}
	blocked, err := b.redis.SIsMember(ctx, b.setKey(), addr).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return blocked, nil
}

// Block adds addr to the denylist.
func (b *Blocklist) Block(ctx context.Context, addr, by string, now time.Time) error {
	pipe := b.redis.TxPipeline()
	pipe.SAdd(ctx, b.setKey(), addr)
	pipe.HSet(ctx, b.metaKey(addr), "blocked_at", now.Unix(), "blocked_by", by)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Unblock removes addr from the denylist.
func (b *Blocklist) Unblock(ctx context.Context, addr string) error {
	pipe := b.redis.TxPipeline()
	pipe.SRem(ctx, b.setKey(), addr)
	pipe.Del(ctx, b.metaKey(addr))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// List returns every denylisted address with its metadata.
func (b *Blocklist) List(ctx context.Context) ([]BlockedAddress, error) {
	addrs, err := b.redis.SMembers(ctx, b.setKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	out := make([]BlockedAddress, 0, len(addrs))
	for _, addr := range addrs {
		entry := BlockedAddress{Address: addr}
		meta, err := b.redis.HGetAll(ctx, b.metaKey(addr)).Result()
		if err == nil {
			if v, ok := meta["blocked_at"]; ok {
				var unix int64
				if _, err := fmt.Sscanf(v, "%d", &unix); err == nil {
					entry.BlockedAt = time.Unix(unix, 0)
				}
			}
			entry.BlockedBy = meta["blocked_by"]
		}
		out = append(out, entry)
	}
	return out, nil
}

package codegate

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestDiscoveredStoreCapAndOrder(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewDiscoveredStore(rdb, "cg")
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		dc := DiscoveredCode{
			Code:      fmt.Sprintf("%06d", i),
			Recipient: "alice@example.com",
			FetchedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Append(ctx, dc, 5); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	got, err := store.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected cap of 5, got %d", len(got))
	}
	// Newest first.
	if got[0].Code != "000007" || got[4].Code != "000003" {
		t.Fatalf("unexpected order: first %s last %s", got[0].Code, got[4].Code)
	}
}

func TestDiscoveredStoreRecipientFilter(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewDiscoveredStore(rdb, "cg")
	ctx := context.Background()

	now := time.Now()
	for _, rec := range []string{"Alice@Example.com", "bob@example.com", "alice@example.com"} {
		if err := store.Append(ctx, DiscoveredCode{Code: "123456", Recipient: rec, FetchedAt: now}, 10); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	got, err := store.Recent(ctx, "alice@example.com", 10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 case-insensitive matches, got %d", len(got))
	}
}

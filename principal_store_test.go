package codegate

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestAdmitNeverOverdraws(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewPrincipalStore(rdb, "cg")
	ctx := context.Background()
	now := time.Now()

	if err := store.Provision(ctx, "alice@example.com", now); err != nil {
		t.Fatalf("provision failed: %v", err)
	}
	if err := store.SetSessionOverrides(ctx, "alice@example.com", 3, 5); err != nil {
		t.Fatalf("override failed: %v", err)
	}

	policy := defaultSessionPolicy()
	const racers = 10
	var wg sync.WaitGroup
	results := make([]admitResult, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := store.Admit(ctx, "alice@example.com", policy, now)
			if err != nil {
				t.Errorf("admit failed: %v", err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	var admitted int
	for _, res := range results {
		if res == admitOK {
			admitted++
		}
	}
	if admitted != 3 {
		t.Fatalf("expected exactly 3 admissions for a budget of 3, got %d", admitted)
	}

	principal, err := store.Get(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if principal.RemainingSessions != 0 {
		t.Fatalf("expected budget drained to 0, got %d", principal.RemainingSessions)
	}
}

func TestAdmitSeedsBudgetFromPolicy(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewPrincipalStore(rdb, "cg")
	ctx := context.Background()
	now := time.Now()

	if err := store.Provision(ctx, "alice@example.com", now); err != nil {
		t.Fatalf("provision failed: %v", err)
	}

	// No explicit budget yet: the first admission seeds from the policy.
	res, err := store.Admit(ctx, "alice@example.com", defaultSessionPolicy(), now)
	if err != nil || res != admitOK {
		t.Fatalf("expected admission, got %v / %v", res, err)
	}

	principal, err := store.Get(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !principal.HasBudget || principal.RemainingSessions != defaultSessionPolicy().MaxSessions-1 {
		t.Fatalf("expected seeded budget %d, got %+v", defaultSessionPolicy().MaxSessions-1, principal)
	}
	if !principal.Verified {
		t.Fatal("expected principal marked verified")
	}
	if !principal.LastLoginAt.Equal(time.Unix(now.Unix(), 0)) {
		t.Fatalf("expected last login %v, got %v", now, principal.LastLoginAt)
	}
}

func TestAdmitUnlimitedWhenDisabled(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewPrincipalStore(rdb, "cg")
	ctx := context.Background()
	now := time.Now()

	if err := store.Provision(ctx, "alice@example.com", now); err != nil {
		t.Fatalf("provision failed: %v", err)
	}
	if err := store.SetSessionOverrides(ctx, "alice@example.com", 0, 5); err != nil {
		t.Fatalf("override failed: %v", err)
	}

	policy := defaultSessionPolicy()
	policy.LimitEnabled = false
	for i := 0; i < 4; i++ {
		res, err := store.Admit(ctx, "alice@example.com", policy, now)
		if err != nil || res != admitOK {
			t.Fatalf("round %d: expected admission with limiting off, got %v / %v", i, res, err)
		}
	}
}

func TestProvisionLeavesExistingUntouched(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewPrincipalStore(rdb, "cg")
	ctx := context.Background()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Provision(ctx, "alice@example.com", created); err != nil {
		t.Fatalf("provision failed: %v", err)
	}
	if err := store.SetSessionOverrides(ctx, "alice@example.com", 7, 20); err != nil {
		t.Fatalf("override failed: %v", err)
	}

	// Re-provisioning must not reset anything.
	if err := store.Provision(ctx, "alice@example.com", created.Add(time.Hour)); err != nil {
		t.Fatalf("re-provision failed: %v", err)
	}

	principal, err := store.Get(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if principal.RemainingSessions != 7 || principal.DurationMinutes != 20 {
		t.Fatalf("expected overrides preserved, got %+v", principal)
	}
	if !principal.CreatedAt.Equal(created) {
		t.Fatalf("expected original created time, got %v", principal.CreatedAt)
	}
}

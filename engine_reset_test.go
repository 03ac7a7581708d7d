package codegate

import (
	"context"
	"errors"
	"testing"
)

func TestLogoutRemovesSession(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine, mailer, _ := newTestEngine(t, rdb)
	ctx := context.Background()

	token := openTestSession(t, engine, mailer, "alice@example.com")

	if err := engine.Logout(ctx, "alice@example.com", token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := engine.CheckLiveness(ctx, "alice@example.com", token, false); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected dead session after logout, got %v", err)
	}

	// Idempotent.
	if err := engine.Logout(ctx, "alice@example.com", token); err != nil {
		t.Fatalf("repeated Logout failed: %v", err)
	}

	// Logout does not restore the budget.
	principal, err := engine.Principals().Get(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("principal lookup failed: %v", err)
	}
	if principal.RemainingSessions != defaultSessionPolicy().MaxSessions-1 {
		t.Fatalf("expected budget untouched at %d, got %d",
			defaultSessionPolicy().MaxSessions-1, principal.RemainingSessions)
	}
}

func TestResetPrincipalRestoresDefaults(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine, mailer, _ := newTestEngine(t, rdb)
	ctx := context.Background()

	token := openTestSession(t, engine, mailer, "alice@example.com")
	if err := engine.Principals().SetSessionOverrides(ctx, "alice@example.com", 0, 1); err != nil {
		t.Fatalf("override failed: %v", err)
	}
	if err := engine.codes.Put(ctx, "alice@example.com", "111111", engine.clock.Now()); err != nil {
		t.Fatalf("code put failed: %v", err)
	}

	if err := engine.ResetPrincipal(ctx, "alice@example.com"); err != nil {
		t.Fatalf("ResetPrincipal failed: %v", err)
	}

	if _, err := engine.CheckLiveness(ctx, "alice@example.com", token, false); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected sessions purged, got %v", err)
	}
	if _, err := engine.VerifyCode(ctx, "alice@example.com", "111111"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected pending code dropped, got %v", err)
	}

	principal, err := engine.Principals().Get(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("principal lookup failed: %v", err)
	}
	if principal.RemainingSessions != defaultSessionPolicy().MaxSessions {
		t.Fatalf("expected budget restored to %d, got %d",
			defaultSessionPolicy().MaxSessions, principal.RemainingSessions)
	}
	if principal.DurationMinutes != defaultSessionPolicy().SessionDurationMinutes {
		t.Fatalf("expected duration restored to %d, got %d",
			defaultSessionPolicy().SessionDurationMinutes, principal.DurationMinutes)
	}
}

func TestResetAllSessions(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine, mailer, _ := newTestEngine(t, rdb)
	ctx := context.Background()

	aliceToken := openTestSession(t, engine, mailer, "alice@example.com")
	bobToken := openTestSession(t, engine, mailer, "bob@example.com")
	provision(t, engine, "carol@example.com")
	if err := engine.IssueCode(ctx, "carol@example.com"); err != nil {
		t.Fatalf("IssueCode failed: %v", err)
	}
	carolCode := mailer.lastCode(t)

	if err := engine.ResetAllSessions(ctx); err != nil {
		t.Fatalf("ResetAllSessions failed: %v", err)
	}

	for identity, token := range map[string]string{
		"alice@example.com": aliceToken,
		"bob@example.com":   bobToken,
	} {
		if _, err := engine.CheckLiveness(ctx, identity, token, false); !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("%s: expected session purged, got %v", identity, err)
		}
	}
	if _, err := engine.VerifyCode(ctx, "carol@example.com", carolCode); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected pending code cleared, got %v", err)
	}

	for _, identity := range []string{"alice@example.com", "bob@example.com"} {
		principal, err := engine.Principals().Get(ctx, identity)
		if err != nil {
			t.Fatalf("principal lookup failed: %v", err)
		}
		if principal.RemainingSessions != defaultSessionPolicy().MaxSessions {
			t.Fatalf("%s: expected budget restored to %d, got %d",
				identity, defaultSessionPolicy().MaxSessions, principal.RemainingSessions)
		}
	}

	if engine.MetricsSnapshot().Counters[MetricGlobalReset] != 1 {
		t.Fatal("expected one global reset counted")
	}

	// Everyone can verify again after the reset.
	code := issueAndGrabCode(t, engine, mailer, "alice@example.com")
	if _, err := engine.VerifyCode(ctx, "alice@example.com", code); err != nil {
		t.Fatalf("post-reset verification failed: %v", err)
	}
}

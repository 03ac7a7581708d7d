package codegate

import (
	"context"
	"errors"
	"testing"
)

func TestIssueCodeStoresAndMails(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine, mailer, _ := newTestEngine(t, rdb)
	ctx := context.Background()

	provision(t, engine, "alice@example.com")
	if err := engine.IssueCode(ctx, "Alice@Example.com "); err != nil {
		t.Fatalf("IssueCode failed: %v", err)
	}

	if mailer.to != "alice@example.com" {
		t.Fatalf("expected delivery to normalized identity, got %q", mailer.to)
	}
	if mailer.subject != defaultMessages.CodeSubject {
		t.Fatalf("expected default subject, got %q", mailer.subject)
	}

	code := mailer.lastCode(t)
	stored, err := rdb.HGet(ctx, "cg:vc:alice@example.com", "code").Result()
	if err != nil {
		t.Fatalf("stored code lookup failed: %v", err)
	}
	if stored != code {
		t.Fatalf("stored code %q does not match delivered code %q", stored, code)
	}
}

func TestIssueCodeReplacesPrior(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine, mailer, _ := newTestEngine(t, rdb)
	ctx := context.Background()

	provision(t, engine, "alice@example.com")
	first := issueAndGrabCode(t, engine, mailer, "alice@example.com")
	second := issueAndGrabCode(t, engine, mailer, "alice@example.com")

	if _, err := engine.VerifyCode(ctx, "alice@example.com", second); err != nil {
		t.Fatalf("latest code rejected: %v", err)
	}
	if first != second {
		if _, err := engine.VerifyCode(ctx, "alice@example.com", first); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("expected replaced code to be dead, got %v", err)
		}
	}
}

func TestIssueCodeUnknownIdentity(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine, _, _ := newTestEngine(t, rdb)

	err := engine.IssueCode(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if msg := RejectionMessage(err); msg != defaultMessages.NotAuthorized {
		t.Fatalf("expected default not-authorized message, got %q", msg)
	}
}

func TestIssueCodeDeliveryFailureKeepsCode(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine, mailer, _ := newTestEngine(t, rdb)
	ctx := context.Background()

	provision(t, engine, "alice@example.com")
	mailer.fail = errors.New("smtp 451")

	err := engine.IssueCode(ctx, "alice@example.com")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}

	// The stored code outlives the failed delivery.
	if exists := rdb.Exists(ctx, "cg:vc:alice@example.com").Val(); exists != 1 {
		t.Fatal("expected stored code to survive delivery failure")
	}
}

func TestIssueCodeBlockedAddress(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine, _, clk := newTestEngine(t, rdb)
	ctx := WithCallerIP(context.Background(), "203.0.113.9")

	provision(t, engine, "alice@example.com")
	blocklist := NewBlocklist(rdb, "cg")
	if err := blocklist.Block(ctx, "203.0.113.9", "ops", clk.Now()); err != nil {
		t.Fatalf("block failed: %v", err)
	}

	err := engine.IssueCode(ctx, "alice@example.com")
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
	if msg := RejectionMessage(err); msg != defaultMessages.AddressBlocked {
		t.Fatalf("expected maintenance cover message, got %q", msg)
	}

	// The blocked rejection must win over not-authorized.
	if err := engine.IssueCode(ctx, "nobody@example.com"); !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked before authorization check, got %v", err)
	}
}

func TestIssueCodeEmptyIdentity(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine, _, _ := newTestEngine(t, rdb)

	if err := engine.IssueCode(context.Background(), "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

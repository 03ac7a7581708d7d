package codegate

import (
	"context"
	"testing"
)

func TestSettingsMessagesPartialOverride(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewSettingsStore(rdb, "cg")
	ctx := context.Background()

	err := store.Upsert(ctx, settingMessages, map[string]string{
		"invalidCode": "Código inválido, tente novamente.",
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	msgs := store.Messages(ctx)
	if msgs.InvalidCode != "Código inválido, tente novamente." {
		t.Fatalf("expected overridden message, got %q", msgs.InvalidCode)
	}
	// Unset fields keep the built-in copy.
	if msgs.SessionLimitReached != defaultMessages.SessionLimitReached {
		t.Fatalf("expected default limit message, got %q", msgs.SessionLimitReached)
	}
	if msgs.CodeSubject != defaultMessages.CodeSubject {
		t.Fatalf("expected default subject, got %q", msgs.CodeSubject)
	}
}

func TestSettingsSessionPolicyDefaultsAndOverride(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewSettingsStore(rdb, "cg")
	ctx := context.Background()

	policy, err := store.SessionPolicy(ctx)
	if err != nil {
		t.Fatalf("policy read failed: %v", err)
	}
	if policy != defaultSessionPolicy() {
		t.Fatalf("expected built-in defaults, got %+v", policy)
	}

	want := SessionPolicy{LimitEnabled: true, DurationEnabled: false, MaxSessions: 10, SessionDurationMinutes: 30}
	if err := store.Upsert(ctx, settingSessionPolicy, want); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	policy, err = store.SessionPolicy(ctx)
	if err != nil {
		t.Fatalf("policy read failed: %v", err)
	}
	if policy != want {
		t.Fatalf("expected %+v, got %+v", want, policy)
	}
}

func TestSettingsMailDefaults(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewSettingsStore(rdb, "cg")

	mail, err := store.Mail(context.Background())
	if err != nil {
		t.Fatalf("mail read failed: %v", err)
	}
	if mail.SMTP.Host != "smtp.gmail.com" || mail.SMTP.Port != 465 || !mail.SMTP.Secure {
		t.Fatalf("unexpected SMTP defaults: %+v", mail.SMTP)
	}
	if mail.IMAP.Port != 993 || !mail.IMAP.TLS || mail.IMAP.Mailbox != "INBOX" {
		t.Fatalf("unexpected IMAP defaults: %+v", mail.IMAP)
	}
}

func TestSettingsDisplayLimit(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewSettingsStore(rdb, "cg")
	ctx := context.Background()

	if got := store.DisplayLimit(ctx, 5); got != 5 {
		t.Fatalf("expected fallback 5, got %d", got)
	}

	if err := store.Upsert(ctx, settingDisplayLimit, map[string]int{"limit": 12}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if got := store.DisplayLimit(ctx, 5); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}

	// Nonsense values fall back, too.
	if err := store.Upsert(ctx, settingDisplayLimit, map[string]int{"limit": -1}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if got := store.DisplayLimit(ctx, 5); got != 5 {
		t.Fatalf("expected fallback for negative limit, got %d", got)
	}
}

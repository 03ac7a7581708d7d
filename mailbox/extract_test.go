package mailbox

import "testing"

func TestExtractCodeMarkerPhrase(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"english marker", "Hello,\n\nYour code is 042139. It expires soon.", "042139"},
		{"verification marker", "verification code: 771002", "771002"},
		{"portuguese marker", "Seu código de verificação é 123456", "123456"},
		{"marker wins over earlier digits", "Ref 987654\nYour code is 042139", "042139"},
		{"soft break artifact", "o seu c=\n=F3digo =\n042139 expira", "042139"},
		{"bare digits fallback", "no marker here 555123 trailing", "555123"},
		{"leading zeros preserved", "Your code is 000042", "000042"},
		{"no code", "nothing to see here", ""},
		{"seven digits ignored", "number 1234567 is too long", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractCode(tc.body); got != tc.want {
				t.Fatalf("ExtractCode(%q) = %q, want %q", tc.body, got, tc.want)
			}
		})
	}
}

func TestResolveRecipientForwardingHeader(t *testing.T) {
	header := "Return-Path: <bounce@relay.example>\r\n" +
		"X-X-Forwarded-For: relay@host, user@example.com\r\n" +
		"Delivered-To: relay@host\r\n" +
		"To: relay <relay@host>"

	if got := ResolveRecipient(header, "relay@host"); got != "user@example.com" {
		t.Fatalf("expected user@example.com, got %q", got)
	}
}

func TestResolveRecipientDeliveredToFallback(t *testing.T) {
	header := "Delivered-To: carol@example.com\r\n" +
		"To: relay <relay@host>"

	if got := ResolveRecipient(header, ""); got != "carol@example.com" {
		t.Fatalf("expected carol@example.com, got %q", got)
	}
}

func TestResolveRecipientToAngleFallback(t *testing.T) {
	header := "Subject: hi\r\nTo: Dave Example <dave@example.com>"

	if got := ResolveRecipient(header, ""); got != "dave@example.com" {
		t.Fatalf("expected dave@example.com, got %q", got)
	}
}

func TestResolveRecipientHousekeepingOnly(t *testing.T) {
	// Every candidate is the relay's own address: nothing resolves.
	header := "X-X-Forwarded-For: relay@host\r\n" +
		"Delivered-To: relay@host\r\n" +
		"To: relay <relay@host>"

	if got := ResolveRecipient(header, "relay@host"); got != UnresolvedRecipient {
		t.Fatalf("expected %q, got %q", UnresolvedRecipient, got)
	}
}

func TestResolveRecipientNothingMatches(t *testing.T) {
	if got := ResolveRecipient("Subject: empty", "relay@host"); got != UnresolvedRecipient {
		t.Fatalf("expected %q, got %q", UnresolvedRecipient, got)
	}
}

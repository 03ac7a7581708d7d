package codegate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Settings document keys. One JSON document per key.
const (
	settingSessionPolicy = "sessionLimit"
	settingMessages      = "messages"
	settingMail          = "emailConfig"
	settingDisplayLimit  = "codeDisplayLimit"
	settingReload        = "autoReload"
	settingResetCron     = "sessionResetCron"
)

// SettingsStore reads and writes keyed configuration documents. Reads
// unmarshal onto defaults, so a partial document overrides only the fields
// it carries.
type SettingsStore struct {
	redis  *redis.Client
	prefix string
}

func NewSettingsStore(client *redis.Client, prefix string) *SettingsStore {
	return &SettingsStore{redis: client, prefix: prefix}
}

func (s *SettingsStore) key(name string) string {
	return s.prefix + ":set:" + name
}

// get unmarshals the document for name onto out. Missing documents leave
// out untouched; out should arrive pre-filled with defaults.
func (s *SettingsStore) get(ctx context.Context, name string, out any) error {
	data, err := s.redis.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("settings document %q corrupt: %w", name, err)
	}
	return nil
}

// Upsert replaces the document for name.
func (s *SettingsStore) Upsert(ctx context.Context, name string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(name), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// SessionPolicy returns the global session-limit policy, merged over the
// built-in defaults.
func (s *SettingsStore) SessionPolicy(ctx context.Context) (SessionPolicy, error) {
	policy := defaultSessionPolicy()
	err := s.get(ctx, settingSessionPolicy, &policy)
	return policy, err
}

// Messages returns the user-facing copy table with built-in fallbacks for
// unset fields.
func (s *SettingsStore) Messages(ctx context.Context) Messages {
	msgs := Messages{}
	// Copy resolution tolerates store failure: the caller still needs a
	// message for the rejection it is already building.
	_ = s.get(ctx, settingMessages, &msgs)
	if msgs.SessionLimitReached == "" {
		msgs.SessionLimitReached = defaultMessages.SessionLimitReached
	}
	if msgs.AddressBlocked == "" {
		msgs.AddressBlocked = defaultMessages.AddressBlocked
	}
	if msgs.NotAuthorized == "" {
		msgs.NotAuthorized = defaultMessages.NotAuthorized
	}
	if msgs.InvalidCode == "" {
		msgs.InvalidCode = defaultMessages.InvalidCode
	}
	if msgs.SessionExpired == "" {
		msgs.SessionExpired = defaultMessages.SessionExpired
	}
	if msgs.CodeSubject == "" {
		msgs.CodeSubject = defaultMessages.CodeSubject
	}
	return msgs
}

// Mail returns the transport credentials document.
func (s *SettingsStore) Mail(ctx context.Context) (MailSettings, error) {
	cfg := MailSettings{
		SMTP: SMTPConfig{Host: "smtp.gmail.com", Port: 465, Secure: true},
		IMAP: IMAPConfig{Port: 993, TLS: true, Mailbox: "INBOX"},
	}
	err := s.get(ctx, settingMail, &cfg)
	return cfg, err
}

// DisplayLimit returns the discovered-code display cap.
func (s *SettingsStore) DisplayLimit(ctx context.Context, fallback int) int {
	doc := struct {
		Limit int `json:"limit"`
	}{Limit: fallback}
	_ = s.get(ctx, settingDisplayLimit, &doc)
	if doc.Limit <= 0 {
		return fallback
	}
	return doc.Limit
}

// ReloadPolicy returns the auto-reload budget policy.
func (s *SettingsStore) ReloadPolicy(ctx context.Context) (ReloadPolicy, error) {
	policy := defaultReloadPolicy()
	err := s.get(ctx, settingReload, &policy)
	return policy, err
}

// ResetCron returns the scheduled-reset policy.
func (s *SettingsStore) ResetCron(ctx context.Context) (ResetCronPolicy, error) {
	policy := defaultResetCronPolicy()
	err := s.get(ctx, settingResetCron, &policy)
	return policy, err
}

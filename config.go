package codegate

import "time"

// Config holds the static knobs of the gateway. Runtime policy (session
// limits, message copy, transport credentials) lives in the Settings Store
// and is re-read per operation; Config only covers what never changes
// while the process runs.
type Config struct {
	// KeyPrefix namespaces every Redis key. Defaults to "cg".
	KeyPrefix string

	// CodeTTL bounds how long an unconsumed verification code stays live.
	CodeTTL time.Duration

	// StaleSessionAge is the coarse GC cutoff for orphaned session records,
	// independent of the per-session TTL.
	StaleSessionAge time.Duration

	// GCInterval throttles the opportunistic stale-session sweep.
	GCInterval time.Duration

	// HarvestAttempts bounds the mailbox retry loop. The first attempt that
	// yields any code stops the loop.
	HarvestAttempts int

	// HarvestWindow is the SINCE lookback of the mailbox search.
	HarvestWindow time.Duration

	// MailTimeout bounds mailbox connect/auth and outbound SMTP dials.
	MailTimeout time.Duration

	// DisplayLimitDefault caps the discovered-code listing when the
	// codeDisplayLimit settings document is unset.
	DisplayLimitDefault int

	Audit AuditConfig
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking when the buffer is full.
	// Audit emission must never stall the primary flow, so this defaults on.
	DropIfFull bool
}

func defaultConfig() Config {
	return Config{
		KeyPrefix:           "cg",
		CodeTTL:             10 * time.Minute,
		StaleSessionAge:     24 * time.Hour,
		GCInterval:          time.Minute,
		HarvestAttempts:     2,
		HarvestWindow:       24 * time.Hour,
		MailTimeout:         10 * time.Second,
		DisplayLimitDefault: 5,
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

func (c Config) withDefaults() Config {
	def := defaultConfig()
	if c.KeyPrefix == "" {
		c.KeyPrefix = def.KeyPrefix
	}
	if c.CodeTTL <= 0 {
		c.CodeTTL = def.CodeTTL
	}
	if c.StaleSessionAge <= 0 {
		c.StaleSessionAge = def.StaleSessionAge
	}
	if c.GCInterval <= 0 {
		c.GCInterval = def.GCInterval
	}
	if c.HarvestAttempts <= 0 {
		c.HarvestAttempts = def.HarvestAttempts
	}
	if c.HarvestWindow <= 0 {
		c.HarvestWindow = def.HarvestWindow
	}
	if c.MailTimeout <= 0 {
		c.MailTimeout = def.MailTimeout
	}
	if c.DisplayLimitDefault <= 0 {
		c.DisplayLimitDefault = def.DisplayLimitDefault
	}
	if c.Audit.BufferSize <= 0 {
		c.Audit.BufferSize = def.Audit.BufferSize
	}
	return c
}

// Built-in fallbacks for the settings message table. The table in the
// Settings Store overrides these field by field.
var defaultMessages = Messages{
	SessionLimitReached: "Limite de sessões atingido. Por favor, faça logout em outro dispositivo.",
	AddressBlocked:      "No momento nosso sistema enfrenta uma manutenção por favor tente novamente mais tarde",
	NotAuthorized:       "Email not authorized. Contact administrator.",
	InvalidCode:         "Invalid code",
	SessionExpired:      "Sessão expirada. Faça login novamente.",
	CodeSubject:         "Seu Código de Acesso",
}

func defaultSessionPolicy() SessionPolicy {
	return SessionPolicy{
		LimitEnabled:           true,
		DurationEnabled:        true,
		MaxSessions:            3,
		SessionDurationMinutes: 5,
	}
}

func defaultReloadPolicy() ReloadPolicy {
	return ReloadPolicy{Enabled: true, Limit: 3}
}

func defaultResetCronPolicy() ResetCronPolicy {
	return ResetCronPolicy{Enabled: false, Hours: 24}
}

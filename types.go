package codegate

import (
	"context"
	"time"
)

// Principal is one authorized identity with its session budget.
//
// RemainingSessions and DurationMinutes are overrides; when HasBudget or
// HasDuration is false the global SessionPolicy default applies.
type Principal struct {
	Identity          string
	RemainingSessions int
	HasBudget         bool
	DurationMinutes   int
	HasDuration       bool
	Verified          bool
	LastLoginAt       time.Time
	CreatedAt         time.Time
}

// SessionPolicy is the global session-limit policy document.
type SessionPolicy struct {
	LimitEnabled           bool `json:"limitEnabled"`
	DurationEnabled        bool `json:"durationEnabled"`
	MaxSessions            int  `json:"maxSessions"`
	SessionDurationMinutes int  `json:"sessionDuration"`
}

// ReloadPolicy caps how many times a verified session may auto-reload the
// discovered-code view.
type ReloadPolicy struct {
	Enabled bool `json:"enabled"`
	Limit   int  `json:"limit"`
}

// ResetCronPolicy configures the scheduled global session reset.
type ResetCronPolicy struct {
	Enabled bool `json:"enabled"`
	Hours   int  `json:"hours"`
}

// Messages is the user-facing copy table. Empty fields fall back to the
// built-in defaults; the engine never hardcodes copy beyond those.
type Messages struct {
	SessionLimitReached string `json:"sessionLimitReached"`
	AddressBlocked      string `json:"ipBlocked"`
	NotAuthorized       string `json:"emailNotAuthorized"`
	InvalidCode         string `json:"invalidCode"`
	SessionExpired      string `json:"sessionExpired"`
	CodeSubject         string `json:"codeSubject"`
}

// SMTPConfig is the outbound mail transport credentials document.
type SMTPConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Secure     bool   `json:"secure"`
	User       string `json:"user"`
	Password   string `json:"pass"`
	SenderName string `json:"senderName"`
}

// IMAPConfig is the harvest mailbox credentials document.
type IMAPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	TLS      bool   `json:"tls"`
	User     string `json:"user"`
	Password string `json:"pass"`
	Mailbox  string `json:"mailbox"`
	// Sender filters harvested messages (IMAP FROM criterion).
	Sender string `json:"sender"`
	// Housekeeping is the relay's own address, stripped from any resolved
	// recipient.
	Housekeeping string `json:"housekeeping"`
}

// MailSettings is the emailConfig settings document.
type MailSettings struct {
	SMTP SMTPConfig `json:"smtp"`
	IMAP IMAPConfig `json:"imap"`
}

// DiscoveredCode is one harvested (code, recipient) tuple.
type DiscoveredCode struct {
	Code      string    `json:"code"`
	Recipient string    `json:"recipient"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Liveness is the result of a successful heartbeat.
type Liveness struct {
	ReloadRemaining int
	// ExpiresAt is zero when duration-limiting is disabled.
	ExpiresAt time.Time
}

// Mailer sends one code message. Implementations are constructed per send
// from the current settings snapshot; see mailer.Send.
type Mailer interface {
	Send(ctx context.Context, cfg SMTPConfig, to, subject, textBody, htmlBody string) error
}

// Harvester runs one mailbox correlation pass. An empty target keeps every
// resolved recipient; failures degrade to an empty slice.
type Harvester interface {
	Harvest(ctx context.Context, cfg IMAPConfig, target string, limit int) []DiscoveredCode
}

// GeoLookup resolves best-effort location info for an address. Failures
// must return a zero GeoInfo, never an error that blocks admission.
type GeoLookup interface {
	Lookup(ctx context.Context, ip string) GeoInfo
}

// GeoInfo is the subset of the geolocation response the audit trail keeps.
type GeoInfo struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	City    string `json:"city"`
}

// ReputationGate answers whether a caller address is denylisted.
type ReputationGate interface {
	Contains(ctx context.Context, addr string) (bool, error)
}

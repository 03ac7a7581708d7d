package session

import "time"

// ExpiryPolicy selects how a session's lifetime is enforced.
type ExpiryPolicy uint8

const (
	// ExpiryDisabled sessions never expire on their own; only logout,
	// resets or the coarse GC sweep remove them.
	ExpiryDisabled ExpiryPolicy = iota
	// ExpirySliding sessions carry an expiry that is pushed forward by
	// DurationMinutes on every successful liveness check.
	ExpirySliding
)

// Session is one active admission record. A session is valid iff its
// (identity, token) record exists and, under ExpirySliding, now precedes
// ExpiresAt.
type Session struct {
	Identity     string
	Token        string
	CreatedAt    time.Time
	LastActivity time.Time
	// ExpiresAt is zero under ExpiryDisabled.
	ExpiresAt       time.Time
	DurationMinutes int
	ReloadRemaining int
	UserAgent       string
	IP              string
}

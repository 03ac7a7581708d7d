package codegate

import "errors"

var (
	// ErrBlocked is returned when the caller's address is on the block list.
	// Terminal: the blocked check precedes every other check.
	ErrBlocked = errors.New("caller address blocked")
	// ErrNotAuthorized is returned when the identity has not been provisioned.
	ErrNotAuthorized = errors.New("identity not authorized")
	// ErrInvalidCode is returned when the submitted code does not match the
	// live verification code for the identity.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrSessionLimitReached is returned when the identity's session budget
	// is exhausted.
	ErrSessionLimitReached = errors.New("session limit reached")
	// ErrSessionExpired is returned when a liveness check finds no valid
	// session record.
	ErrSessionExpired = errors.New("session expired")
	// ErrDeliveryFailed is returned when the outbound code message could not
	// be sent. The stored code is left in place; issuing again replaces it.
	ErrDeliveryFailed = errors.New("code delivery failed")
	// ErrMailboxUnavailable indicates the correlation engine could not reach
	// the mailbox. Consumers see an empty result set, not a hard failure.
	ErrMailboxUnavailable = errors.New("mailbox unavailable")
	// ErrInvalidInput is returned for empty or malformed identity/code input,
	// distinct from ErrNotAuthorized.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEngineNotReady is returned when a required dependency was not wired
	// through the Builder.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrStoreUnavailable wraps Redis failures surfaced by the ledgers.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Rejection pairs a taxonomy error with the user-facing message resolved
// from the settings message table (or its built-in default). The routing
// layer shows Message verbatim; errors.Is still matches the sentinel.
type Rejection struct {
	Err     error
	Message string
}

func (r *Rejection) Error() string { return r.Err.Error() }

func (r *Rejection) Unwrap() error { return r.Err }

func reject(err error, message string) error {
	return &Rejection{Err: err, Message: message}
}

// RejectionMessage extracts the user-facing message from err, or "" when
// err carries none.
func RejectionMessage(err error) string {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Message
	}
	return ""
}

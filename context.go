package codegate

import "context"

type callerIPContextKey struct{}
type referrerContextKey struct{}
type userAgentContextKey struct{}

// WithCallerIP attaches the resolved caller address to ctx. The Engine uses
// it for the blocked-address gate and audit events.
func WithCallerIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, callerIPContextKey{}, ip)
}

// WithReferrer attaches the request referrer to ctx for audit events.
func WithReferrer(ctx context.Context, referrer string) context.Context {
	return context.WithValue(ctx, referrerContextKey{}, referrer)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. It is recorded
// on the session at creation.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func callerIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(callerIPContextKey{}).(string)
	return ip
}

func referrerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ref, _ := ctx.Value(referrerContextKey{}).(string)
	return ref
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ua, _ := ctx.Value(userAgentContextKey{}).(string)
	return ua
}

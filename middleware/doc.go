// Package middleware exposes HTTP adapters for the codegate Engine.
//
// # Adapters
//
//   - [Annotate] — resolves caller IP, referrer and user agent and attaches
//     them to the request context for the audit trail.
//   - [SessionGuard] — liveness-checks the session named by the request
//     headers before letting the request through.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement admission logic itself — all decisions are delegated to
// Engine.CheckLiveness.
//
// # What this package must NOT do
//
//   - Read or write session records (Engine handles I/O).
//   - Make admission decisions beyond pass/reject from the Engine.
package middleware

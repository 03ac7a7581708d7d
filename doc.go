// Package codegate provides a session and verification gateway: identities
// prove control of a mailbox through one-time 6-digit codes, concurrent
// access is bounded by per-identity session budgets, and a mailbox
// correlation engine harvests codes relayed through a shared mailbox and
// resolves their true recipients.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// codegate is the public surface. It exposes [Engine], [Builder], [Config]
// and value types (Liveness, DiscoveredCode, Principal, etc.). Mailbox
// access lives in codegate/mailbox, outbound mail in codegate/mailer, the
// session ledger in codegate/session, and HTTP adapters in
// codegate/middleware.
//
// # What this package must NOT do
//
//   - Return or log verification codes to the requesting caller; codes
//     travel only through the configured Mailer.
//   - Trust a client-supplied identity without a store lookup.
//   - Let audit or geolocation failures block an admission decision.
//
// # Consistency contract
//
// Code consumption and budget decrement each execute as a single atomic
// Redis script: a verification code admits at most once, and concurrent
// verifications can never overdraw a session budget.
package codegate

// Package session is the Redis-backed ledger of active admission records.
//
// A record is keyed by (identity, token) and indexed per identity so both
// single-session logout and whole-identity resets stay cheap. All state
// transitions of a record during a liveness check — expiry validation,
// activity refresh, expiry slide, reload consumption — run inside one Lua
// script, so concurrent heartbeats against the same session cannot observe
// partial updates.
package session

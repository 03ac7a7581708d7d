package codegate

import (
	"context"

	"codegate/session"
)

// CheckLiveness validates the session heartbeat. A live session gets its
// last-activity refreshed and, when duration-limiting is on, its expiry
// slid forward by the full duration. With consumeReload set, one unit of
// the session's reload budget is spent (never below zero).
//
// A missing or expired record yields ErrSessionExpired; the expired record
// is deleted as part of the check.
func (e *Engine) CheckLiveness(ctx context.Context, identity, token string, consumeReload bool) (Liveness, error) {
	identity = NormalizeIdentity(identity)
	if identity == "" || token == "" {
		return Liveness{}, reject(ErrInvalidInput, e.settings.Messages(ctx).SessionExpired)
	}

	policy, err := e.settings.SessionPolicy(ctx)
	if err != nil {
		return Liveness{}, err
	}
	if consumeReload {
		reload, err := e.settings.ReloadPolicy(ctx)
		if err != nil {
			return Liveness{}, err
		}
		consumeReload = reload.Enabled
	}

	expiry := session.ExpiryDisabled
	if policy.DurationEnabled {
		expiry = session.ExpirySliding
	}

	now := e.clock.Now()
	res, err := e.sessions.Touch(ctx, identity, token, now, expiry, consumeReload)
	if err != nil {
		return Liveness{}, err
	}

	defer e.maybeSweep(ctx)

	if res.Status != session.TouchOK {
		e.metricInc(MetricSessionExpired)
		ev := newAuditEvent(auditSessionExpired, false)
		ev.Identity = identity
		e.emitAudit(ctx, ev)
		return Liveness{}, reject(ErrSessionExpired, e.settings.Messages(ctx).SessionExpired)
	}

	return Liveness{ReloadRemaining: res.ReloadRemaining, ExpiresAt: res.ExpiresAt}, nil
}

// maybeSweep runs the coarse stale-session GC at most once per GCInterval.
// Piggybacks on liveness traffic so no background goroutine is needed;
// failures are logged and the next due check retries.
func (e *Engine) maybeSweep(ctx context.Context) {
	now := e.clock.Now()
	last := e.lastSweepUnix.Load()
	if now.Unix()-last < int64(e.cfg.GCInterval.Seconds()) {
		return
	}
	if !e.lastSweepUnix.CompareAndSwap(last, now.Unix()) {
		return
	}

	cutoff := now.Add(-e.cfg.StaleSessionAge)
	purged, err := e.sessions.PurgeStale(ctx, cutoff)
	if err != nil {
		e.logger.Warn("stale session sweep failed", "error", err)
		return
	}
	if purged > 0 {
		e.metrics.Add(MetricSessionPurged, uint64(purged))
		e.logger.Info("stale sessions purged", "count", purged)
	}
}

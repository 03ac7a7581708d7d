package codegate

import (
	"context"
	"log/slog"
	"sync/atomic"

	"codegate/internal/clock"
	"codegate/session"
)

// Engine is the admission controller: it owns code issuance, verification,
// session liveness, logout and resets, and consumes the correlation
// engine's output. Safe for concurrent use after Builder.Build.
type Engine struct {
	cfg        Config
	settings   *SettingsStore
	principals *PrincipalStore
	codes      *VerificationStore
	sessions   *session.Store
	discovered *DiscoveredStore
	gate       ReputationGate
	mailer     Mailer
	harvester  Harvester
	geo        GeoLookup
	audit      *auditDispatcher
	metrics    *Metrics
	logger     *slog.Logger
	clock      clock.Clock

	lastSweepUnix atomic.Int64
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were shed under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// Settings exposes the settings store for the external admin surface.
func (e *Engine) Settings() *SettingsStore { return e.settings }

// Principals exposes the principal store for the external admin surface.
func (e *Engine) Principals() *PrincipalStore { return e.principals }

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

// emitAudit fills caller context into the event and hands it to the async
// dispatcher. Never fails: auditing must not block the primary flow.
func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e.audit == nil {
		return
	}
	if event.IP == "" {
		event.IP = callerIPFromContext(ctx)
	}
	if event.Referrer == "" {
		event.Referrer = referrerFromContext(ctx)
	}
	e.audit.Emit(ctx, event)
}

// lookupGeo resolves best-effort geolocation for the caller. Failures and
// private addresses come back empty.
func (e *Engine) lookupGeo(ctx context.Context, ip string) GeoInfo {
	if e.geo == nil {
		return GeoInfo{}
	}
	return e.geo.Lookup(ctx, ip)
}

// checkBlocked applies the reputation gate. It runs before every other
// check: a denylisted caller always sees ErrBlocked, never a more specific
// rejection. Gate lookup failures fail open — availability of the primary
// flow outranks the denylist.
func (e *Engine) checkBlocked(ctx context.Context, identity string) error {
	if e.gate == nil {
		return nil
	}
	ip := callerIPFromContext(ctx)
	blocked, err := e.gate.Contains(ctx, ip)
	if err != nil {
		e.logger.Warn("blocklist lookup failed", "error", err)
		return nil
	}
	if !blocked {
		return nil
	}

	e.metricInc(MetricBlocked)
	ev := newAuditEvent(auditBlocked, false)
	ev.Identity = identity
	ev.Error = ErrBlocked.Error()
	e.emitAudit(ctx, ev)

	return reject(ErrBlocked, e.settings.Messages(ctx).AddressBlocked)
}

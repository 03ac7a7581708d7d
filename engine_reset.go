package codegate

import "context"

// Logout removes one session. Idempotent; the identity's session budget is
// not restored.
func (e *Engine) Logout(ctx context.Context, identity, token string) error {
	identity = NormalizeIdentity(identity)
	if identity == "" || token == "" {
		return reject(ErrInvalidInput, "")
	}

	existed, err := e.sessions.Delete(ctx, identity, token)
	if err != nil {
		return err
	}

	ev := newAuditEvent(auditLogout, existed)
	ev.Identity = identity
	e.emitAudit(ctx, ev)
	if existed {
		e.logger.Info("session closed", "identity", identity)
	}
	return nil
}

// ResetPrincipal purges one identity's sessions and any pending
// verification code, and restores its budget and duration to the current
// policy defaults.
func (e *Engine) ResetPrincipal(ctx context.Context, identity string) error {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return reject(ErrInvalidInput, "")
	}

	policy, err := e.settings.SessionPolicy(ctx)
	if err != nil {
		return err
	}

	if _, err := e.sessions.DeleteIdentity(ctx, identity); err != nil {
		return err
	}
	if err := e.codes.Drop(ctx, identity); err != nil {
		return err
	}
	if err := e.principals.RestoreDefaults(ctx, identity, policy); err != nil {
		return err
	}

	e.logger.Info("principal reset", "identity", identity)
	return nil
}

// ResetAllSessions clears the whole session and verification ledgers and
// restores every principal to the policy defaults. Every caller must
// verify again afterwards.
func (e *Engine) ResetAllSessions(ctx context.Context) error {
	policy, err := e.settings.SessionPolicy(ctx)
	if err != nil {
		return err
	}

	removed, err := e.sessions.DeleteAll(ctx)
	if err != nil {
		return err
	}
	if err := e.codes.DropAll(ctx); err != nil {
		return err
	}
	restored, err := e.principals.RestoreAllDefaults(ctx, policy)
	if err != nil {
		return err
	}

	e.metricInc(MetricGlobalReset)
	ev := newAuditEvent(auditGlobalReset, true)
	e.emitAudit(ctx, ev)
	e.logger.Info("global session reset", "sessions_removed", removed, "principals_restored", restored)
	return nil
}

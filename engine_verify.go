package codegate

import (
	"context"
	"errors"
	"strings"
	"time"

	"codegate/internal"
	"codegate/session"
)

// VerifyCode matches the submitted code against the live one for identity
// and, on success, consumes it, decrements the identity's session budget
// and opens a session. Returns the opaque session token.
//
// Non-digit characters in the submitted code are stripped before matching,
// so "042-139" and "042 139" verify against code 042139.
//
// The consume and the budget decrement are each single atomic units, so a
// code admits at most once and two concurrent verifications can never
// overdraw a budget of one.
func (e *Engine) VerifyCode(ctx context.Context, identity, code string) (string, error) {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		e.metricInc(MetricVerifyFailure)
		return "", reject(ErrInvalidInput, e.settings.Messages(ctx).InvalidCode)
	}

	if err := e.checkBlocked(ctx, identity); err != nil {
		e.metricInc(MetricVerifyFailure)
		return "", err
	}

	code = digitsOnly(code)
	if !isSixDigits(code) {
		e.metricInc(MetricVerifyFailure)
		return "", reject(ErrInvalidInput, e.settings.Messages(ctx).InvalidCode)
	}

	if err := e.codes.Consume(ctx, identity, code); err != nil {
		if !errors.Is(err, errCodeMismatch) {
			e.metricInc(MetricVerifyFailure)
			return "", err
		}
		e.metricInc(MetricVerifyFailure)
		e.auditLogin(ctx, identity, false, ErrInvalidCode)
		return "", reject(ErrInvalidCode, e.settings.Messages(ctx).InvalidCode)
	}

	policy, err := e.settings.SessionPolicy(ctx)
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		return "", err
	}

	now := e.clock.Now()
	admitted, err := e.principals.Admit(ctx, identity, policy, now)
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		return "", err
	}
	switch admitted {
	case admitNotFound:
		e.metricInc(MetricVerifyFailure)
		e.auditLogin(ctx, identity, false, ErrNotAuthorized)
		return "", reject(ErrNotAuthorized, e.settings.Messages(ctx).NotAuthorized)
	case admitExhausted:
		e.metricInc(MetricLimitReached)
		ev := newAuditEvent(auditLimitReached, false)
		ev.Identity = identity
		e.emitAudit(ctx, ev)
		return "", reject(ErrSessionLimitReached, e.settings.Messages(ctx).SessionLimitReached)
	}

	sess, err := e.openSession(ctx, identity, policy, now)
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		return "", err
	}

	e.metricInc(MetricVerifySuccess)
	e.auditLogin(ctx, identity, true, nil)
	e.logger.Info("identity verified", "identity", identity)
	return sess.Token, nil
}

func (e *Engine) openSession(ctx context.Context, identity string, policy SessionPolicy, now time.Time) (*session.Session, error) {
	token, err := internal.NewSessionToken()
	if err != nil {
		return nil, err
	}

	sess := &session.Session{
		Identity:     identity,
		Token:        token,
		CreatedAt:    now,
		LastActivity: now,
		UserAgent:    userAgentFromContext(ctx),
		IP:           callerIPFromContext(ctx),
	}

	if policy.DurationEnabled {
		principal, err := e.principals.Get(ctx, identity)
		if err != nil {
			return nil, err
		}
		if minutes := principal.EffectiveDuration(policy); minutes > 0 {
			sess.DurationMinutes = minutes
			sess.ExpiresAt = now.Add(time.Duration(minutes) * time.Minute)
		}
	}

	reload, err := e.settings.ReloadPolicy(ctx)
	if err != nil {
		return nil, err
	}
	if reload.Enabled {
		sess.ReloadRemaining = reload.Limit
	}

	if err := e.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (e *Engine) auditLogin(ctx context.Context, identity string, success bool, cause error) {
	ev := newAuditEvent(auditLoginSuccess, success)
	if !success {
		ev.Action = auditLoginFailed
	}
	ev.Identity = identity
	if cause != nil {
		ev.Error = cause.Error()
	}
	if ip := callerIPFromContext(ctx); ip != "" {
		ev.Country = e.lookupGeo(ctx, ip).Country
	}
	e.emitAudit(ctx, ev)
}

// digitsOnly strips every non-digit byte from the submitted code.
func digitsOnly(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func isSixDigits(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

package codegate

import (
	"context"
	"errors"
	"fmt"

	"codegate/internal"
)

// IssueCode generates a fresh verification code for identity, stores it
// with the configured TTL (replacing any prior code) and mails it to the
// identity's address. The code is never returned to the caller.
//
// When delivery fails the stored code stays live: the recipient may still
// receive a delayed message, and a repeat request simply replaces it.
func (e *Engine) IssueCode(ctx context.Context, identity string) error {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		e.metricInc(MetricIssueFailure)
		return reject(ErrInvalidInput, e.settings.Messages(ctx).NotAuthorized)
	}

	if err := e.checkBlocked(ctx, identity); err != nil {
		e.metricInc(MetricIssueFailure)
		return err
	}

	principal, err := e.principals.Get(ctx, identity)
	if errors.Is(err, errPrincipalNotFound) {
		e.metricInc(MetricIssueFailure)
		e.auditIssue(ctx, identity, false, ErrNotAuthorized)
		return reject(ErrNotAuthorized, e.settings.Messages(ctx).NotAuthorized)
	}
	if err != nil {
		e.metricInc(MetricIssueFailure)
		return err
	}

	// Pre-check only: the authoritative budget guard runs atomically at
	// verification time.
	policy, err := e.settings.SessionPolicy(ctx)
	if err != nil {
		e.metricInc(MetricIssueFailure)
		return err
	}
	if policy.LimitEnabled && principal.EffectiveRemaining(policy) <= 0 {
		e.metricInc(MetricLimitReached)
		ev := newAuditEvent(auditLimitReached, false)
		ev.Identity = identity
		e.emitAudit(ctx, ev)
		return reject(ErrSessionLimitReached, e.settings.Messages(ctx).SessionLimitReached)
	}

	code, err := internal.NewCode()
	if err != nil {
		e.metricInc(MetricIssueFailure)
		return err
	}
	if err := e.codes.Put(ctx, identity, code, e.clock.Now()); err != nil {
		e.metricInc(MetricIssueFailure)
		return err
	}

	if err := e.deliverCode(ctx, identity, code); err != nil {
		e.metricInc(MetricDeliveryFailure)
		e.auditIssue(ctx, identity, false, err)
		e.logger.Warn("code delivery failed", "identity", identity, "error", err)
		return reject(fmt.Errorf("%w: %v", ErrDeliveryFailed, err), "")
	}

	e.metricInc(MetricCodeIssued)
	e.auditIssue(ctx, identity, true, nil)
	e.logger.Info("verification code issued", "identity", identity)
	return nil
}

func (e *Engine) deliverCode(ctx context.Context, identity, code string) error {
	if e.mailer == nil {
		return ErrEngineNotReady
	}

	mail, err := e.settings.Mail(ctx)
	if err != nil {
		return err
	}
	subject := e.settings.Messages(ctx).CodeSubject

	textBody := fmt.Sprintf("Seu código de acesso é: %s\n\nEste código expira em %d minutos.",
		code, int(e.cfg.CodeTTL.Minutes()))
	htmlBody := fmt.Sprintf(
		`<div style="font-family:sans-serif"><p>Seu código de acesso é:</p><h2 style="letter-spacing:4px">%s</h2><p>Este código expira em %d minutos.</p></div>`,
		code, int(e.cfg.CodeTTL.Minutes()))

	sendCtx, cancel := context.WithTimeout(ctx, e.cfg.MailTimeout)
	defer cancel()
	return e.mailer.Send(sendCtx, mail.SMTP, identity, subject, textBody, htmlBody)
}

func (e *Engine) auditIssue(ctx context.Context, identity string, success bool, cause error) {
	ev := newAuditEvent(auditCodeIssued, success)
	ev.Identity = identity
	if cause != nil {
		ev.Error = cause.Error()
	}
	e.emitAudit(ctx, ev)
}

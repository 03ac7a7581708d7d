package codegate

import "context"

// DiscoveredCodes runs one correlation pass against the relay mailbox and
// returns the newest harvested codes, capped by the display limit. A
// non-empty identity keeps only codes resolved to that recipient.
//
// Mailbox failures degrade to previously stored results: the harvester
// reports an empty batch and the capped list serves whatever it already
// holds. A limit <= 0 uses the codeDisplayLimit settings document.
func (e *Engine) DiscoveredCodes(ctx context.Context, identity string, limit int) ([]DiscoveredCode, error) {
	identity = NormalizeIdentity(identity)
	if limit <= 0 {
		limit = e.settings.DisplayLimit(ctx, e.cfg.DisplayLimitDefault)
	}

	if e.harvester != nil {
		mail, err := e.settings.Mail(ctx)
		if err != nil {
			return nil, err
		}
		batch := e.harvester.Harvest(ctx, mail.IMAP, identity, limit)
		for _, dc := range batch {
			// Best effort: a persist failure loses one record, not the batch.
			if err := e.discovered.Append(ctx, dc, limit); err != nil {
				e.logger.Warn("discovered code persist failed", "error", err)
			}
		}
		if len(batch) > 0 {
			ev := newAuditEvent(auditCodesReloaded, true)
			ev.Identity = identity
			e.emitAudit(ctx, ev)
		}
	}

	return e.discovered.Recent(ctx, identity, limit)
}

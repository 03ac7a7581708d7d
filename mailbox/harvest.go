package mailbox

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"codegate"
	"codegate/internal/clock"
)

// Fetcher retrieves raw candidate messages (header + body, RFC 5322 bytes)
// from the relay mailbox, newest first, capped to max.
type Fetcher interface {
	Fetch(ctx context.Context, cfg codegate.IMAPConfig, since time.Time, max int) ([][]byte, error)
}

// Harvester runs mailbox correlation passes: fetch candidates, extract the
// 6-digit code, resolve the true recipient from forwarding headers.
//
// Connection, authentication and search failures are downgraded to "zero
// results": the consumer sees an empty slice and may fall back to
// previously discovered codes.
type Harvester struct {
	fetcher  Fetcher
	attempts int
	window   time.Duration
	logger   *slog.Logger
	metrics  *codegate.Metrics
	clk      clock.Clock
}

// NewHarvester wires a harvester. attempts bounds the retry loop; the
// first attempt that yields any code stops it.
func NewHarvester(fetcher Fetcher, attempts int, window time.Duration, logger *slog.Logger, metrics *codegate.Metrics) *Harvester {
	if attempts <= 0 {
		attempts = 2
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Harvester{
		fetcher:  fetcher,
		attempts: attempts,
		window:   window,
		logger:   logger,
		metrics:  metrics,
		clk:      clock.Real(),
	}
}

// WithClock replaces the harvester's time source for the lookback window
// and the FetchedAt stamp.
func (h *Harvester) WithClock(clk clock.Clock) *Harvester {
	if clk != nil {
		h.clk = clk
	}
	return h
}

// Harvest performs up to the configured number of fetch attempts and
// returns the codes of the first non-empty one. Partial results are
// accepted as-is; only fully empty attempts are retried.
func (h *Harvester) Harvest(ctx context.Context, cfg codegate.IMAPConfig, target string, limit int) []codegate.DiscoveredCode {
	batch := uuid.NewString()

	for attempt := 1; attempt <= h.attempts; attempt++ {
		if attempt > 1 {
			h.metrics.Inc(codegate.MetricHarvestRetry)
			h.logger.Debug("retrying mailbox fetch", "batch", batch, "attempt", attempt)
		}
		found := h.harvestOnce(ctx, cfg, target, limit, batch)
		if len(found) > 0 {
			h.metrics.Add(codegate.MetricCodesHarvested, uint64(len(found)))
			return found
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

func (h *Harvester) harvestOnce(ctx context.Context, cfg codegate.IMAPConfig, target string, limit int, batch string) []codegate.DiscoveredCode {
	since := h.clk.Now().Add(-h.window)

	raw, err := h.fetcher.Fetch(ctx, cfg, since, limit)
	if err != nil {
		h.metrics.Inc(codegate.MetricMailboxError)
		h.logger.Warn("mailbox fetch failed", "batch", batch, "error", err)
		return nil
	}

	var found []codegate.DiscoveredCode
	for _, msg := range raw {
		header, body := splitMessage(msg)

		code := ExtractCode(decodeBody(msg, body))
		if code == "" {
			continue
		}

		recipient := ResolveRecipient(header, cfg.Housekeeping)
		if target != "" && !strings.EqualFold(recipient, target) {
			continue
		}

		found = append(found, codegate.DiscoveredCode{
			Code:      code,
			Recipient: recipient,
			FetchedAt: h.clk.Now(),
		})
	}
	return found
}

// splitMessage separates the raw header block from the body.
func splitMessage(msg []byte) (header string, body []byte) {
	if i := bytes.Index(msg, []byte("\r\n\r\n")); i >= 0 {
		return string(msg[:i]), msg[i+4:]
	}
	if i := bytes.Index(msg, []byte("\n\n")); i >= 0 {
		return string(msg[:i]), msg[i+2:]
	}
	return string(msg), nil
}

// decodeBody applies MIME and transfer-encoding decoding (quoted-printable
// included) before code extraction, preferring text parts. Messages that
// fail to parse fall back to the raw body bytes so soft-break artifacts
// still match.
func decodeBody(full, rawBody []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(full))
	if err != nil {
		return string(rawBody)
	}

	var plain, html strings.Builder
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := inline.ContentType()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch contentType {
		case "text/plain":
			plain.Write(data)
		case "text/html":
			html.Write(data)
		}
	}

	if plain.Len() > 0 {
		return plain.String()
	}
	if html.Len() > 0 {
		return html.String()
	}
	return string(rawBody)
}

package codegate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Audit actions emitted by the engine.
const (
	auditCodeIssued     = "code_issued"
	auditLoginSuccess   = "login_success"
	auditLoginFailed    = "login_failed"
	auditLimitReached   = "session_limit_reached"
	auditCodesReloaded  = "codes_reloaded"
	auditSessionExpired = "session_expired"
	auditLogout         = "logout"
	auditBlocked        = "blocked_address"
	auditGlobalReset    = "global_reset"
)

// AuditEvent is one security-relevant occurrence. Country is best-effort
// geolocation; empty when the lookup failed or was skipped.
type AuditEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Identity  string    `json:"identity,omitempty"`
	Action    string    `json:"action"`
	Success   bool      `json:"success"`
	IP        string    `json:"ip,omitempty"`
	Country   string    `json:"country,omitempty"`
	Referrer  string    `json:"referrer,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// AuditSink receives events from the dispatcher. Emit must not panic;
// slow sinks only delay (or drop) audit delivery, never the primary flow.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a channel, for callers that stream the
// trail elsewhere.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON line per event.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// RedisSink appends events to a capped list, newest first. Write failures
// are swallowed: audit persistence must never block the primary flow.
type RedisSink struct {
	redis *redis.Client
	key   string
	cap   int64
}

func NewRedisSink(client *redis.Client, prefix string, cap int) *RedisSink {
	if cap <= 0 {
		cap = 10000
	}
	return &RedisSink{redis: client, key: prefix + ":audit", cap: int64(cap)}
}

func (s *RedisSink) Emit(ctx context.Context, event AuditEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	pipe := s.redis.TxPipeline()
	pipe.LPush(ctx, s.key, data)
	pipe.LTrim(ctx, s.key, 0, s.cap-1)
	_, _ = pipe.Exec(ctx)
}

// Recent returns up to limit stored events, newest first.
func (s *RedisSink) Recent(ctx context.Context, limit int) ([]AuditEvent, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := s.redis.LRange(ctx, s.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	out := make([]AuditEvent, 0, len(raw))
	for _, item := range raw {
		var ev AuditEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func newAuditEvent(action string, success bool) AuditEvent {
	return AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Action:    action,
		Success:   success,
	}
}

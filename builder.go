package codegate

import (
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"codegate/internal/clock"
	"codegate/session"
)

// Builder assembles an Engine. Redis is the only required dependency;
// mailer, harvester, geolocation and audit sink are optional and the
// engine degrades per operation when they are absent.
type Builder struct {
	redis     *redis.Client
	cfg       Config
	sink      AuditSink
	mailer    Mailer
	harvester Harvester
	gate      ReputationGate
	geo       GeoLookup
	logger    *slog.Logger
	clock     clock.Clock
}

func New() *Builder {
	return &Builder{cfg: defaultConfig()}
}

// WithRedis sets the backing Redis client. Required.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithConfig overrides the static configuration. Zero fields keep their
// defaults.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg.withDefaults()
	return b
}

// WithAuditSink sets the destination for audit events. Defaults to a
// Redis-backed capped list on the same client.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithMailer sets the outbound code transport. Without one, IssueCode
// stores the code but returns ErrDeliveryFailed.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithHarvester sets the mailbox correlation engine, typically
// mailbox.NewHarvester. Without one, DiscoveredCodes serves only
// previously stored results.
func (b *Builder) WithHarvester(h Harvester) *Builder {
	b.harvester = h
	return b
}

// WithReputationGate overrides the blocked-address gate. Defaults to the
// Redis-backed Blocklist on the same client.
func (b *Builder) WithReputationGate(g ReputationGate) *Builder {
	b.gate = g
	return b
}

// WithGeoLookup sets the audit geolocation resolver. Defaults to NoGeo.
func (b *Builder) WithGeoLookup(g GeoLookup) *Builder {
	b.geo = g
	return b
}

// WithLogger sets the structured logger. Defaults to a discard logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock injects a time source, for tests.
func (b *Builder) WithClock(c clock.Clock) *Builder {
	b.clock = c
	return b
}

// Build validates the wiring and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.redis == nil {
		return nil, ErrEngineNotReady
	}

	cfg := b.cfg.withDefaults()

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clk := b.clock
	if clk == nil {
		clk = clock.Real()
	}
	geo := b.geo
	if geo == nil {
		geo = NoGeo{}
	}

	var gate ReputationGate
	if b.gate != nil {
		gate = b.gate
	} else {
		gate = NewBlocklist(b.redis, cfg.KeyPrefix)
	}

	sink := b.sink
	if sink == nil && cfg.Audit.Enabled {
		sink = NewRedisSink(b.redis, cfg.KeyPrefix, 0)
	}

	e := &Engine{
		cfg:        cfg,
		settings:   NewSettingsStore(b.redis, cfg.KeyPrefix),
		principals: NewPrincipalStore(b.redis, cfg.KeyPrefix),
		codes:      NewVerificationStore(b.redis, cfg.KeyPrefix, cfg.CodeTTL),
		sessions:   session.NewStore(b.redis, cfg.KeyPrefix),
		discovered: NewDiscoveredStore(b.redis, cfg.KeyPrefix),
		gate:       gate,
		mailer:     b.mailer,
		harvester:  b.harvester,
		geo:        geo,
		audit:      newAuditDispatcher(cfg.Audit, sink),
		metrics:    NewMetrics(),
		logger:     logger,
		clock:      clk,
	}
	e.lastSweepUnix.Store(clk.Now().Unix())
	return e, nil
}

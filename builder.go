package authsync

import (
	"context"
	"errors"
	"log"

	"github.com/MrEthical07/authsync/clock"
	"github.com/MrEthical07/authsync/persist"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a SessionStore. Stores are explicit, constructed
// instances with defined creation and teardown — there is no package-level
// singleton — so an embedding UI owns exactly one per context and tears it
// down with [SessionStore.Close].
type Builder struct {
	config Config

	backend Backend
	storage persist.Store
	redis   *redis.Client
	clk     clock.Clock

	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBackend sets the external authentication provider. Required.
func (b *Builder) WithBackend(backend Backend) *Builder {
	b.backend = backend
	return b
}

// WithPersistence sets the projection store. Defaults to an in-process
// store when neither this nor WithRedis is used.
func (b *Builder) WithPersistence(store persist.Store) *Builder {
	b.storage = store
	return b
}

// WithRedis persists the projection in Redis under
// Config.Persistence.RedisPrefix. WithPersistence takes precedence.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithClock injects a time source; tests pass [clock.NewFake].
func (b *Builder) WithClock(clk clock.Clock) *Builder {
	b.clk = clk
	return b
}

// WithAuditSink receives audit events when auditing is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithAuditEnabled toggles the audit dispatcher.
func (b *Builder) WithAuditEnabled(enabled bool) *Builder {
	b.config.Audit.Enabled = enabled
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the login latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, restores any persisted projection, and
// returns a ready store. The restore happens before the store is handed to
// callers, so the first rendered snapshot already carries the prior
// session's identity (flagged Restored until the backend confirms it).
func (b *Builder) Build() (*SessionStore, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.backend == nil {
		return nil, errors.New("backend required")
	}

	clk := b.clk
	if clk == nil {
		clk = clock.Real()
	}

	storage := b.storage
	if storage == nil && b.redis != nil {
		storage = persist.NewRedis(b.redis, cfg.Persistence.RedisPrefix, cfg.Persistence.TTL)
	}
	if storage == nil {
		storage = persist.NewMemory()
	}

	store := &SessionStore{
		config:  cfg,
		backend: b.backend,
		storage: storage,
		clk:     clk,
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		subs:    make(map[uint64]func(State)),
	}

	store.restore(context.Background())

	b.built = true
	return store, nil
}

// restore seeds the state from durable storage. Any failure degrades to "no
// prior session"; startup never breaks over bad or missing data.
func (s *SessionStore) restore(ctx context.Context) {
	if !s.config.Persistence.Enabled || s.storage == nil {
		return
	}

	projection, ok, err := s.storage.Load(ctx)
	if err != nil {
		log.Print("authsync: projection load failed")
		return
	}
	if !ok || projection.Empty() {
		return
	}

	user := &User{
		ID:    projection.UserID,
		Email: projection.Email,
		Name:  projection.Name,
	}
	if len(projection.Extra) > 0 {
		user.Extra = make(map[string]string, len(projection.Extra))
		for k, v := range projection.Extra {
			user.Extra[k] = v
		}
	}

	s.mu.Lock()
	s.state = State{
		User:            user,
		IsAuthenticated: projection.Authenticated,
		Restored:        true,
	}
	s.mu.Unlock()

	s.metricInc(MetricStateRestored)
	s.emitAudit(ctx, auditEventStateRestored, true, user, nil, nil)
}

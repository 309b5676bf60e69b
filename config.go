package authsync

import (
	"errors"
	"time"
)

// Config carries the tunables of the session core. Zero values are filled
// by defaultConfig; construct through [New] and override with
// [Builder.WithConfig].
type Config struct {
	Persistence PersistenceConfig
	Token       TokenConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

// PersistenceConfig controls projection storage.
type PersistenceConfig struct {
	// Enabled gates all Save/Load/Clear traffic. When false the store
	// behaves as if every startup had no prior session.
	Enabled bool

	// RedisPrefix namespaces the projection key when Builder.WithRedis is
	// used.
	RedisPrefix string

	// TTL bounds the projection's lifetime in shared storage (Redis only).
	// Zero keeps it until logout clears it.
	TTL time.Duration
}

// TokenConfig controls local credential introspection.
type TokenConfig struct {
	// IntrospectExpiry enables reading the exp claim of JWT-shaped
	// credentials so an already-dead session reports unauthenticated
	// without a backend round-trip.
	IntrospectExpiry bool

	// ExpiryLeeway is tolerated clock skew, in the credential's favor.
	ExpiryLeeway time.Duration
}

// AuditConfig controls the async audit event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int

	// DropIfFull drops events instead of blocking the emitting operation
	// when the buffer is saturated.
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool

	// EnableLatencyHistograms additionally records the login round-trip
	// latency histogram.
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Persistence: PersistenceConfig{
			Enabled:     true,
			RedisPrefix: "authsync",
		},
		Token: TokenConfig{
			IntrospectExpiry: true,
			ExpiryLeeway:     30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are values today; the clone exists so later reference
	// fields cannot alias caller state.
	return cfg
}

// Validate checks the configuration for values the core cannot operate
// with.
func (c *Config) Validate() error {
	if c.Persistence.TTL < 0 {
		return errors.New("persistence TTL must not be negative")
	}
	if c.Token.ExpiryLeeway < 0 || c.Token.ExpiryLeeway > 5*time.Minute {
		return errors.New("token expiry leeway out of range")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("audit buffer size must not be negative")
	}
	return nil
}

package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/fleetwatch/secret"
)

// ErrInvalid is returned for configuration that fails validation.
var ErrInvalid = errors.New("config: invalid")

// Strategies for scheduled task checks.
const (
	StrategyLazy     = "lazy"
	StrategyRealtime = "realtime"
	StrategyBoth     = "both"
)

// Observation store backends.
const (
	BackendRedis  = "redis"
	BackendNATS   = "nats"
	BackendMemory = "memory"
)

// Config is the complete fleetwatch configuration.
type Config struct {
	// StorageTTL is the expiry of durable observations.
	StorageTTL Duration `yaml:"storage_ttl"`
	// Tolerance is the probe interval: the camera flush period and the
	// slack granted to real-time and estimate checks.
	Tolerance Duration `yaml:"tolerance"`
	// SyncInterval is how often the scheduler persists last run times.
	SyncInterval Duration `yaml:"sync_interval"`
	// SyncEvery, when positive, means the scheduler persists after that many
	// runs instead of on a timer, so no sync slack is granted.
	SyncEvery int `yaml:"sync_every"`

	WorkerTimeout     Duration `yaml:"worker_timeout"`
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	CheckTimeout      Duration `yaml:"check_timeout"`

	Strategy string `yaml:"strategy"`
	Backend  string `yaml:"backend"`
	PIDFile  string `yaml:"pidfile"`

	Redis    RedisConfig    `yaml:"redis"`
	NATS     NATSConfig     `yaml:"nats"`
	Files    FilesConfig    `yaml:"files"`
	Postgres PostgresConfig `yaml:"postgres"`
	HTTP     HTTPConfig     `yaml:"http"`
	Observe  ObserveConfig  `yaml:"observe"`
	Secrets  SecretsConfig  `yaml:"secrets"`
}

// RedisConfig selects the Redis observation store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// NATSConfig configures the NATS connection, KV store, events and probes.
type NATSConfig struct {
	URL           string   `yaml:"url"`
	Bucket        string   `yaml:"bucket"`
	EventsSubject string   `yaml:"events_subject"`
	PingSubject   string   `yaml:"ping_subject"`
	QueuePrefix   string   `yaml:"queue_prefix"`
	Queues        []string `yaml:"queues"`
}

// FilesConfig locates the local ready and alive markers.
type FilesConfig struct {
	Dir string `yaml:"dir"`
}

// PostgresConfig locates the scheduler's task tables.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// HTTPConfig configures the health endpoints.
type HTTPConfig struct {
	Addr      string `yaml:"addr"`
	JWTSecret string `yaml:"jwt_secret"`
}

// ObserveConfig configures logging, tracing and metrics.
type ObserveConfig struct {
	ServiceName     string  `yaml:"service_name"`
	LogLevel        string  `yaml:"log_level"`
	TracingExporter string  `yaml:"tracing_exporter"`
	MetricsExporter string  `yaml:"metrics_exporter"`
	SamplePct       float64 `yaml:"sample_pct"`
}

// SecretsConfig configures secretref resolution.
type SecretsConfig struct {
	// Dir resolves relative file references.
	Dir string `yaml:"dir"`
}

// Default returns the configuration used for absent fields.
func Default() Config {
	return Config{
		StorageTTL:        Duration(30 * time.Second),
		Tolerance:         Duration(10 * time.Second),
		SyncInterval:      Duration(180 * time.Second),
		WorkerTimeout:     Duration(30 * time.Second),
		HeartbeatInterval: Duration(time.Second),
		CheckTimeout:      Duration(10 * time.Second),
		Strategy:          StrategyBoth,
		Backend:           BackendRedis,
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   5,
		},
		NATS: NATSConfig{
			URL:    "nats://localhost:4222",
			Bucket: "fleetwatch",
		},
		Files: FilesConfig{Dir: filepath.Join(os.TempDir(), "fleetwatch")},
		HTTP:  HTTPConfig{Addr: ":8000"},
		Observe: ObserveConfig{
			ServiceName:     "fleetwatch",
			LogLevel:        "info",
			TracingExporter: "none",
			MetricsExporter: "prometheus",
		},
	}
}

// Load reads, expands, resolves and validates the file at path.
func Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.ResolveSecrets(ctx, secret.DefaultResolver(cfg.Secrets.Dir)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data over Default, expanding ${VAR} in every scalar, and
// validates the result. Secret references are left untouched.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return &cfg, cfg.Validate()
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := expandNode(&root); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := root.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandNode expands environment references in every scalar below n.
// Mapping keys are left alone.
func expandNode(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		v, err := secret.ExpandEnvStrict(n.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		n.Value = v
	case yaml.MappingNode:
		for i := 1; i < len(n.Content); i += 2 {
			if err := expandNode(n.Content[i]); err != nil {
				return err
			}
		}
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			if err := expandNode(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// ResolveSecrets resolves secretref values in credential fields.
func (c *Config) ResolveSecrets(ctx context.Context, r *secret.Resolver) error {
	fields := []struct {
		name string
		val  *string
	}{
		{"redis.password", &c.Redis.Password},
		{"postgres.dsn", &c.Postgres.DSN},
		{"http.jwt_secret", &c.HTTP.JWTSecret},
	}
	for _, f := range fields {
		if err := r.ResolveFields(ctx, f.val); err != nil {
			return fmt.Errorf("config: %s: %w", f.name, err)
		}
	}
	return nil
}

// EffectiveSyncInterval is the sync slack granted to lazy checks.
func (c *Config) EffectiveSyncInterval() time.Duration {
	if c.SyncEvery > 0 {
		return 0
	}
	return c.SyncInterval.Std()
}

// Validate reports the first invalid setting, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	durations := []struct {
		name string
		d    Duration
	}{
		{"storage_ttl", c.StorageTTL},
		{"tolerance", c.Tolerance},
		{"worker_timeout", c.WorkerTimeout},
		{"heartbeat_interval", c.HeartbeatInterval},
		{"check_timeout", c.CheckTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, d.name, d.d)
		}
	}
	if c.SyncInterval < 0 {
		return fmt.Errorf("%w: sync_interval must not be negative", ErrInvalid)
	}
	if c.SyncEvery < 0 {
		return fmt.Errorf("%w: sync_every must not be negative", ErrInvalid)
	}

	switch c.Strategy {
	case StrategyLazy, StrategyRealtime, StrategyBoth:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalid, c.Strategy)
	}

	switch c.Backend {
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis.addr is required", ErrInvalid)
		}
	case BackendNATS:
		if c.NATS.URL == "" || c.NATS.Bucket == "" {
			return fmt.Errorf("%w: nats.url and nats.bucket are required", ErrInvalid)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Backend)
	}

	if c.Redis.DB < 0 {
		return fmt.Errorf("%w: redis.db must not be negative", ErrInvalid)
	}
	if c.Observe.SamplePct < 0 || c.Observe.SamplePct > 1 {
		return fmt.Errorf("%w: observe.sample_pct must be within [0, 1]", ErrInvalid)
	}
	return nil
}

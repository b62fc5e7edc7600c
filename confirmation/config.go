package confirmation

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentgate/agentgate/cache"
	"github.com/agentgate/agentgate/core"
)

// Config holds the confirmation subsystem's knobs.
//
// Configuration priority:
//  1. Explicit values / YAML file (highest)
//  2. Environment variables (AGENTGATE_TTL_MINUTES, REDIS_URL,
//     AGENTGATE_REDIS_DB, AGENTGATE_NAMESPACE)
//  3. Defaults
type Config struct {
	// TTLMinutes is the pending-action lifetime in minutes. Fractional
	// values are allowed (0.1 = six seconds).
	TTLMinutes float64 `yaml:"ttl_minutes"`

	// RedisURL is the cache backend connection string.
	RedisURL string `yaml:"redis_url"`

	// RedisDB selects the Redis database number (0-15).
	RedisDB int `yaml:"redis_db"`

	// Namespace is the cache key prefix for this subsystem.
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		TTLMinutes: 10,
		RedisURL:   "redis://localhost:6379",
		RedisDB:    0,
		Namespace:  Namespace,
	}
}

// TTL converts the configured lifetime into a duration.
func (c Config) TTL() time.Duration {
	return time.Duration(c.TTLMinutes * float64(time.Minute))
}

// Validate checks the configuration for obvious mistakes.
func (c Config) Validate() error {
	if c.TTLMinutes <= 0 {
		return fmt.Errorf("ttl_minutes must be positive, got %v: %w", c.TTLMinutes, core.ErrInvalidConfiguration)
	}
	if c.Namespace == "" {
		return fmt.Errorf("namespace must not be empty: %w", core.ErrInvalidConfiguration)
	}
	return nil
}

// LoadConfig builds a Config from defaults, an optional YAML file, and
// environment overrides, in that order.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w (check YAML syntax)", path, err)
		}
	}

	if v := os.Getenv("AGENTGATE_TTL_MINUTES"); v != "" {
		minutes, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid AGENTGATE_TTL_MINUTES %q: %w", v, core.ErrInvalidConfiguration)
		}
		cfg.TTLMinutes = minutes
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("AGENTGATE_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid AGENTGATE_REDIS_DB %q: %w", v, core.ErrInvalidConfiguration)
		}
		cfg.RedisDB = db
	}
	if v := os.Getenv("AGENTGATE_NAMESPACE"); v != "" {
		cfg.Namespace = v
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// NewServiceFromConfig wires a Redis-backed service: cache provider, store,
// and the default formatter registry. Applications that need a custom
// registry or an in-memory provider compose the pieces directly.
func NewServiceFromConfig(cfg Config, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider, err := cache.NewRedisProvider(
		cache.WithRedisURL(cfg.RedisURL),
		cache.WithRedisDB(cfg.RedisDB),
		cache.WithNamespace(cfg.Namespace),
		cache.WithDefaultTTL(cfg.TTL()),
	)
	if err != nil {
		return nil, err
	}

	store := NewPendingActionStore(provider, WithStoreTTL(cfg.TTL()))
	return NewService(store, DefaultRegistry(), opts...), nil
}

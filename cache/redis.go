package cache

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/agentgate/agentgate/core"
	"github.com/agentgate/agentgate/telemetry"
)

// RedisProvider implements Provider on a Redis connection pool.
//
// Wire usage per operation: SET key value EX ttl, GET, DEL, EXISTS,
// EXPIRE, TTL, INCRBY, SADD, SREM, SMEMBERS, and SCAN with a
// "{namespace}:*" pattern for ClearNamespace. No Lua scripts, no
// transactions - operations are individually atomic and consumers
// tolerate the gaps between them.
type RedisProvider struct {
	client     *redis.Client
	namespace  string
	defaultTTL time.Duration
	redisURL   string // For error messages

	logger core.Logger // Defaults to NoOp
}

type redisProviderConfig struct {
	redisURL   string
	redisDB    int
	namespace  string
	defaultTTL time.Duration
	client     *redis.Client
	logger     core.Logger
}

// RedisProviderOption configures a RedisProvider.
type RedisProviderOption func(*redisProviderConfig)

// WithRedisURL sets the Redis connection URL.
func WithRedisURL(url string) RedisProviderOption {
	return func(c *redisProviderConfig) {
		c.redisURL = url
	}
}

// WithRedisDB sets the Redis database number (0-15).
func WithRedisDB(db int) RedisProviderOption {
	return func(c *redisProviderConfig) {
		c.redisDB = db
	}
}

// WithNamespace sets the key prefix for this provider instance.
func WithNamespace(namespace string) RedisProviderOption {
	return func(c *redisProviderConfig) {
		if namespace != "" {
			c.namespace = namespace
		}
	}
}

// WithDefaultTTL sets the TTL applied when Set receives none.
func WithDefaultTTL(ttl time.Duration) RedisProviderOption {
	return func(c *redisProviderConfig) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithRedisClient injects an existing client, bypassing URL parsing and
// the connection check. Used by tests and by applications that share one
// pool across providers.
func WithRedisClient(client *redis.Client) RedisProviderOption {
	return func(c *redisProviderConfig) {
		c.client = client
	}
}

// WithRedisLogger sets the logger.
func WithRedisLogger(logger core.Logger) RedisProviderOption {
	return func(c *redisProviderConfig) {
		if logger == nil {
			return
		}
		if cal, ok := logger.(core.ComponentAwareLogger); ok {
			c.logger = cal.WithComponent("agentgate/cache")
		} else {
			c.logger = logger
		}
	}
}

// NewRedisProvider creates a Redis-backed provider.
//
// Configuration priority:
//  1. Explicit option (e.g., WithRedisURL)
//  2. Environment variable (REDIS_URL)
//  3. Default value (redis://localhost:6379, namespace "agentgate", TTL 10m)
func NewRedisProvider(opts ...RedisProviderOption) (*RedisProvider, error) {
	cfg := &redisProviderConfig{
		redisURL:   getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		namespace:  "agentgate",
		defaultTTL: 10 * time.Minute,
		logger:     &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client := cfg.client
	if client == nil {
		redisOpts, err := redis.ParseURL(cfg.redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL %s: %w (check REDIS_URL environment variable)", cfg.redisURL, err)
		}
		if cfg.redisDB != 0 {
			redisOpts.DB = cfg.redisDB
		}
		client = redis.NewClient(redisOpts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis at %s: %w (check REDIS_URL and Redis connectivity)", cfg.redisURL, core.ErrConnectionFailed)
		}
	}

	return &RedisProvider{
		client:     client,
		namespace:  cfg.namespace,
		defaultTTL: cfg.defaultTTL,
		redisURL:   cfg.redisURL,
		logger:     cfg.logger,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// key composes the physical key for a logical key.
func (p *RedisProvider) key(k string) string {
	return fmt.Sprintf("%s:%s", p.namespace, k)
}

// indexKey composes the physical key for an index set.
func (p *RedisProvider) indexKey(name, value string) string {
	return fmt.Sprintf("%s:%s:%s", p.namespace, name, value)
}

// warn logs a backend fault at WARN with the operation name and key.
func (p *RedisProvider) warn(ctx context.Context, op, key string, err error) {
	if p.logger != nil {
		p.logger.WarnWithContext(ctx, "Redis operation failed", map[string]interface{}{
			"operation": op,
			"key":       key,
			"error":     err.Error(),
		})
	}
	telemetry.Counter("cache.backend_error", "operation", op, "module", telemetry.ModuleCache)
}

// Namespace returns the provider's key prefix.
func (p *RedisProvider) Namespace() string {
	return p.namespace
}

// Set stores the value with the given (or default) TTL and refreshes each
// index set's TTL to the same value.
func (p *RedisProvider) Set(ctx context.Context, key string, value interface{}, opts *SetOptions) error {
	raw, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("failed to serialize value for %s: %w (check for non-serializable fields)", key, err)
	}

	ttl := p.defaultTTL
	var indexes map[string]string
	if opts != nil {
		if opts.TTL > 0 {
			ttl = opts.TTL
		}
		indexes = opts.Indexes
	}

	if err := p.client.Set(ctx, p.key(key), raw, ttl).Err(); err != nil {
		p.warn(ctx, "cache_set", key, err)
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	for name, idxValue := range indexes {
		idx := p.indexKey(name, idxValue)
		if err := p.client.SAdd(ctx, idx, key).Err(); err != nil {
			p.warn(ctx, "cache_index_add", key, err)
			return fmt.Errorf("failed to add %s to index %s: %w", key, idx, err)
		}
		// Refresh the index TTL so the set outlives its newest member.
		if ttl > 0 {
			if err := p.client.Expire(ctx, idx, ttl).Err(); err != nil {
				p.warn(ctx, "cache_index_expire", key, err)
			}
		}
	}

	return nil
}

// Get returns the stored value or (nil, nil) when absent or expired.
func (p *RedisProvider) Get(ctx context.Context, key string) (interface{}, error) {
	raw, err := p.client.Get(ctx, p.key(key)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		p.warn(ctx, "cache_get", key, err)
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return decodeValue(raw), nil
}

// Delete removes the key and its supplied index memberships.
func (p *RedisProvider) Delete(ctx context.Context, key string, indexes map[string]string) (bool, error) {
	deleted, err := p.client.Del(ctx, p.key(key)).Result()
	if err != nil {
		p.warn(ctx, "cache_delete", key, err)
		return false, fmt.Errorf("failed to delete %s: %w", key, err)
	}

	for name, idxValue := range indexes {
		if err := p.client.SRem(ctx, p.indexKey(name, idxValue), key).Err(); err != nil {
			// Non-fatal: stale members are filtered on read.
			p.warn(ctx, "cache_index_remove", key, err)
		}
	}

	return deleted > 0, nil
}

// Exists reports membership and not-expired.
func (p *RedisProvider) Exists(ctx context.Context, key string) (bool, error) {
	n, err := p.client.Exists(ctx, p.key(key)).Result()
	if err != nil {
		p.warn(ctx, "cache_exists", key, err)
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return n > 0, nil
}

// Update performs a read-modify-write of a JSON object.
func (p *RedisProvider) Update(ctx context.Context, key string, patch map[string]interface{}, ttl time.Duration) error {
	current, err := p.Get(ctx, key)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("cannot update %s: %w", key, ErrKeyNotFound)
	}

	obj, ok := current.(map[string]interface{})
	if !ok {
		return fmt.Errorf("cannot update %s: %w", key, ErrNotObject)
	}
	for k, v := range patch {
		obj[k] = v
	}

	if ttl <= 0 {
		remaining, err := p.GetTTL(ctx, key)
		switch {
		case err != nil:
			return err
		case remaining == TTLNone:
			ttl = 0
		default:
			ttl = remaining
		}
	}

	raw, err := encodeValue(obj)
	if err != nil {
		return fmt.Errorf("failed to serialize value for %s: %w", key, err)
	}
	if err := p.client.Set(ctx, p.key(key), raw, ttl).Err(); err != nil {
		p.warn(ctx, "cache_update", key, err)
		return fmt.Errorf("failed to update %s: %w", key, err)
	}
	return nil
}

// SetTTL resets the key's TTL.
func (p *RedisProvider) SetTTL(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := p.client.Expire(ctx, p.key(key), ttl).Result()
	if err != nil {
		p.warn(ctx, "cache_set_ttl", key, err)
		return fmt.Errorf("failed to set TTL on %s: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("cannot set TTL on %s: %w", key, ErrKeyNotFound)
	}
	return nil
}

// GetTTL returns the remaining TTL, TTLNone for no expiry, or
// ErrKeyNotFound when absent.
func (p *RedisProvider) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := p.client.TTL(ctx, p.key(key)).Result()
	if err != nil {
		p.warn(ctx, "cache_get_ttl", key, err)
		return 0, fmt.Errorf("failed to get TTL of %s: %w", key, err)
	}
	// go-redis passes Redis's -2 (absent) and -1 (no TTL) through as raw
	// negative durations.
	switch d {
	case time.Duration(-2):
		return 0, ErrKeyNotFound
	case time.Duration(-1):
		return TTLNone, nil
	default:
		return d, nil
	}
}

// Increment atomically adds amount to an integer key.
func (p *RedisProvider) Increment(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	n, err := p.client.IncrBy(ctx, p.key(key), amount).Result()
	if err != nil {
		p.warn(ctx, "cache_increment", key, err)
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}
	if ttl > 0 {
		// Apply the TTL only when the key has none, so a counter's window
		// is anchored at its first increment.
		remaining, terr := p.client.TTL(ctx, p.key(key)).Result()
		if terr == nil && remaining == time.Duration(-1) {
			if err := p.client.Expire(ctx, p.key(key), ttl).Err(); err != nil {
				p.warn(ctx, "cache_increment_expire", key, err)
			}
		}
	}
	return n, nil
}

// GetByIndex resolves the index set to keys and fetches each live value.
// Stale members are removed best-effort and skipped.
func (p *RedisProvider) GetByIndex(ctx context.Context, indexName, indexValue string) ([]interface{}, error) {
	idx := p.indexKey(indexName, indexValue)
	keys, err := p.client.SMembers(ctx, idx).Result()
	if err != nil {
		p.warn(ctx, "cache_get_by_index", idx, err)
		return nil, fmt.Errorf("failed to read index %s: %w", idx, err)
	}

	values := make([]interface{}, 0, len(keys))
	for _, key := range keys {
		value, err := p.Get(ctx, key)
		if err != nil {
			continue
		}
		if value == nil {
			// Stale member: the primary key expired first.
			if err := p.client.SRem(ctx, idx, key).Err(); err != nil {
				p.warn(ctx, "cache_index_prune", key, err)
			}
			continue
		}
		values = append(values, value)
	}
	return values, nil
}

// GetKeysByIndex returns the logical keys in the index set.
func (p *RedisProvider) GetKeysByIndex(ctx context.Context, indexName, indexValue string) ([]string, error) {
	idx := p.indexKey(indexName, indexValue)
	keys, err := p.client.SMembers(ctx, idx).Result()
	if err != nil {
		p.warn(ctx, "cache_get_keys_by_index", idx, err)
		return nil, fmt.Errorf("failed to read index %s: %w", idx, err)
	}
	return keys, nil
}

// ClearNamespace removes every key under the namespace via SCAN.
func (p *RedisProvider) ClearNamespace(ctx context.Context) (int, error) {
	pattern := p.namespace + ":*"
	var cursor uint64
	count := 0
	for {
		keys, next, err := p.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			p.warn(ctx, "cache_clear_namespace", pattern, err)
			return count, fmt.Errorf("failed to scan namespace %s: %w", p.namespace, err)
		}
		if len(keys) > 0 {
			deleted, err := p.client.Del(ctx, keys...).Result()
			if err != nil {
				p.warn(ctx, "cache_clear_namespace", pattern, err)
				return count, fmt.Errorf("failed to clear namespace %s: %w", p.namespace, err)
			}
			count += int(deleted)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if p.logger != nil {
		p.logger.DebugWithContext(ctx, "Namespace cleared", map[string]interface{}{
			"operation": "cache_clear_namespace",
			"namespace": p.namespace,
			"count":     count,
		})
	}
	return count, nil
}

// Close closes the Redis connection.
func (p *RedisProvider) Close() error {
	return p.client.Close()
}

// Compile-time interface compliance check
var _ Provider = (*RedisProvider)(nil)

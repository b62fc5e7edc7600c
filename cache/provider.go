// Package cache provides a namespaced key-value store abstraction with
// TTL support and secondary set indexes.
//
// Two implementations ship with the module:
//   - RedisProvider: the production backend, shared across replicas
//   - MemoryProvider: a mutex-guarded map for tests and single-process use
//
// Every provider instance carries a namespace (a key prefix) and a default
// TTL. Physical keys are composed as "{namespace}:{key}"; index keys as
// "{namespace}:{index_name}:{index_value}". An index is a set of logical
// keys; it may contain stale members pointing at expired primary keys, and
// readers must tolerate that. GetByIndex skips stale members and removes
// them best-effort, but the index size never guarantees the live-entity
// count - only that every live entity is reachable through its index.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Sentinel errors for comparison using errors.Is().
var (
	// ErrKeyNotFound indicates the key is absent or expired.
	ErrKeyNotFound = errors.New("cache key not found")

	// ErrNotObject indicates Update was called on a value that is not a
	// JSON object.
	ErrNotObject = errors.New("cache value is not a JSON object")
)

// TTLNone is returned by GetTTL for keys that exist without an expiry.
const TTLNone = time.Duration(-1)

// SetOptions carries the optional arguments to Set.
type SetOptions struct {
	// TTL overrides the provider's default TTL. Zero means use the default.
	TTL time.Duration

	// Indexes maps index names to index values. For each pair the key is
	// added to the set at "{namespace}:{name}:{value}" and that set's TTL
	// is refreshed to match the entry's TTL.
	Indexes map[string]string
}

// Provider is the namespaced key-value contract shared by Redis and
// in-memory backends. Non-string values are serialized as JSON; Get
// attempts a JSON parse and falls back to the raw string.
//
// Absence is reported as ErrKeyNotFound (or a nil value where documented),
// backend faults as wrapped errors. Callers that need the "best effort"
// semantics of a cache treat any error as a miss.
type Provider interface {
	// Set stores value under key with the given options.
	Set(ctx context.Context, key string, value interface{}, opts *SetOptions) error

	// Get returns the stored value, or (nil, nil) when the key is absent
	// or expired.
	Get(ctx context.Context, key string) (interface{}, error)

	// Delete removes the key and removes it from each supplied index set.
	// Returns true iff the primary key existed.
	Delete(ctx context.Context, key string, indexes map[string]string) (bool, error)

	// Exists reports whether the key exists and is not expired.
	Exists(ctx context.Context, key string) (bool, error)

	// Update performs a read-modify-write of a JSON object. Returns
	// ErrKeyNotFound when absent, ErrNotObject when the value is not an
	// object. A zero ttl preserves the key's remaining TTL.
	Update(ctx context.Context, key string, patch map[string]interface{}, ttl time.Duration) error

	// SetTTL resets the key's TTL. Returns ErrKeyNotFound when absent.
	SetTTL(ctx context.Context, key string, ttl time.Duration) error

	// GetTTL returns the remaining TTL, TTLNone for keys without expiry,
	// or ErrKeyNotFound when absent.
	GetTTL(ctx context.Context, key string) (time.Duration, error)

	// Increment atomically adds amount to an integer key, creating it at
	// zero first. A non-zero ttl is applied when the key has no expiry.
	Increment(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error)

	// GetByIndex resolves the index set to keys and fetches each live
	// value, silently skipping stale members.
	GetByIndex(ctx context.Context, indexName, indexValue string) ([]interface{}, error)

	// GetKeysByIndex returns the logical keys in the index set, including
	// possibly-stale members.
	GetKeysByIndex(ctx context.Context, indexName, indexValue string) ([]string, error)

	// ClearNamespace removes every key under the provider's namespace and
	// returns the number of keys removed.
	ClearNamespace(ctx context.Context) (int, error)

	// Namespace returns the provider's key prefix.
	Namespace() string

	// Close releases the backing connection, if any.
	Close() error
}

// encodeValue serializes a value for storage. Strings pass through
// unmodified; everything else is JSON-encoded.
func encodeValue(value interface{}) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeValue attempts a JSON parse and falls back to the raw string.
func decodeValue(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/agentgate/agentgate/core"
)

// MemoryProvider implements Provider with a mutex-guarded map. It mirrors
// the Redis provider's semantics, including lazy expiration (checked on
// every read) and stale-tolerant index sets, so tests exercise the same
// contract production runs against.
type MemoryProvider struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	indexes    map[string]map[string]struct{} // index key -> set of logical keys
	indexTTL   map[string]time.Time           // index key -> expiry (zero = none)
	namespace  string
	defaultTTL time.Duration
	logger     core.Logger

	// now is swappable for tests.
	now func() time.Time
}

type memoryEntry struct {
	raw       string
	expiresAt time.Time // zero = no expiry
}

// MemoryProviderOption configures a MemoryProvider.
type MemoryProviderOption func(*MemoryProvider)

// WithMemoryNamespace sets the key prefix.
func WithMemoryNamespace(namespace string) MemoryProviderOption {
	return func(p *MemoryProvider) {
		if namespace != "" {
			p.namespace = namespace
		}
	}
}

// WithMemoryDefaultTTL sets the TTL applied when Set receives none.
func WithMemoryDefaultTTL(ttl time.Duration) MemoryProviderOption {
	return func(p *MemoryProvider) {
		if ttl > 0 {
			p.defaultTTL = ttl
		}
	}
}

// WithMemoryLogger sets the logger.
func WithMemoryLogger(logger core.Logger) MemoryProviderOption {
	return func(p *MemoryProvider) {
		if logger == nil {
			return
		}
		if cal, ok := logger.(core.ComponentAwareLogger); ok {
			p.logger = cal.WithComponent("agentgate/cache")
		} else {
			p.logger = logger
		}
	}
}

// NewMemoryProvider creates an in-memory provider. Defaults match
// NewRedisProvider: namespace "agentgate", TTL 10 minutes.
func NewMemoryProvider(opts ...MemoryProviderOption) *MemoryProvider {
	p := &MemoryProvider{
		entries:    make(map[string]memoryEntry),
		indexes:    make(map[string]map[string]struct{}),
		indexTTL:   make(map[string]time.Time),
		namespace:  "agentgate",
		defaultTTL: 10 * time.Minute,
		logger:     &core.NoOpLogger{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *MemoryProvider) key(k string) string {
	return fmt.Sprintf("%s:%s", p.namespace, k)
}

func (p *MemoryProvider) indexKey(name, value string) string {
	return fmt.Sprintf("%s:%s:%s", p.namespace, name, value)
}

// live returns the entry for a physical key, deleting it lazily when
// expired. Callers must hold the mutex.
func (p *MemoryProvider) live(physical string) (memoryEntry, bool) {
	entry, ok := p.entries[physical]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && p.now().After(entry.expiresAt) {
		delete(p.entries, physical)
		return memoryEntry{}, false
	}
	return entry, true
}

// liveIndex returns the index set for a physical index key, dropping it
// when its TTL has lapsed. Callers must hold the mutex.
func (p *MemoryProvider) liveIndex(physical string) (map[string]struct{}, bool) {
	expiry, tracked := p.indexTTL[physical]
	if tracked && !expiry.IsZero() && p.now().After(expiry) {
		delete(p.indexes, physical)
		delete(p.indexTTL, physical)
		return nil, false
	}
	set, ok := p.indexes[physical]
	return set, ok
}

// Namespace returns the provider's key prefix.
func (p *MemoryProvider) Namespace() string {
	return p.namespace
}

// Set stores the value with the given (or default) TTL and refreshes each
// index set's TTL.
func (p *MemoryProvider) Set(ctx context.Context, key string, value interface{}, opts *SetOptions) error {
	raw, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("failed to serialize value for %s: %w", key, err)
	}

	ttl := p.defaultTTL
	var indexes map[string]string
	if opts != nil {
		if opts.TTL > 0 {
			ttl = opts.TTL
		}
		indexes = opts.Indexes
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entry := memoryEntry{raw: raw}
	if ttl > 0 {
		entry.expiresAt = p.now().Add(ttl)
	}
	p.entries[p.key(key)] = entry

	for name, idxValue := range indexes {
		idx := p.indexKey(name, idxValue)
		set, ok := p.indexes[idx]
		if !ok {
			set = make(map[string]struct{})
			p.indexes[idx] = set
		}
		set[key] = struct{}{}
		if ttl > 0 {
			p.indexTTL[idx] = p.now().Add(ttl)
		} else {
			p.indexTTL[idx] = time.Time{}
		}
	}

	return nil
}

// Get returns the stored value or (nil, nil) when absent or expired.
func (p *MemoryProvider) Get(ctx context.Context, key string) (interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.live(p.key(key))
	if !ok {
		return nil, nil
	}
	return decodeValue(entry.raw), nil
}

// Delete removes the key and its supplied index memberships.
func (p *MemoryProvider) Delete(ctx context.Context, key string, indexes map[string]string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, existed := p.live(p.key(key))
	delete(p.entries, p.key(key))

	for name, idxValue := range indexes {
		if set, ok := p.liveIndex(p.indexKey(name, idxValue)); ok {
			delete(set, key)
		}
	}

	return existed, nil
}

// Exists reports membership and not-expired.
func (p *MemoryProvider) Exists(ctx context.Context, key string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.live(p.key(key))
	return ok, nil
}

// Update performs a read-modify-write of a JSON object.
func (p *MemoryProvider) Update(ctx context.Context, key string, patch map[string]interface{}, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	physical := p.key(key)
	entry, ok := p.live(physical)
	if !ok {
		return fmt.Errorf("cannot update %s: %w", key, ErrKeyNotFound)
	}

	obj, ok := decodeValue(entry.raw).(map[string]interface{})
	if !ok {
		return fmt.Errorf("cannot update %s: %w", key, ErrNotObject)
	}
	for k, v := range patch {
		obj[k] = v
	}

	raw, err := encodeValue(obj)
	if err != nil {
		return fmt.Errorf("failed to serialize value for %s: %w", key, err)
	}

	updated := memoryEntry{raw: raw, expiresAt: entry.expiresAt}
	if ttl > 0 {
		updated.expiresAt = p.now().Add(ttl)
	}
	p.entries[physical] = updated
	return nil
}

// SetTTL resets the key's TTL.
func (p *MemoryProvider) SetTTL(ctx context.Context, key string, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	physical := p.key(key)
	entry, ok := p.live(physical)
	if !ok {
		return fmt.Errorf("cannot set TTL on %s: %w", key, ErrKeyNotFound)
	}
	if ttl > 0 {
		entry.expiresAt = p.now().Add(ttl)
	} else {
		entry.expiresAt = time.Time{}
	}
	p.entries[physical] = entry
	return nil
}

// GetTTL returns the remaining TTL, TTLNone for no expiry, or
// ErrKeyNotFound when absent.
func (p *MemoryProvider) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.live(p.key(key))
	if !ok {
		return 0, ErrKeyNotFound
	}
	if entry.expiresAt.IsZero() {
		return TTLNone, nil
	}
	return entry.expiresAt.Sub(p.now()), nil
}

// Increment atomically adds amount to an integer key.
func (p *MemoryProvider) Increment(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	physical := p.key(key)
	var current int64
	entry, ok := p.live(physical)
	if ok {
		n, err := strconv.ParseInt(entry.raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot increment %s: value is not an integer", key)
		}
		current = n
	}
	current += amount

	updated := memoryEntry{raw: strconv.FormatInt(current, 10), expiresAt: entry.expiresAt}
	if updated.expiresAt.IsZero() && ttl > 0 {
		updated.expiresAt = p.now().Add(ttl)
	}
	p.entries[physical] = updated
	return current, nil
}

// GetByIndex resolves the index set to keys and fetches each live value.
// Stale members are pruned in place.
func (p *MemoryProvider) GetByIndex(ctx context.Context, indexName, indexValue string) ([]interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.liveIndex(p.indexKey(indexName, indexValue))
	if !ok {
		return []interface{}{}, nil
	}

	values := make([]interface{}, 0, len(set))
	for key := range set {
		entry, ok := p.live(p.key(key))
		if !ok {
			delete(set, key)
			continue
		}
		values = append(values, decodeValue(entry.raw))
	}
	return values, nil
}

// GetKeysByIndex returns the logical keys in the index set.
func (p *MemoryProvider) GetKeysByIndex(ctx context.Context, indexName, indexValue string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.liveIndex(p.indexKey(indexName, indexValue))
	if !ok {
		return []string{}, nil
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	return keys, nil
}

// ClearNamespace removes every key and index under the namespace.
func (p *MemoryProvider) ClearNamespace(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := 0
	for physical := range p.entries {
		if _, ok := p.live(physical); ok {
			count++
		}
		delete(p.entries, physical)
	}
	for idx := range p.indexes {
		count++
		delete(p.indexes, idx)
		delete(p.indexTTL, idx)
	}
	return count, nil
}

// Close is a no-op for the in-memory provider.
func (p *MemoryProvider) Close() error {
	return nil
}

// Compile-time interface compliance check
var _ Provider = (*MemoryProvider)(nil)

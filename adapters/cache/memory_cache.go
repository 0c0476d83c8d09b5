package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/layer-3/webnote/ports"
)

const (
	PolicyLRU = "lru"
	Policy2Q  = "2q"

	DefaultMaxCapacity = 65535
)

// MemoryConfig configures the in-process cache
type MemoryConfig struct {
	MaxCapacity    int
	TTL            time.Duration    // Upper bound of any entry lifetime, zero for none
	EvictionPolicy string           // lru, 2q (lfu and tiny_lfu are accepted as 2q)
	Now            func() time.Time // Clock used for per-entry expiry, time.Now when nil
}

type entry struct {
	value     string
	expiresAt time.Time // Zero when the entry only obeys the cache-wide TTL
}

// evictor is the part of the golang-lru caches the memory backend relies on
type evictor interface {
	Get(key string) (entry, bool)
	Add(key string, value entry)
	Remove(key string)
}

type expirableEvictor struct {
	lru *expirable.LRU[string, entry]
}

func (e expirableEvictor) Get(key string) (entry, bool) { return e.lru.Get(key) }
func (e expirableEvictor) Add(key string, value entry)  { e.lru.Add(key, value) }
func (e expirableEvictor) Remove(key string)            { e.lru.Remove(key) }

// MemoryCache is a bounded in-process implementation of the Cache interface
type MemoryCache struct {
	mu      sync.Mutex
	entries evictor
	now     func() time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(cfg MemoryConfig) (*MemoryCache, error) {
	if cfg.MaxCapacity <= 0 {
		cfg.MaxCapacity = DefaultMaxCapacity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	var entries evictor
	switch NormalizePolicy(cfg.EvictionPolicy) {
	case PolicyLRU:
		entries = expirableEvictor{lru: expirable.NewLRU[string, entry](cfg.MaxCapacity, nil, cfg.TTL)}
	case Policy2Q:
		twoQueue, err := lru.New2Q[string, entry](cfg.MaxCapacity)
		if err != nil {
			return nil, fmt.Errorf("failed to create 2q cache: %w", err)
		}
		entries = twoQueue
	default:
		return nil, fmt.Errorf("unknown eviction policy %q", cfg.EvictionPolicy)
	}

	return &MemoryCache{
		entries: entries,
		now:     cfg.Now,
	}, nil
}

// NormalizePolicy maps the accepted eviction policy spellings to PolicyLRU or Policy2Q.
// Unknown policies are returned lower-cased and unchanged.
func NormalizePolicy(policy string) string {
	switch p := strings.ToLower(strings.TrimSpace(policy)); p {
	case "", PolicyLRU:
		return PolicyLRU
	case Policy2Q, "lfu", "tiny_lfu":
		return Policy2Q
	default:
		return p
	}
}

var _ ports.Cache = (*MemoryCache)(nil)

// Get returns the value stored under key
func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.get(key)
	return e.value, ok, nil
}

// Set stores value under key until ttl elapses
func (c *MemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Add(key, c.newEntry(value, ttl))
	return nil
}

// SetNX stores value under key unless a live entry already exists
func (c *MemoryCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.get(key); ok {
		return false, nil
	}
	c.entries.Add(key, c.newEntry(value, ttl))
	return true, nil
}

// Delete removes key
func (c *MemoryCache) Delete(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, found := c.get(key)
	c.entries.Remove(key)
	return found, nil
}

// get returns the live entry under key, dropping it when expired. c.mu must be held.
func (c *MemoryCache) get(key string) (entry, bool) {
	e, ok := c.entries.Get(key)
	if !ok {
		return entry{}, false
	}

	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.entries.Remove(key)
		return entry{}, false
	}

	return e, true
}

func (c *MemoryCache) newEntry(value string, ttl time.Duration) entry {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	return e
}

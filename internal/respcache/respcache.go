// Package respcache provides the key/value cache capability used to memoize
// aggregate dispatch results. Entries may expire or be absent at any time;
// callers must treat every failure as a cache miss.
package respcache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Cache is the capability surface the dispatcher depends on.
type Cache interface {
	// Get returns the stored value for key, or false when absent or expired.
	Get(key string) (string, bool)
	// Put stores value under key for ttl. Best effort, no error to return.
	Put(key string, value string, ttl time.Duration)
}

// TTL is an in-process Cache with per-entry expiry.
type TTL struct {
	cache *ttlcache.Cache[string, string]
}

// NewTTL creates an in-process TTL cache. Expired entries are reaped in the
// background until Stop is called.
func NewTTL() *TTL {
	c := ttlcache.New[string, string]()
	go c.Start()
	return &TTL{cache: c}
}

func (t *TTL) Get(key string) (string, bool) {
	item := t.cache.Get(key)
	if item == nil {
		return "", false
	}
	return item.Value(), true
}

func (t *TTL) Put(key, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	t.cache.Set(key, value, ttl)
}

// Stop terminates the background expiry loop.
func (t *TTL) Stop() {
	t.cache.Stop()
}

// Nop is a Cache that stores nothing. Used when caching is disabled.
type Nop struct{}

func (Nop) Get(string) (string, bool)         { return "", false }
func (Nop) Put(string, string, time.Duration) {}

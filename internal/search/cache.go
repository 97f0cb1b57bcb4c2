package search

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache defaults.
const (
	DefaultCacheTTL  = time.Hour
	DefaultCacheSize = 1024
)

// ResultCache is the read-through search cache. A hit skips the
// strategies entirely. Entries expire after the TTL; the cache is
// always optional and never blocks the pipeline.
type ResultCache struct {
	lru *expirable.LRU[string, []*Result]
}

// NewResultCache creates a TTL-bounded LRU cache.
func NewResultCache(size int, ttl time.Duration) *ResultCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResultCache{
		lru: expirable.NewLRU[string, []*Result](size, nil, ttl),
	}
}

// Key hashes query text, tenant scope, and the active strategy set.
func (c *ResultCache) Key(query, tenantID string, strategies []string) string {
	sorted := make([]string, len(strategies))
	copy(sorted, strategies)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(tenantID))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a deep copy of the cached results, so callers can mutate
// their view freely.
func (c *ResultCache) Get(key string) ([]*Result, bool) {
	results, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return copyResults(results), true
}

// Put stores a deep copy of results under key.
func (c *ResultCache) Put(key string, results []*Result) {
	c.lru.Add(key, copyResults(results))
}

// Purge drops all entries.
func (c *ResultCache) Purge() {
	c.lru.Purge()
}

// Len returns the live entry count.
func (c *ResultCache) Len() int {
	return c.lru.Len()
}

func copyResults(results []*Result) []*Result {
	out := make([]*Result, len(results))
	for i, r := range results {
		cp := *r
		cp.Strategies = append([]string(nil), r.Strategies...)
		out[i] = &cp
	}
	return out
}

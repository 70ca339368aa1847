package server

import (
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"

	"exchange-rate-mcp/internal/config"
	"exchange-rate-mcp/internal/rates"
)

// Cache holds recent upstream rate sets. A nil or disabled Cache never hits.
type Cache struct {
	enabled bool
	ttl     time.Duration
	store   *ristretto.Cache
}

// NewCache constructs a Cache according to cfg.
func NewCache(cfg config.CacheConfig) (*Cache, error) {
	if !cfg.Enabled {
		return &Cache{}, nil
	}
	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64OrDefault(cfg.NumCounters, 1e4),
		MaxCost:     int64OrDefault(cfg.MaxCost, 1<<24),
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{enabled: true, ttl: ttl, store: store}, nil
}

// Get retrieves a non-expired rate set for the key.
func (c *Cache) Get(key string) (rates.RateSet, bool) {
	if c == nil || !c.enabled {
		return rates.RateSet{}, false
	}
	v, ok := c.store.Get(key)
	if !ok {
		return rates.RateSet{}, false
	}
	set, ok := v.(rates.RateSet)
	return set, ok
}

// Set stores a rate set for the configured TTL. Admission is asynchronous.
func (c *Cache) Set(key string, set rates.RateSet) {
	if c == nil || !c.enabled {
		return
	}
	c.store.SetWithTTL(key, set, int64(len(set.Rates)+1), c.ttl)
}

// Wait blocks until pending writes are visible.
func (c *Cache) Wait() {
	if c == nil || !c.enabled {
		return
	}
	c.store.Wait()
}

// Close releases the cache goroutines.
func (c *Cache) Close() {
	if c == nil || !c.enabled {
		return
	}
	c.store.Close()
}

func cacheKey(q rates.Query) string {
	return "rates:" + q.Base + "|" + strings.Join(q.Symbols, ",")
}

func int64OrDefault(v, def int64) int64 {
	if v <= 0 {
		return def
	}
	return v
}

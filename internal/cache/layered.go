package cache

import "time"

// LayeredCache checks a fast layer before a slow one and promotes hits
type LayeredCache struct {
	fast     Cache
	slow     Cache
	promoTTL time.Duration
}

// NewLayeredCache composes two caches; promoTTL is used when copying slow hits into the fast layer
func NewLayeredCache(fast, slow Cache, promoTTL time.Duration) *LayeredCache {
	return &LayeredCache{fast: fast, slow: slow, promoTTL: promoTTL}
}

// NewMemoryDiskCache builds the usual memory + disk combination
func NewMemoryDiskCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return NewLayeredCache(NewMemoryCache(memoryTTL, 10*time.Minute), NewDiskCache(diskDir, diskTTL), memoryTTL)
}

// Get retrieves a value from the fast layer, then the slow one
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.fast.Get(key); found {
		return val, true
	}

	if val, found := c.slow.Get(key); found {
		_ = c.fast.Set(key, val, c.promoTTL)
		return val, true
	}

	return nil, false
}

// Set stores a value in both layers
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.fast.Set(key, value, ttl); err != nil {
		return err
	}
	return c.slow.Set(key, value, ttl)
}

// Delete removes a value from both layers
func (c *LayeredCache) Delete(key string) error {
	_ = c.fast.Delete(key)
	return c.slow.Delete(key)
}

// Clear removes all values from both layers
func (c *LayeredCache) Clear() error {
	_ = c.fast.Clear()
	return c.slow.Clear()
}

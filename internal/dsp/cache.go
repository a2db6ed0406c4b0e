package dsp

import "sync"

// FilterCache memoises designed filters by their spec. Decoding one
// recording designs the same few filters repeatedly; the cache is owned by
// the caller and handed to the resampler, never held globally.
type FilterCache struct {
	mu      sync.RWMutex
	filters map[FilterSpec]Coefficients
	hits    int
	misses  int
}

// NewFilterCache returns an empty cache.
func NewFilterCache() *FilterCache {
	return &FilterCache{filters: make(map[FilterSpec]Coefficients)}
}

// Design returns the cached coefficients for spec, designing them on first
// use. A nil cache designs every time. The returned slice is shared and must
// not be modified.
func (c *FilterCache) Design(spec FilterSpec) (Coefficients, error) {
	if c == nil {
		return spec.Design()
	}

	c.mu.RLock()
	taps, ok := c.filters[spec]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return taps, nil
	}

	taps, err := spec.Design()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
	if existing, ok := c.filters[spec]; ok {
		return existing, nil
	}
	c.filters[spec] = taps
	return taps, nil
}

// Stats returns the number of cache hits and misses so far.
func (c *FilterCache) Stats() (hits, misses int) {
	if c == nil {
		return 0, 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Len returns the number of distinct filters held.
func (c *FilterCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.filters)
}

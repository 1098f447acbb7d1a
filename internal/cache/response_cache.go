package cache

import (
	"sync"
	"time"
)

// UpstreamResponse is a verbatim snapshot of the last successful upstream
// fetch: raw body bytes plus the content type it arrived with.
type UpstreamResponse struct {
	Body        []byte
	ContentType string
}

type responseEntry struct {
	response  UpstreamResponse
	fetchedAt time.Time
}

// ResponseCache holds at most one cached upstream response per proxy. It is
// distinct from SampleCache: it short-circuits the upstream fetch itself,
// rather than individual sample values.
type ResponseCache struct {
	mu    sync.RWMutex
	entry *responseEntry
}

// NewResponseCache returns an empty response cache.
func NewResponseCache() *ResponseCache {
	return &ResponseCache{}
}

// Get returns the cached response if it was fetched less than maxAge ago.
func (c *ResponseCache) Get(now time.Time, maxAge time.Duration) (UpstreamResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return UpstreamResponse{}, false
	}
	if now.Sub(c.entry.fetchedAt) >= maxAge {
		return UpstreamResponse{}, false
	}
	return c.entry.response, true
}

// Put overwrites the single cached response.
func (c *ResponseCache) Put(resp UpstreamResponse, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = &responseEntry{response: resp, fetchedAt: now}
}

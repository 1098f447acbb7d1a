// Package cache implements the two caches a proxy keeps: a per-sample
// cache used by reduce_time_resolution rules, and a single-slot cache of
// the last fetched upstream response body.
package cache

import (
	"sync"
	"time"

	"metrics-proxy/internal/model"
)

const shardCount = 32

type sampleEntry struct {
	sample model.Sample
	at     time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[model.Identity]sampleEntry
}

// SampleCache holds one entry per sample identity, sharded by identity so
// lookups of unrelated samples only contend when their identities hash to
// the same one of the shardCount shards. There is no
// eviction: entries are only ever overwritten in place, matching the
// bounded cardinality of a single upstream's sample set.
type SampleCache struct {
	shards [shardCount]*shard
}

// NewSampleCache returns an empty cache ready for concurrent use.
func NewSampleCache() *SampleCache {
	c := &SampleCache{}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[model.Identity]sampleEntry)}
	}
	return c
}

func (c *SampleCache) shardFor(id model.Identity) *shard {
	return c.shards[id.Hash()%shardCount]
}

// Get returns the cached sample for id if it was stored less than
// staleness ago. A miss (absent or expired entry) returns ok=false and
// leaves the entry untouched; the caller decides whether to Put a fresh
// reading afterward.
func (c *SampleCache) Get(id model.Identity, now time.Time, staleness time.Duration) (model.Sample, bool) {
	s := c.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return model.Sample{}, false
	}
	if now.Sub(e.at) >= staleness {
		return model.Sample{}, false
	}
	return e.sample, true
}

// Put overwrites the cached reading for sample's identity, refreshing its
// staleness clock to now.
func (c *SampleCache) Put(sample model.Sample, now time.Time) {
	id := sample.Identity()
	s := c.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = sampleEntry{sample: sample, at: now}
}

// Package model holds the canonical representation of a Prometheus sample
// and the identity used to key the sample cache.
package model

import (
	"hash/fnv"
	"sort"
	"strings"
)

// MetricType is the TYPE annotation of a family (counter, gauge, ...).
type MetricType string

const (
	TypeCounter   MetricType = "counter"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
	TypeSummary   MetricType = "summary"
	TypeUntyped   MetricType = "untyped"
)

// LabelPair is a single name/value pair in the order it was parsed.
type LabelPair struct {
	Name  string
	Value string
}

// Labels is an ordered label set. Order only matters for serialization;
// equality and hashing treat it as a set.
type Labels []LabelPair

// Get returns the value of the named label, and whether it was present.
func (l Labels) Get(name string) (string, bool) {
	for _, p := range l {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Sample is a single Prometheus exposition-format data point.
type Sample struct {
	MetricName string
	Labels     Labels
	Value      float64
	Timestamp  *int64 // milliseconds since epoch; nil if absent
}

// MetricFamily groups samples that share a metric name.
type MetricFamily struct {
	Name    string
	Help    string
	HasHelp bool
	Type    MetricType
	HasType bool
	Samples []Sample
}

// Identity is the hashable (metric name, sorted label set) pair used to key
// the sample cache. Two samples share an Identity iff their metric names
// are equal and their label name->value mappings are equal as sets.
type Identity struct {
	key string
}

// IdentityOf computes the Identity of a sample. Label order in the input
// does not affect the result.
func IdentityOf(metricName string, labels Labels) Identity {
	pairs := make([]string, len(labels))
	for i, p := range labels {
		pairs[i] = p.Name + "=" + p.Value
	}
	sort.Strings(pairs)
	var b strings.Builder
	b.WriteString(metricName)
	for _, p := range pairs {
		b.WriteByte('\x00')
		b.WriteString(p)
	}
	return Identity{key: b.String()}
}

// Identity returns the cache identity of this sample.
func (s Sample) Identity() Identity {
	return IdentityOf(s.MetricName, s.Labels)
}

// Hash returns a shard-selection hash for this identity. It is not
// cryptographically strong and carries no uniqueness guarantee beyond
// distributing identities across cache shards.
func (id Identity) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(id.key))
	return h.Sum64()
}

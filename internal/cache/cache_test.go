package cache_test

import (
	"testing"
	"time"

	"metrics-proxy/internal/cache"
	"metrics-proxy/internal/model"
)

func TestSampleCacheMissThenHit(t *testing.T) {
	c := cache.NewSampleCache()
	id := model.IdentityOf("up", model.Labels{{Name: "job", Value: "x"}})
	now := time.Unix(0, 0)

	if _, ok := c.Get(id, now, time.Second); ok {
		t.Fatalf("expected miss on empty cache")
	}

	sample := model.Sample{MetricName: "up", Labels: model.Labels{{Name: "job", Value: "x"}}, Value: 1}
	c.Put(sample, now)

	got, ok := c.Get(id, now.Add(500*time.Millisecond), time.Second)
	if !ok || got.Value != 1 {
		t.Fatalf("expected fresh hit with value 1, got %+v ok=%v", got, ok)
	}
}

func TestSampleCacheExpires(t *testing.T) {
	c := cache.NewSampleCache()
	sample := model.Sample{MetricName: "up", Value: 1}
	now := time.Unix(0, 0)
	c.Put(sample, now)

	if _, ok := c.Get(sample.Identity(), now.Add(2*time.Second), time.Second); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestSampleCachePutOverwrites(t *testing.T) {
	c := cache.NewSampleCache()
	id := model.IdentityOf("up", nil)
	now := time.Unix(0, 0)
	c.Put(model.Sample{MetricName: "up", Value: 1}, now)
	c.Put(model.Sample{MetricName: "up", Value: 2}, now.Add(time.Millisecond))

	got, ok := c.Get(id, now.Add(2*time.Millisecond), time.Second)
	if !ok || got.Value != 2 {
		t.Fatalf("expected overwritten value 2, got %+v ok=%v", got, ok)
	}
}

func TestResponseCacheMissThenHitThenExpire(t *testing.T) {
	c := cache.NewResponseCache()
	now := time.Unix(0, 0)
	if _, ok := c.Get(now, time.Second); ok {
		t.Fatalf("expected miss on empty cache")
	}

	c.Put(cache.UpstreamResponse{Body: []byte("up 1\n"), ContentType: "text/plain"}, now)
	got, ok := c.Get(now.Add(500*time.Millisecond), time.Second)
	if !ok || string(got.Body) != "up 1\n" {
		t.Fatalf("expected fresh hit, got %+v ok=%v", got, ok)
	}

	if _, ok := c.Get(now.Add(2*time.Second), time.Second); ok {
		t.Fatalf("expected expired response cache to miss")
	}
}

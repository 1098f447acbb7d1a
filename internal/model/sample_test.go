package model_test

import (
	"testing"

	"metrics-proxy/internal/model"
)

func TestIdentityIgnoresLabelOrder(t *testing.T) {
	a := model.IdentityOf("node_cpu_seconds_total", model.Labels{
		{Name: "cpu", Value: "0"},
		{Name: "mode", Value: "idle"},
	})
	b := model.IdentityOf("node_cpu_seconds_total", model.Labels{
		{Name: "mode", Value: "idle"},
		{Name: "cpu", Value: "0"},
	})
	if a != b {
		t.Fatalf("identity should be order-independent: %v != %v", a, b)
	}
}

func TestIdentityDiffersOnValue(t *testing.T) {
	a := model.IdentityOf("node_cpu_seconds_total", model.Labels{{Name: "cpu", Value: "0"}})
	b := model.IdentityOf("node_cpu_seconds_total", model.Labels{{Name: "cpu", Value: "1"}})
	if a == b {
		t.Fatalf("identity must differ when a label value differs")
	}
}

func TestIdentityIgnoresValueAndTimestamp(t *testing.T) {
	s1 := model.Sample{MetricName: "up", Labels: model.Labels{{Name: "job", Value: "x"}}, Value: 1}
	ts := int64(12345)
	s2 := model.Sample{MetricName: "up", Labels: model.Labels{{Name: "job", Value: "x"}}, Value: 0, Timestamp: &ts}
	if s1.Identity() != s2.Identity() {
		t.Fatalf("identity must ignore value/timestamp")
	}
}

func TestLabelsGet(t *testing.T) {
	l := model.Labels{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}}
	if v, ok := l.Get("b"); !ok || v != "2" {
		t.Fatalf("expected b=2, got %q ok=%v", v, ok)
	}
	if _, ok := l.Get("missing"); ok {
		t.Fatalf("expected missing label to be absent")
	}
}

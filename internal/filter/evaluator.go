package filter

import (
	"strings"
	"time"

	"metrics-proxy/internal/model"
)

// SampleCache is the subset of the sample cache the evaluator needs to
// resolve ReduceTimeResolution actions. Implemented by internal/cache.
type SampleCache interface {
	Get(id model.Identity, now time.Time, staleness time.Duration) (model.Sample, bool)
	Put(sample model.Sample, now time.Time)
}

const nameLabel = "__name__"

// Evaluate applies a compiled program's rules, in order, to one sample and
// returns the sample to emit (substituted by a cached reading when a
// reduce_time_resolution rule matched and the cache entry is still fresh)
// and whether it survives to the output at all.
func Evaluate(program *Program, sample model.Sample, cache SampleCache, now time.Time) (model.Sample, bool) {
	var keep *bool
	var cachedSample *model.Sample
	mustCacheSample := false

	for _, rule := range program.Rules {
		joined := joinSourceLabels(sample, rule.SourceLabels, rule.Separator)
		if !rule.Regex.MatchString(joined) {
			continue
		}
		for _, action := range rule.Actions {
			switch action.Kind {
			case Keep:
				v := true
				keep = &v
			case Drop:
				v := false
				keep = &v
			case ReduceTimeResolution:
				if cs, ok := cache.Get(sample.Identity(), now, action.Resolution); ok {
					s := cs
					cachedSample = &s
				} else {
					cachedSample = nil
				}
				mustCacheSample = true
			}
		}
	}

	if mustCacheSample && cachedSample == nil {
		cache.Put(sample, now)
	}

	if keep != nil && !*keep {
		return model.Sample{}, false
	}

	if cachedSample != nil {
		return *cachedSample, true
	}
	return sample, true
}

func joinSourceLabels(sample model.Sample, sourceLabels []string, separator string) string {
	values := make([]string, len(sourceLabels))
	for i, name := range sourceLabels {
		values[i] = labelValue(sample, name)
	}
	return strings.Join(values, separator)
}

// labelValue resolves one source label to a string the way Prometheus
// relabeling does: __name__ is the metric name, an absent label is empty.
func labelValue(sample model.Sample, name string) string {
	if name == nameLabel {
		return sample.MetricName
	}
	if v, ok := sample.Labels.Get(name); ok {
		return v
	}
	return ""
}

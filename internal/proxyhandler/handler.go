// Package proxyhandler orchestrates one proxy's request lifecycle: fetch
// the upstream body, parse it, run it through the label-filter program,
// and serialize the survivors back to the client.
package proxyhandler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"metrics-proxy/internal/apperr"
	"metrics-proxy/internal/applog"
	"metrics-proxy/internal/cache"
	"metrics-proxy/internal/fetcher"
	"metrics-proxy/internal/filter"
	"metrics-proxy/internal/metrics"
	"metrics-proxy/internal/model"
	"metrics-proxy/internal/textfmt"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// Handler serves one proxy's configured path: fetch, filter, serialize.
type Handler struct {
	Name                   string
	Fetcher                *fetcher.Fetcher
	Program                *filter.Program
	SampleCache            *cache.SampleCache
	RequestResponseTimeout time.Duration
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	metrics.ActiveRequestsInc(h.Name)
	defer metrics.ActiveRequestsDec(h.Name)

	ctx := r.Context()
	if h.RequestResponseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.RequestResponseTimeout)
		defer cancel()
	}

	status, body := h.handle(ctx)
	metrics.ObserveRequest(h.Name, status, time.Since(start))

	if status == http.StatusOK {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h *Handler) handle(ctx context.Context) (int, []byte) {
	fetchStart := time.Now()
	resp, err := h.Fetcher.Fetch(ctx)
	if err != nil {
		status := statusForFetchError(err)
		metrics.ObserveUpstreamFetch(h.Name, outcomeForFetchError(err), time.Since(fetchStart))
		applog.Emit("error", h.Name, nil, err.Error())
		return status, []byte(err.Error() + "\n")
	}
	metrics.ObserveUpstreamFetch(h.Name, "ok", time.Since(fetchStart))

	doc, err := textfmt.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		applog.Emit("error", h.Name, nil, "parse error: "+err.Error())
		return http.StatusBadGateway, []byte("Error parsing upstream output.\n\n" + err.Error() + "\n")
	}

	filtered, dropped := h.applyFilters(doc.Families, time.Now())
	metrics.FilteredSamplesAdd(h.Name, dropped)

	var buf bytes.Buffer
	out := textfmt.Document{Preamble: doc.Preamble, Families: filtered}
	if err := textfmt.Serialize(&buf, out); err != nil {
		applog.Emit("error", h.Name, nil, "serialize error: "+err.Error())
		return http.StatusInternalServerError, []byte("Error rendering output.\n\n" + err.Error() + "\n")
	}
	return http.StatusOK, buf.Bytes()
}

func (h *Handler) applyFilters(families []model.MetricFamily, now time.Time) ([]model.MetricFamily, int) {
	out := make([]model.MetricFamily, len(families))
	dropped := 0
	for i, fam := range families {
		survivors := make([]model.Sample, 0, len(fam.Samples))
		for _, sample := range fam.Samples {
			kept, keep := filter.Evaluate(h.Program, sample, instrumentedCache{h.SampleCache, h.Name}, now)
			if !keep {
				dropped++
				continue
			}
			survivors = append(survivors, kept)
		}
		out[i] = fam
		out[i].Samples = survivors
	}
	return out, dropped
}

type instrumentedCache struct {
	*cache.SampleCache
	proxy string
}

func (c instrumentedCache) Get(id model.Identity, now time.Time, staleness time.Duration) (model.Sample, bool) {
	sample, ok := c.SampleCache.Get(id, now, staleness)
	if ok {
		metrics.SampleCacheHitInc(c.proxy)
	} else {
		metrics.SampleCacheMissInc(c.proxy)
	}
	return sample, ok
}

func statusForFetchError(err error) int {
	var timeoutErr *apperr.UpstreamTimeoutError
	if errors.As(err, &timeoutErr) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func outcomeForFetchError(err error) string {
	var timeoutErr *apperr.UpstreamTimeoutError
	var unavailableErr *apperr.UpstreamUnavailableError
	var badStatusErr *apperr.UpstreamBadStatusError
	var bodyErr *apperr.UpstreamBodyError
	switch {
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &unavailableErr):
		return "unavailable"
	case errors.As(err, &badStatusErr):
		return "bad_status"
	case errors.As(err, &bodyErr):
		return "body_error"
	default:
		return "error"
	}
}

// Package fetcher performs the single upstream HTTP fetch a proxy needs
// per scrape, coalescing concurrent callers and optionally serving a
// cached response body.
package fetcher

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"metrics-proxy/internal/apperr"
	"metrics-proxy/internal/cache"
)

// Fetcher owns the HTTP client, single-flight group, and optional
// response cache for one proxy's upstream.
type Fetcher struct {
	url           string
	timeout       time.Duration
	client        *http.Client
	group         singleflight.Group
	responseCache *cache.ResponseCache
	cacheDuration time.Duration
	now           func() time.Time
}

// New builds a Fetcher for the given upstream URL. cacheDuration <= 0
// disables the response cache entirely.
func New(url string, timeout time.Duration, cacheDuration time.Duration) *Fetcher {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	f := &Fetcher{
		url:     url,
		timeout: timeout,
		client:  &http.Client{Transport: transport},
		now:     time.Now,
	}
	if cacheDuration > 0 {
		f.responseCache = cache.NewResponseCache()
		f.cacheDuration = cacheDuration
	}
	return f
}

// Fetch returns the upstream's current body, either from the response
// cache or via a fresh (single-flighted) HTTP GET.
func (f *Fetcher) Fetch(ctx context.Context) (cache.UpstreamResponse, error) {
	now := f.now()
	if f.responseCache != nil {
		if resp, ok := f.responseCache.Get(now, f.cacheDuration); ok {
			return resp, nil
		}
	}

	// The upstream request runs on its own background context, detached
	// from any single caller: singleflight shares this call across every
	// concurrent waiter on f.url, so one waiter's context expiring must
	// not abort the fetch for the others still waiting on it. Each
	// waiter instead races the shared call against its own ctx below.
	resultCh := f.group.DoChan(f.url, func() (interface{}, error) {
		resp, ferr := f.fetchOnce(context.Background())
		if ferr != nil {
			return cache.UpstreamResponse{}, ferr
		}
		if f.responseCache != nil {
			f.responseCache.Put(resp, f.now())
		}
		return resp, nil
	})

	select {
	case res := <-resultCh:
		if res.Err != nil {
			return cache.UpstreamResponse{}, res.Err
		}
		return res.Val.(cache.UpstreamResponse), nil
	case <-ctx.Done():
		return cache.UpstreamResponse{}, ctx.Err()
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context) (cache.UpstreamResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return cache.UpstreamResponse{}, &apperr.UpstreamUnavailableError{URL: f.url, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return cache.UpstreamResponse{}, &apperr.UpstreamTimeoutError{URL: f.url, Err: err}
		}
		return cache.UpstreamResponse{}, &apperr.UpstreamUnavailableError{URL: f.url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cache.UpstreamResponse{}, &apperr.UpstreamBodyError{URL: f.url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return cache.UpstreamResponse{}, &apperr.UpstreamBadStatusError{URL: f.url, StatusCode: resp.StatusCode}
	}

	return cache.UpstreamResponse{Body: body, ContentType: resp.Header.Get("Content-Type")}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

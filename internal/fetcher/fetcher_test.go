package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"metrics-proxy/internal/apperr"
	"metrics-proxy/internal/fetcher"
)

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.Write([]byte("up 1\n"))
	}))
	defer srv.Close()

	f := fetcher.New(srv.URL, time.Second, 0)
	resp, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(resp.Body) != "up 1\n" {
		t.Fatalf("unexpected body: %q", resp.Body)
	}
}

func TestFetchBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := fetcher.New(srv.URL, time.Second, 0)
	_, err := f.Fetch(context.Background())
	var badStatus *apperr.UpstreamBadStatusError
	if err == nil {
		t.Fatalf("expected error")
	}
	if !asBadStatus(err, &badStatus) {
		t.Fatalf("expected UpstreamBadStatusError, got %T: %v", err, err)
	}
	if badStatus.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status code %d", badStatus.StatusCode)
	}
}

func TestFetchTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	f := fetcher.New(srv.URL, 10*time.Millisecond, 0)
	_, err := f.Fetch(context.Background())
	var timeoutErr *apperr.UpstreamTimeoutError
	if !asTimeout(err, &timeoutErr) {
		t.Fatalf("expected UpstreamTimeoutError, got %T: %v", err, err)
	}
}

func TestFetchCoalescesConcurrentCallers(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		time.Sleep(20 * time.Millisecond)
		w.Write([]byte("up 1\n"))
	}))
	defer srv.Close()

	f := fetcher.New(srv.URL, time.Second, 0)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.Fetch(context.Background()); err != nil {
				t.Errorf("fetch: %v", err)
			}
		}()
	}
	wg.Wait()
	if atomic.LoadInt64(&hits) != 1 {
		t.Fatalf("expected concurrent fetches to coalesce into 1 upstream hit, got %d", hits)
	}
}

func TestFetchSurvivesLeaderCancellation(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("up 1\n"))
	}))
	defer srv.Close()

	f := fetcher.New(srv.URL, time.Second, 0)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErrCh := make(chan error, 1)
	go func() {
		_, err := f.Fetch(leaderCtx)
		leaderErrCh <- err
	}()
	time.Sleep(10 * time.Millisecond) // let the leader start the upstream request
	cancelLeader()
	if err := <-leaderErrCh; err == nil {
		t.Fatalf("expected leader's own Fetch to report its context cancellation")
	}

	resp, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("second waiter's fetch should still succeed: %v", err)
	}
	if string(resp.Body) != "up 1\n" {
		t.Fatalf("unexpected body: %q", resp.Body)
	}
	if atomic.LoadInt64(&hits) != 1 {
		t.Fatalf("expected the leader's cancellation to still share one upstream hit, got %d", hits)
	}
}

func TestFetchUsesResponseCache(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Write([]byte("up 1\n"))
	}))
	defer srv.Close()

	f := fetcher.New(srv.URL, time.Second, time.Minute)
	if _, err := f.Fetch(context.Background()); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := f.Fetch(context.Background()); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if atomic.LoadInt64(&hits) != 1 {
		t.Fatalf("expected second fetch to be served from cache, got %d upstream hits", hits)
	}
}

func asBadStatus(err error, target **apperr.UpstreamBadStatusError) bool {
	if e, ok := err.(*apperr.UpstreamBadStatusError); ok {
		*target = e
		return true
	}
	return false
}

func asTimeout(err error, target **apperr.UpstreamTimeoutError) bool {
	if e, ok := err.(*apperr.UpstreamTimeoutError); ok {
		*target = e
		return true
	}
	return false
}

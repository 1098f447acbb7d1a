// Package registry groups proxies sharing a (scheme, host, port) into one
// listening socket with a path-based router, and starts each listener.
package registry

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"metrics-proxy/internal/apperr"
	"metrics-proxy/internal/config"
	"metrics-proxy/internal/tlsutil"
)

// Endpoint is one routable handler bound to a proxy's listen path.
type Endpoint struct {
	Proxy                  config.Proxy
	Path                   string
	Handler                http.Handler
	HeaderReadTimeout      time.Duration
	RequestResponseTimeout time.Duration
}

type socketKey struct {
	scheme, host, port string
}

type socketGroup struct {
	key       socketKey
	mux       *http.ServeMux
	tlsFiles  *[2]string // [certificate_file, key_file], nil for http
	endpoints []Endpoint
}

// Registry owns every listener this process must bind and serve.
type Registry struct {
	groups []*socketGroup
}

// Build groups endpoints by (scheme, host, port) and assembles one mux per
// group, dispatching by path.
func Build(endpoints []Endpoint) (*Registry, error) {
	index := make(map[socketKey]*socketGroup)
	reg := &Registry{}

	for _, ep := range endpoints {
		u := ep.Proxy.ListenOn.ParsedURL()
		key := socketKey{scheme: u.Scheme, host: u.Hostname(), port: u.Port()}
		group, ok := index[key]
		if !ok {
			group = &socketGroup{key: key, mux: http.NewServeMux()}
			if u.Scheme == "https" {
				group.tlsFiles = &[2]string{ep.Proxy.ListenOn.CertificateFile, ep.Proxy.ListenOn.KeyFile}
			}
			index[key] = group
			reg.groups = append(reg.groups, group)
		}
		group.mux.Handle(ep.Path, ep.Handler)
		group.endpoints = append(group.endpoints, ep)
	}
	return reg, nil
}

// Serve binds and serves every listener group, blocking until ctx is
// cancelled or a listener fails irrecoverably. The first bind failure
// aborts startup for all groups.
func (r *Registry) Serve(ctx context.Context) error {
	listeners := make([]net.Listener, len(r.groups))
	addr := func(g *socketGroup) string { return net.JoinHostPort(g.key.host, g.key.port) }

	for i, g := range r.groups {
		ln, err := net.Listen("tcp", addr(g))
		if err != nil {
			for _, closed := range listeners[:i] {
				closed.Close()
			}
			return &apperr.BindFailureError{Address: addr(g), Err: err}
		}
		listeners[i] = ln
	}

	errCh := make(chan error, len(r.groups))
	servers := make([]*http.Server, len(r.groups))

	for i, g := range r.groups {
		readTimeout := minPositiveDuration(g.endpoints)
		srv := &http.Server{
			Handler:           g.mux,
			ReadHeaderTimeout: readTimeout,
		}
		servers[i] = srv

		go func(g *socketGroup, ln net.Listener, srv *http.Server) {
			if g.tlsFiles != nil {
				tlsConfig, err := tlsutil.LoadConfig(g.tlsFiles[0], g.tlsFiles[1])
				if err != nil {
					errCh <- &apperr.BindFailureError{Address: ln.Addr().String(), Err: err}
					return
				}
				srv.TLSConfig = tlsConfig
				errCh <- srv.ServeTLS(ln, "", "")
				return
			}
			errCh <- srv.Serve(ln)
		}(g, listeners[i], srv)
	}

	go func() {
		<-ctx.Done()
		for _, srv := range servers {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			srv.Shutdown(shutdownCtx)
			cancel()
		}
	}()

	for range r.groups {
		if err := <-errCh; err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("listener failed: %w", err)
		}
	}
	return nil
}

func minPositiveDuration(endpoints []Endpoint) time.Duration {
	var min time.Duration
	for _, ep := range endpoints {
		if ep.HeaderReadTimeout <= 0 {
			continue
		}
		if min == 0 || ep.HeaderReadTimeout < min {
			min = ep.HeaderReadTimeout
		}
	}
	return min
}

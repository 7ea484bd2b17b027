// Package admin serves the proxy's diagnostics endpoints, the Go
// counterpart of the teacher's internal ServeMux (spec.md §1's
// "out of scope" administrative surface). Unlike the teacher's, it
// has no host-based guard: it listens on whatever address it is
// given and serves every request that reaches it.
package admin

import (
	"context"
	"net"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CSAPP-Labs/CSAPP-proxy/internal/cache"
	"github.com/CSAPP-Labs/CSAPP-proxy/pkg/runtimeinfo"
)

// Server is a small HTTP server meant to be bound to a loopback
// address, separate from the proxy's raw-socket listener.
type Server struct {
	http *http.Server
}

// New builds the admin server bound to addr (e.g. "127.0.0.1:6060").
// c is optional; when set, /healthz reports its current occupancy.
func New(addr string, c *cache.Cache, reg prometheus.Gatherer) *Server {
	mux := http.NewServeMux()

	mux.Handle("/version", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := json.Marshal(runtimeinfo.BuildInfo)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}))

	mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := struct {
			Status    string `json:"status"`
			Entries   int    `json:"cache.entries,omitempty"`
			BodyBytes int    `json:"cache.body_bytes,omitempty"`
		}{Status: "ok"}
		if c != nil {
			status.Entries = c.Len()
			status.BodyBytes = c.TotalBytes()
		}
		payload, _ := json.Marshal(status)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}))

	if reg == nil {
		reg = prometheus.DefaultGatherer
	}
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &Server{http: &http.Server{Addr: addr, Handler: mux}}
}

// ListenAndServe blocks until the server stops or fails, mirroring
// http.Server's own contract.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.http.Serve(ln)
}

// Shutdown gracefully stops the admin server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

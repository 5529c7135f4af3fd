// Package prometheus exposes the scorecast runtime metrics and serves them
// over HTTP, typically on a separate listener from the client-facing server.
package prometheus

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// defaultReadHeaderTimeout bounds header reads on the metrics listener.
const defaultReadHeaderTimeout = 10 * time.Second

// Exporter owns a metrics registry and the HTTP server scraping it.
type Exporter struct {
	addr     string
	registry *prometheus.Registry

	mu      sync.Mutex
	srv     *http.Server
	started bool
}

// NewExporter builds an exporter on a fresh registry preloaded with the
// scorecast collectors plus the Go runtime and process collectors.
func NewExporter(addr string) *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(allMetrics...)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Exporter{addr: addr, registry: reg}
}

// NewExporterWithRegistry builds an exporter on a caller-owned registry.
// Nothing is preregistered; the caller controls the metric set.
func NewExporterWithRegistry(addr string, registry *prometheus.Registry) *Exporter {
	return &Exporter{addr: addr, registry: registry}
}

// Registry returns the exporter's registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler returns the scrape handler for the exporter's registry, for
// mounting on an existing server instead of a dedicated listener.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Start serves /metrics and /health on the configured address, blocking
// until Shutdown. It returns http.ErrServerClosed on a graceful stop and
// nil immediately if the exporter is already running.
func (e *Exporter) Start() error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              e.addr,
		Handler:           mux,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	e.srv = srv
	e.started = true
	e.mu.Unlock()

	return srv.ListenAndServe()
}

// Shutdown drains the metrics server. A no-op when Start never ran.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.srv == nil || !e.started {
		return nil
	}
	e.started = false
	return e.srv.Shutdown(ctx)
}

// MustRegister adds collectors to the registry, panicking on conflict.
func (e *Exporter) MustRegister(cs ...prometheus.Collector) {
	e.registry.MustRegister(cs...)
}

// Register adds one collector to the registry.
func (e *Exporter) Register(c prometheus.Collector) error {
	return e.registry.Register(c)
}

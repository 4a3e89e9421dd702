// Package metrics exposes prometheus metrics for the geodata server on a
// dedicated listen address.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server

	// StoreOps counts record store operations by operation and outcome.
	StoreOps *prometheus.CounterVec
	// StoreOpDuration observes record store latency by operation.
	StoreOpDuration *prometheus.HistogramVec
}

// New creates a metrics server whose collectors are namespaced with
// namespace. The server is not started until ListenAndServe.
func New(namespace string, listenAddr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()

	storeOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "record_store",
		Name:      "operations_total",
		Help:      "Record store operations by operation and outcome.",
	}, []string{"op", "outcome"})

	storeOpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "record_store",
		Name:      "operation_duration_seconds",
		Help:      "Record store operation latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		storeOps,
		storeOpDuration,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	m := &MetricsServer{
		registry:        registry,
		StoreOps:        storeOps,
		StoreOpDuration: storeOpDuration,
	}

	mux := chi.NewRouter()
	mux.Handle("/metrics", m.Handler())

	m.srv = &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return m, nil
}

// Registry returns the underlying registry so other components may add collectors.
func (m *MetricsServer) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *MetricsServer) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

// Package metrics exposes Prometheus counters for binding and normalization.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rendis/flowgraph/internal/binder"
)

// Metrics holds the flowgraph collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	BindsTotal           *prometheus.CounterVec
	UnmatchedTotal       prometheus.Counter
	ReconciliationsTotal prometheus.Counter
	BuildsTotal          prometheus.Counter
	TreeNodes            prometheus.Gauge
}

// New creates and registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BindsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgraph_binds_total",
				Help: "Execution records bound onto a node tree",
			},
			[]string{"workflow_status", "swapped"},
		),
		UnmatchedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowgraph_unmatched_entries_total",
			Help: "Execution record references that matched no node",
		}),
		ReconciliationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowgraph_join_reconciliations_total",
			Help: "Stale JOIN selections corrected during normalization",
		}),
		BuildsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowgraph_tree_builds_total",
			Help: "Node trees built or rebuilt",
		}),
		TreeNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowgraph_tree_nodes",
			Help: "Node count of the most recently built tree",
		}),
	}
	m.registry.MustRegister(m.BindsTotal, m.UnmatchedTotal, m.ReconciliationsTotal, m.BuildsTotal, m.TreeNodes)
	return m
}

// ObserveBind records one bind summary.
func (m *Metrics) ObserveBind(s binder.Summary) {
	swapped := "false"
	if s.Swapped {
		swapped = "true"
	}
	m.BindsTotal.WithLabelValues(string(s.WorkflowStatus), swapped).Inc()
	m.UnmatchedTotal.Add(float64(s.Unmatched))
}

// ObserveBuild records a tree build with its node count and corrections.
func (m *Metrics) ObserveBuild(nodes, reconciliations int) {
	m.BuildsTotal.Inc()
	m.TreeNodes.Set(float64(nodes))
	m.ReconciliationsTotal.Add(float64(reconciliations))
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

var _ binder.Observer = (*Metrics)(nil)

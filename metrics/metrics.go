// Package metrics exposes Prometheus instrumentation for the FoldNet ledger
// and the HTTP listener serving it.
package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/foldnet/foldnet/ledger"
)

// MetricsServer owns the registry and the /metrics HTTP listener.
type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server

	SubmissionsTotal          prometheus.Counter
	BatchesOpenedTotal        prometheus.Counter
	BatchesClosedTotal        prometheus.Counter
	DecryptionsRequestedTotal prometheus.Counter
	DecryptionsCompletedTotal prometheus.Counter
	RejectedOpsTotal          *prometheus.CounterVec
}

// New creates a metrics server namespaced by the module path. listenAddr may
// be empty when no metrics listener is wanted; counters still work.
func New(packageName, listenAddr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	namespace := namespaceFor(packageName)
	m := &MetricsServer{
		registry: registry,
		SubmissionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Encrypted folding score submissions accepted.",
		}),
		BatchesOpenedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_opened_total",
			Help:      "Batches opened for collection.",
		}),
		BatchesClosedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_closed_total",
			Help:      "Batches closed and frozen.",
		}),
		DecryptionsRequestedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decryptions_requested_total",
			Help:      "Decryption requests dispatched to the oracle.",
		}),
		DecryptionsCompletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decryptions_completed_total",
			Help:      "Decryption callbacks finalized.",
		}),
		RejectedOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_operations_total",
			Help:      "Operations rejected by the ledger, by failure category.",
		}, []string{"category"}),
	}
	registry.MustRegister(
		m.SubmissionsTotal,
		m.BatchesOpenedTotal,
		m.BatchesClosedTotal,
		m.DecryptionsRequestedTotal,
		m.DecryptionsCompletedTotal,
		m.RejectedOpsTotal,
	)

	if listenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		m.srv = &http.Server{
			Addr:         listenAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}

	return m, nil
}

// namespaceFor derives a Prometheus namespace from the module path.
func namespaceFor(packageName string) string {
	parts := strings.Split(packageName, "/")
	ns := parts[len(parts)-1]
	return strings.NewReplacer("-", "_", ".", "_").Replace(ns)
}

// ListenAndServe serves /metrics until shutdown. No-op without a listen
// address.
func (m *MetricsServer) ListenAndServe() error {
	if m.srv == nil {
		return nil
	}
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	if m.srv == nil {
		return nil
	}
	return m.srv.Shutdown(ctx)
}

// RecordRejection counts a rejected operation under its failure category.
func (m *MetricsServer) RecordRejection(c ledger.Category) {
	m.RejectedOpsTotal.WithLabelValues(string(c)).Inc()
}

// Sink adapts the metrics server into a ledger event sink, counting
// transitions as they are emitted.
func (m *MetricsServer) Sink() ledger.EventSink {
	return ledger.SinkFunc(func(e ledger.Event) {
		switch e.Kind() {
		case ledger.KindFoldingDataSubmitted:
			m.SubmissionsTotal.Inc()
		case ledger.KindBatchOpened:
			m.BatchesOpenedTotal.Inc()
		case ledger.KindBatchClosed:
			m.BatchesClosedTotal.Inc()
		case ledger.KindDecryptionRequested:
			m.DecryptionsRequestedTotal.Inc()
		case ledger.KindDecryptionCompleted:
			m.DecryptionsCompletedTotal.Inc()
		}
	})
}

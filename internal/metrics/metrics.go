package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gss-go/internal/gss"
)

// Metrics implements gss.Metrics with Prometheus collectors registered on
// a private registry.
type Metrics struct {
	registry *prometheus.Registry

	SessionTransitions *prometheus.CounterVec
	FilesUploaded      *prometheus.CounterVec
	UploadRetries      prometheus.Counter
	RecordsResolved    *prometheus.CounterVec
	UploadPasses       *prometheus.CounterVec
	CurrentState       *prometheus.GaugeVec
}

var _ gss.Metrics = (*Metrics)(nil)

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.SessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gss",
			Name:      "session_transitions_total",
			Help:      "Session state machine transitions",
		},
		[]string{"from", "to"},
	)

	m.FilesUploaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gss",
			Name:      "files_uploaded_total",
			Help:      "Screenshots handed to the folder store",
		},
		[]string{"result"}, // uploaded, skipped
	)

	m.UploadRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gss",
			Name:      "upload_retries_total",
			Help:      "File upload attempts retried after a transient error",
		},
	)

	m.RecordsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gss",
			Name:      "records_resolved_total",
			Help:      "Session records created or extended",
		},
		[]string{"action"}, // created, extended
	)

	m.UploadPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gss",
			Name:      "upload_passes_total",
			Help:      "Upload passes by result",
		},
		[]string{"result"},
	)

	m.CurrentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gss",
			Name:      "session_state",
			Help:      "1 for the current session state, 0 otherwise",
		},
		[]string{"state"},
	)

	m.registry.MustRegister(
		m.SessionTransitions,
		m.FilesUploaded,
		m.UploadRetries,
		m.RecordsResolved,
		m.UploadPasses,
		m.CurrentState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, s := range []gss.State{gss.StateIdle, gss.StateActive, gss.StatePaused} {
		m.CurrentState.WithLabelValues(s.String()).Set(0)
	}
	m.CurrentState.WithLabelValues(gss.StateIdle.String()).Set(1)
	return m
}

func (m *Metrics) SessionTransition(from, to gss.State) {
	m.SessionTransitions.WithLabelValues(from.String(), to.String()).Inc()
	m.CurrentState.WithLabelValues(from.String()).Set(0)
	m.CurrentState.WithLabelValues(to.String()).Set(1)
}

func (m *Metrics) FileUploaded(skipped bool) {
	if skipped {
		m.FilesUploaded.WithLabelValues("skipped").Inc()
		return
	}
	m.FilesUploaded.WithLabelValues("uploaded").Inc()
}

func (m *Metrics) UploadRetry() {
	m.UploadRetries.Inc()
}

func (m *Metrics) RecordResolved(created bool) {
	if created {
		m.RecordsResolved.WithLabelValues("created").Inc()
		return
	}
	m.RecordsResolved.WithLabelValues("extended").Inc()
}

func (m *Metrics) UploadPass(result string) {
	m.UploadPasses.WithLabelValues(result).Inc()
}

// Registry exposes the registry for scraping in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}

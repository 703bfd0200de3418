package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetsync/pkg/logging"
)

const namespace = "fleetsync"

// Cycle outcomes reported by ObserveCycle.
const (
	CycleOK    = "ok"
	CycleError = "error"
)

// Recorder owns the pipeline collectors.
type Recorder struct {
	registry *prometheus.Registry

	discoveryDuration *prometheus.HistogramVec
	discoveryErrors   *prometheus.CounterVec
	issues            *prometheus.CounterVec
	repairs           *prometheus.CounterVec
	driftEvents       *prometheus.CounterVec
	cycles            *prometheus.CounterVec
	lastCycle         prometheus.Gauge
	historySize       prometheus.Gauge
}

// New creates a Recorder registered on reg. A nil reg creates a private
// registry, which Handler then serves.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		discoveryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_duration_seconds",
			Help:      "Time spent discovering one node",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to 32s
		}, []string{"node"}),
		discoveryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_errors_total",
			Help:      "Discovery sub-check failures by node",
		}, []string{"node"}),
		issues: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_issues_total",
			Help:      "Validation issues by type and severity",
		}, []string{"type", "severity"}),
		repairs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repairs_total",
			Help:      "Repair attempts by action and result",
		}, []string{"action", "result"}),
		driftEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drift_events_total",
			Help:      "Drift detections by type and severity",
		}, []string{"type", "severity"}),
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_cycles_total",
			Help:      "Monitor cycles by outcome",
		}, []string{"result"}),
		lastCycle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_last_cycle_timestamp_seconds",
			Help:      "Unix time of the last completed monitor cycle",
		}),
		historySize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "drift_history_entries",
			Help:      "Drift detections currently retained",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveDiscovery records one node discovery.
func (r *Recorder) ObserveDiscovery(node string, d time.Duration, errorCount int) {
	if r == nil {
		return
	}
	r.discoveryDuration.WithLabelValues(node).Observe(d.Seconds())
	if errorCount > 0 {
		r.discoveryErrors.WithLabelValues(node).Add(float64(errorCount))
	}
}

// ObserveIssue records one validation issue.
func (r *Recorder) ObserveIssue(issueType, severity string) {
	if r == nil {
		return
	}
	r.issues.WithLabelValues(issueType, severity).Inc()
}

// ObserveRepair records one repair attempt.
func (r *Recorder) ObserveRepair(action string, success bool) {
	if r == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	r.repairs.WithLabelValues(action, result).Inc()
}

// ObserveDrift records one drift detection.
func (r *Recorder) ObserveDrift(driftType, severity string) {
	if r == nil {
		return
	}
	r.driftEvents.WithLabelValues(driftType, severity).Inc()
}

// ObserveCycle records a finished monitor cycle.
func (r *Recorder) ObserveCycle(result string, at time.Time) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(result).Inc()
	r.lastCycle.Set(float64(at.Unix()))
}

// SetHistorySize reports the number of retained drift detections.
func (r *Recorder) SetHistorySize(n int) {
	if r == nil {
		return
	}
	r.historySize.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Metrics", "Serving metrics on %s/metrics", addr)
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

// Package metrics exposes Prometheus collectors for a ledger build run.
//
// The build is a batch job, so collectors are exported once at the end of a run
// either to a node-exporter textfile or to a Pushgateway.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	registry *prometheus.Registry

	sourceReleasesTotal   *prometheus.CounterVec
	sourceFailuresTotal   *prometheus.CounterVec
	politenessWaitSeconds *prometheus.HistogramVec
	reconciledReleases    prometheus.Gauge
	droppedByAgeTotal     prometheus.Counter
	runDurationSeconds    prometheus.Gauge
	lastSuccessTimestamp  prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors on a dedicated registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		factory := func(c prometheus.Collector) {
			registry.MustRegister(c)
		}

		sourceReleasesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_source_releases_total",
				Help: "Candidate releases collected, labeled by source.",
			},
			[]string{"source"},
		)
		factory(sourceReleasesTotal)

		sourceFailuresTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_source_failures_total",
				Help: "Skipped units of work, labeled by source and failure kind.",
			},
			[]string{"source", "kind"},
		)
		factory(sourceFailuresTotal)

		politenessWaitSeconds = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_politeness_wait_seconds",
				Help:    "Histogram of pacing delays introduced before source requests.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"source"},
		)
		factory(politenessWaitSeconds)

		reconciledReleases = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_reconciled_releases",
			Help: "Releases written by the most recent run.",
		})
		factory(reconciledReleases)

		droppedByAgeTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_dropped_by_age_total",
			Help: "Candidates rejected by the lookback window.",
		})
		factory(droppedByAgeTotal)

		runDurationSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_run_duration_seconds",
			Help: "Wall-clock duration of the most recent run.",
		})
		factory(runDurationSeconds)

		lastSuccessTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_last_success_timestamp_seconds",
			Help: "Unix time of the last run that wrote both artifacts.",
		})
		factory(lastSuccessTimestamp)
	})
}

// Gatherer returns the registry backing the ledger collectors.
func Gatherer() prometheus.Gatherer {
	Init()
	return registry
}

// ObserveSourceReleases adds n collected candidates for source.
func ObserveSourceReleases(source string, n int) {
	Init()
	if n > 0 {
		sourceReleasesTotal.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveSourceFailure increments the skipped-unit counter.
func ObserveSourceFailure(source, kind string) {
	Init()
	sourceFailuresTotal.WithLabelValues(source, kind).Inc()
}

// ObservePolitenessWait records a pacing delay for source.
func ObservePolitenessWait(source string, d time.Duration) {
	Init()
	politenessWaitSeconds.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveDroppedByAge adds n candidates rejected by the age filter.
func ObserveDroppedByAge(n int) {
	Init()
	if n > 0 {
		droppedByAgeTotal.Add(float64(n))
	}
}

// ObserveRun records the outcome of a full run.
func ObserveRun(reconciled int, duration time.Duration, finished time.Time) {
	Init()
	reconciledReleases.Set(float64(reconciled))
	runDurationSeconds.Set(duration.Seconds())
	lastSuccessTimestamp.Set(float64(finished.Unix()))
}

// ExportConfig selects where collected metrics are written after a run.
type ExportConfig struct {
	TextfilePath   string
	PushgatewayURL string
	JobName        string
}

// Export writes the registry to the configured destinations. Both are optional.
func Export(ctx context.Context, cfg ExportConfig) error {
	Init()
	if cfg.TextfilePath != "" {
		if err := prometheus.WriteToTextfile(cfg.TextfilePath, registry); err != nil {
			return fmt.Errorf("write metrics textfile: %w", err)
		}
	}
	if cfg.PushgatewayURL != "" {
		job := cfg.JobName
		if job == "" {
			job = "ledger_build"
		}
		if err := push.New(cfg.PushgatewayURL, job).Gatherer(registry).PushContext(ctx); err != nil {
			return fmt.Errorf("push metrics: %w", err)
		}
	}
	return nil
}

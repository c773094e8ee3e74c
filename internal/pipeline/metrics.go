package pipeline

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ingestion collectors, registered on an injected registry
type Metrics struct {
	registry *prometheus.Registry

	// Outcomes counts candidates by resolution outcome.
	// Labels: kind (commitment, funding, unknown), outcome (inserted, merged, unchanged, rejected, failed)
	Outcomes *prometheus.CounterVec

	// ExtractionFailures counts snippets the extractor could not use.
	// Labels: reason (no_pattern_match, missing_required_field, invalid_date, other)
	ExtractionFailures *prometheus.CounterVec

	// RunDuration tracks how long an ingestion or rescore run takes.
	// Labels: run (ingest, rescore)
	RunDuration *prometheus.HistogramVec

	// StoredRecords is the store size after the last run
	StoredRecords prometheus.Gauge
}

// NewMetrics registers the ingestion collectors on reg; a nil reg gets a
// fresh registry
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "carbonintel",
				Subsystem: "ingest",
				Name:      "candidates_total",
				Help:      "Total number of candidates by resolution outcome",
			},
			[]string{"kind", "outcome"},
		),
		ExtractionFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "carbonintel",
				Subsystem: "ingest",
				Name:      "extraction_failures_total",
				Help:      "Total number of snippets that failed extraction",
			},
			[]string{"reason"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "carbonintel",
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Duration of pipeline runs in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"run"},
		),
		StoredRecords: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "carbonintel",
				Subsystem: "store",
				Name:      "records",
				Help:      "Number of records in the store after the last run",
			},
		),
	}
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes a textfile-collector snapshot to path
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

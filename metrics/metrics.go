// Package metrics holds the Prometheus collectors for harvest runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Entry outcome labels.
const (
	OutcomeRecorded  = "recorded"
	OutcomePartial   = "partial"
	OutcomeFailed    = "failed"
	OutcomeExhausted = "exhausted"
)

// Metrics bundles Prometheus collectors for the harvester.
type Metrics struct {
	Registry      *prometheus.Registry
	EntriesTotal  *prometheus.CounterVec
	EntryDuration prometheus.Histogram
	Recoveries    prometheus.Counter
	RunsTotal     *prometheus.CounterVec
	RecordsSaved  *prometheus.CounterVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	entries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_entries_total",
			Help: "Listing entries processed, by outcome.",
		},
		[]string{"outcome"},
	)
	entryDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvest_entry_duration_seconds",
			Help:    "Time spent on one open-extract-restore cycle.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
	)
	recoveries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_recoveries_total",
			Help: "Forced resets to the search page after an entry failure.",
		},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_runs_total",
			Help: "Harvest runs by final status.",
		},
		[]string{"status"},
	)
	saved := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_records_saved_total",
			Help: "Records written to durable output, by format.",
		},
		[]string{"format"},
	)

	registry.MustRegister(entries, entryDuration, recoveries, runs, saved)

	return &Metrics{
		Registry:      registry,
		EntriesTotal:  entries,
		EntryDuration: entryDuration,
		Recoveries:    recoveries,
		RunsTotal:     runs,
		RecordsSaved:  saved,
	}
}

// IncEntry counts one processed entry.
func (m *Metrics) IncEntry(outcome string) {
	if m == nil {
		return
	}
	m.EntriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveEntry records how long one entry took.
func (m *Metrics) ObserveEntry(d time.Duration) {
	if m == nil {
		return
	}
	m.EntryDuration.Observe(d.Seconds())
}

// IncRecovery counts one forced reset.
func (m *Metrics) IncRecovery() {
	if m == nil {
		return
	}
	m.Recoveries.Inc()
}

// IncRun counts one finished run.
func (m *Metrics) IncRun(status string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
}

// AddSaved counts records written in one format.
func (m *Metrics) AddSaved(format string, n int) {
	if m == nil {
		return
	}
	m.RecordsSaved.WithLabelValues(format).Add(float64(n))
}

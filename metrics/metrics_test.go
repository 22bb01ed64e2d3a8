package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.IncEntry(OutcomeRecorded)
	m.ObserveEntry(time.Second)
	m.IncRecovery()
	m.IncRun("completed")
	m.AddSaved("csv", 3)
}

func TestCounters(t *testing.T) {
	m := New()
	m.IncEntry(OutcomeRecorded)
	m.IncEntry(OutcomeRecorded)
	m.IncEntry(OutcomeFailed)
	m.IncRecovery()
	m.AddSaved("json", 4)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"recorded", testutil.ToFloat64(m.EntriesTotal.WithLabelValues(OutcomeRecorded)), 2},
		{"failed", testutil.ToFloat64(m.EntriesTotal.WithLabelValues(OutcomeFailed)), 1},
		{"recoveries", testutil.ToFloat64(m.Recoveries), 1},
		{"saved json", testutil.ToFloat64(m.RecordsSaved.WithLabelValues("json")), 4},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(m.EntriesTotal); n != 2 {
		t.Errorf("entries series = %d, want 2", n)
	}
}

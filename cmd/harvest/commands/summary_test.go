package commands

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/harvest/harvest"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/sink"
)

func TestOutcomeText(t *testing.T) {
	tests := []struct {
		name string
		in   sink.Outcome
		want string
	}{
		{"written", sink.Outcome{Format: sink.FormatCSV, Path: "out/a.csv", Written: 3}, "out/a.csv"},
		{"disabled", sink.Outcome{Format: sink.FormatCSV, Skipped: true}, "disabled"},
		{"empty batch", sink.Outcome{Format: sink.FormatJSON, Path: "out/a.json", Skipped: true}, "nothing to save"},
		{"failed", sink.Outcome{Format: sink.FormatJSON, Path: "out/a.json", Err: errors.New("disk full")}, "failed: disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outcomeText(tt.in); got != tt.want {
				t.Errorf("outcomeText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintSummary(t *testing.T) {
	start := time.Date(2024, 3, 9, 14, 0, 0, 0, time.UTC)
	res := &harvest.Result{
		SearchURL:  "https://shop.test/s?q=pumps",
		Records:    []models.ProductRecord{models.NewProductRecord("", "https://shop.test/p/1", nil, start)},
		Advisory:   10,
		Attempted:  6,
		Partial:    1,
		Failed:     5,
		Exhausted:  true,
		StoppedAt:  6,
		StartedAt:  start,
		FinishedAt: start.Add(42 * time.Second),
	}
	report := sink.Report{
		Tabular:    sink.Outcome{Format: sink.FormatCSV, Path: "out/a.csv", Written: 1},
		Structured: sink.Outcome{Format: sink.FormatJSON, Skipped: true},
	}

	var buf bytes.Buffer
	printSummary(&buf, res, report)

	out := buf.String()
	for _, want := range []string{"Harvest summary", "https://shop.test/s?q=pumps", "at index 6", "42s", "out/a.csv", "disabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

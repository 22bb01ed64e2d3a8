// Package sink persists a finished batch of records as CSV and JSON.
package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/use-agent/harvest/metrics"
	"github.com/use-agent/harvest/models"
)

// Output formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Outcome is the result of writing one format.
type Outcome struct {
	Format string
	Path   string

	// Written is the number of records written.
	Written int

	// Skipped is true when nothing was attempted: the batch was empty or the
	// format has no destination.
	Skipped bool

	Err error
}

// Model converts o for API responses.
func (o Outcome) Model() models.OutputOutcome {
	out := models.OutputOutcome{
		Format:  o.Format,
		Path:    o.Path,
		Written: o.Written,
		Skipped: o.Skipped,
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return out
}

// Report holds the outcome of each format. One format failing never
// prevents the other from being attempted.
type Report struct {
	Tabular    Outcome
	Structured Outcome
}

// Outcomes returns the tabular then the structured outcome.
func (r Report) Outcomes() []Outcome {
	return []Outcome{r.Tabular, r.Structured}
}

// Err joins the errors of both formats; nil if both succeeded or were skipped.
func (r Report) Err() error {
	return errors.Join(r.Tabular.Err, r.Structured.Err)
}

// Sink writes batches to a CSV and a JSON file. An empty path disables
// that format.
type Sink struct {
	csvPath  string
	jsonPath string
	metrics  *metrics.Metrics
}

// New creates a Sink. m may be nil.
func New(csvPath, jsonPath string, m *metrics.Metrics) *Sink {
	return &Sink{csvPath: csvPath, jsonPath: jsonPath, metrics: m}
}

// Save writes records to both formats. An empty batch writes nothing and
// reports both formats as skipped.
func (s *Sink) Save(records []models.ProductRecord) Report {
	if len(records) == 0 {
		slog.Info("nothing to save")
		return Report{
			Tabular:    Outcome{Format: FormatCSV, Path: s.csvPath, Skipped: true},
			Structured: Outcome{Format: FormatJSON, Path: s.jsonPath, Skipped: true},
		}
	}

	return Report{
		Tabular:    s.save(FormatCSV, s.csvPath, records, WriteCSV),
		Structured: s.save(FormatJSON, s.jsonPath, records, WriteJSON),
	}
}

func (s *Sink) save(format, path string, records []models.ProductRecord, write func(io.Writer, []models.ProductRecord) error) (out Outcome) {
	out = Outcome{Format: format, Path: path}
	if path == "" {
		out.Skipped = true
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("write %s: panic: %v", format, r)
		}
		if out.Err != nil {
			slog.Error("saving output failed", "format", format, "path", path, "error", out.Err)
			return
		}
		slog.Info("data saved", "format", format, "path", path, "records", out.Written)
		s.metrics.AddSaved(format, out.Written)
	}()

	if err := writeFile(path, func(w io.Writer) error { return write(w, records) }); err != nil {
		out.Err = models.NewHarvestError(models.ErrCodeOutput, fmt.Sprintf("could not save %s output", format), err)
		return out
	}
	out.Written = len(records)
	return out
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	buf := bufio.NewWriter(f)
	if err := write(buf); err != nil {
		f.Close()
		return err
	}
	if err := buf.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

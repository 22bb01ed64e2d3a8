// Package harvest drives the navigation controller across a whole search
// listing and collects the records it produces.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/metrics"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/navigator"
)

// EntryProcessor handles one listing entry.
type EntryProcessor interface {
	ProcessEntry(s browser.Session, searchURL string, index int) navigator.Result
}

// Result is the outcome of one run.
type Result struct {
	SearchURL string

	// Records are in ascending entry order.
	Records []models.ProductRecord

	// Advisory is the entry count taken once when the listing first appeared.
	Advisory int

	Attempted int
	Partial   int
	Failed    int

	// Exhausted is true when the live listing ran out before Advisory.
	Exhausted bool

	// StoppedAt is the index that reported exhaustion, or -1.
	StoppedAt int

	StartedAt  time.Time
	FinishedAt time.Time
}

// Progress summarises r for status reporting.
func (r *Result) Progress() models.JobProgress {
	return models.JobProgress{
		Advisory:  r.Advisory,
		Attempted: r.Attempted,
		Recorded:  len(r.Records),
		Partial:   r.Partial,
		Failed:    r.Failed,
		Exhausted: r.Exhausted,
	}
}

// Orchestrator runs batches. It holds no per-run state.
type Orchestrator struct {
	proc    EntryProcessor
	cfg     config.HarvestConfig
	metrics *metrics.Metrics
}

// New creates an Orchestrator. m may be nil.
func New(proc EntryProcessor, cfg config.HarvestConfig, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{proc: proc, cfg: cfg, metrics: m}
}

type runOptions struct {
	limit    int
	progress func(models.JobProgress)
}

// Option adjusts a single run.
type Option func(*runOptions)

// WithLimit caps the number of entries attempted. The configured
// MaxEntries, when set, still applies; zero adds no cap of its own.
func WithLimit(n int) Option {
	return func(o *runOptions) { o.limit = n }
}

// WithProgress registers a callback invoked after every entry.
func WithProgress(fn func(models.JobProgress)) Option {
	return func(o *runOptions) { o.progress = fn }
}

// Run navigates to searchURL and processes every entry in ascending order
// until the advisory count is reached or the live listing runs out.
//
// A listing that never appears fails the run with LISTING_UNAVAILABLE and
// no records. Cancelling ctx stops the run between entries; the records
// gathered so far are returned together with a HARVEST_CANCELED error.
func (o *Orchestrator) Run(ctx context.Context, s browser.Session, searchURL string, opts ...Option) (*Result, error) {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}
	limit := ro.limit
	if capped := o.cfg.MaxEntries; capped > 0 && (limit <= 0 || capped < limit) {
		limit = capped
	}

	res := &Result{
		SearchURL: searchURL,
		Records:   []models.ProductRecord{},
		StoppedAt: -1,
		StartedAt: time.Now(),
	}
	defer func() { res.FinishedAt = time.Now() }()

	if err := o.openListing(s, searchURL); err != nil {
		o.metrics.IncRun(models.JobFailed)
		return res, err
	}

	entries, err := s.FindAll(o.cfg.Selectors.ListingEntry)
	if err != nil {
		o.metrics.IncRun(models.JobFailed)
		return res, browser.Classify(err, models.ErrCodeListingUnavailable, "could not count listing entries")
	}
	total := len(entries)
	res.Advisory = total
	if limit > 0 && limit < total {
		total = limit
	}
	slog.Info("listing ready", "url", searchURL, "entries", res.Advisory, "planned", total)

	for index := 0; index < total; index++ {
		if err := ctx.Err(); err != nil {
			slog.Warn("harvest canceled", "next_index", index, "records", len(res.Records))
			o.metrics.IncRun(models.JobCanceled)
			return res, models.NewHarvestError(models.ErrCodeCanceled, "harvest canceled", err)
		}

		out := o.proc.ProcessEntry(s, searchURL, index)
		switch out.State {
		case navigator.IndexExhausted:
			res.Exhausted = true
			res.StoppedAt = index
		case navigator.Recorded:
			res.Attempted++
			res.Records = append(res.Records, *out.Record)
			if out.Record.Partial() {
				res.Partial++
			}
		default:
			res.Attempted++
			res.Failed++
		}
		if ro.progress != nil {
			ro.progress(res.Progress())
		}
		if res.Exhausted {
			slog.Info("stopping early, listing has fewer entries than counted",
				"stopped_at", index, "advisory", res.Advisory)
			break
		}
	}

	slog.Info("harvest finished",
		"url", searchURL,
		"records", len(res.Records),
		"partial", res.Partial,
		"failed", res.Failed,
		"exhausted", res.Exhausted,
	)
	o.metrics.IncRun(models.JobCompleted)
	return res, nil
}

func (o *Orchestrator) openListing(s browser.Session, searchURL string) error {
	if err := s.Navigate(searchURL); err != nil {
		return browser.Classify(err, models.ErrCodeListingUnavailable,
			fmt.Sprintf("could not open search page %s", searchURL))
	}
	if _, err := s.WaitUntil(browser.ElementPresent(o.cfg.Selectors.ListingReady), o.cfg.ListingTimeout); err != nil {
		return models.NewHarvestError(models.ErrCodeListingUnavailable,
			"search listing never appeared", err)
	}
	return nil
}

// Package navigator runs the open, extract and return cycle for a single
// listing entry and recovers the session when any step of it fails.
package navigator

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/metrics"
	"github.com/use-agent/harvest/models"
)

// State is the life-cycle position of one entry.
type State int

const (
	Pending State = iota
	NavigatingAway
	IndexExhausted
	Extracting
	Restoring
	Recorded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case NavigatingAway:
		return "navigating_away"
	case IndexExhausted:
		return "index_exhausted"
	case Extracting:
		return "extracting"
	case Restoring:
		return "restoring"
	case Recorded:
		return "recorded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Extractor reads a record from the session's current window.
type Extractor interface {
	Extract(s browser.Session) models.ProductRecord
}

// Result is the outcome of ProcessEntry. State is one of Recorded, Failed
// or IndexExhausted; Record is set only when State is Recorded.
type Result struct {
	Index  int
	State  State
	Record *models.ProductRecord

	// Err is the cause of a Failed entry.
	Err error
}

// Controller processes listing entries one at a time.
type Controller struct {
	cfg       config.HarvestConfig
	extractor Extractor
	metrics   *metrics.Metrics
	sleep     func(time.Duration)
}

// New creates a Controller. m may be nil.
func New(cfg config.HarvestConfig, ext Extractor, m *metrics.Metrics) *Controller {
	return &Controller{
		cfg:       cfg,
		extractor: ext,
		metrics:   m,
		sleep:     time.Sleep,
	}
}

// ProcessEntry opens the entry at index in a freshly acquired listing
// snapshot, extracts it, and returns the session to the search listing.
//
// Any failure, including a driver panic, is contained here: extra windows
// are closed, the session is reset to searchURL and the entry is reported
// as Failed with no record. On return exactly one window is open.
func (c *Controller) ProcessEntry(s browser.Session, searchURL string, index int) (res Result) {
	start := time.Now()
	res = Result{Index: index, State: Pending}

	defer func() {
		switch res.State {
		case IndexExhausted:
			c.metrics.IncEntry(metrics.OutcomeExhausted)
			return
		case Recorded:
			if res.Record.Partial() {
				c.metrics.IncEntry(metrics.OutcomePartial)
			} else {
				c.metrics.IncEntry(metrics.OutcomeRecorded)
			}
		default:
			c.metrics.IncEntry(metrics.OutcomeFailed)
		}
		c.metrics.ObserveEntry(time.Since(start))
	}()

	defer func() {
		if r := recover(); r != nil {
			c.fail(s, searchURL, &res, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := c.process(s, searchURL, &res); err != nil {
		c.fail(s, searchURL, &res, err)
		return res
	}
	if res.State != IndexExhausted {
		res.State = Recorded
	}
	return res
}

func (c *Controller) process(s browser.Session, searchURL string, res *Result) error {
	entries, err := c.snapshot(s)
	if err != nil {
		return err
	}
	if res.Index >= len(entries) {
		slog.Info("listing exhausted", "index", res.Index, "live_entries", len(entries))
		res.State = IndexExhausted
		return nil
	}

	entry := entries[res.Index]
	if label, err := entry.Text(); err == nil {
		slog.Info("processing entry", "index", res.Index, "label", truncate(label, 30))
	}

	res.State = NavigatingAway
	if err := c.visit(s, searchURL, entry, res); err != nil {
		return err
	}

	if _, err := s.WaitUntil(browser.ElementPresent(c.cfg.Selectors.ListingReady), c.cfg.ListingTimeout); err != nil {
		return fmt.Errorf("listing did not come back: %w", err)
	}
	return nil
}

// snapshot re-acquires the listing entries. Handles from earlier snapshots
// are never reused across a navigation.
func (c *Controller) snapshot(s browser.Session) ([]browser.Element, error) {
	if _, err := s.WaitUntil(browser.ElementPresent(c.cfg.Selectors.ListingEntry), c.cfg.SnapshotTimeout); err != nil {
		return nil, fmt.Errorf("acquire listing snapshot: %w", err)
	}
	entries, err := s.FindAll(c.cfg.Selectors.ListingEntry)
	if err != nil {
		return nil, fmt.Errorf("acquire listing snapshot: %w", err)
	}
	return entries, nil
}

// visit clicks entry, extracts whatever page it leads to and restores the
// window set. Restoration runs even when entering the detail page failed.
func (c *Controller) visit(s browser.Session, searchURL string, entry browser.Element, res *Result) (err error) {
	if err := s.ScriptClick(entry); err != nil {
		return fmt.Errorf("click entry: %w", err)
	}

	opened := false
	defer func() {
		res.State = Restoring
		if rerr := c.restore(s, searchURL, opened); rerr != nil {
			err = errors.Join(err, fmt.Errorf("restore windows: %w", rerr))
		}
	}()

	opened, err = c.enterDetail(s)
	if err != nil {
		return err
	}

	res.State = Extracting
	rec := c.extractor.Extract(s)
	res.Record = &rec
	return nil
}

// enterDetail switches to the window the click opened. It reports false
// when no second window appeared and the click navigated in place.
func (c *Controller) enterDetail(s browser.Session) (bool, error) {
	if _, err := s.WaitUntil(browser.WindowCount(2), c.cfg.NewWindowTimeout); err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			slog.Debug("no new window appeared, assuming in-place navigation")
			return false, nil
		}
		return false, fmt.Errorf("wait for new window: %w", err)
	}

	windows, err := s.Windows()
	if err != nil {
		return false, fmt.Errorf("list windows: %w", err)
	}
	if len(windows) < 2 {
		return false, errors.New("new window closed before it could be entered")
	}
	if err := s.SwitchToWindow(windows[1]); err != nil {
		return false, fmt.Errorf("switch to new window: %w", err)
	}
	return true, nil
}

// restore closes every window but the first. After in-place navigation
// there is nothing to close, so the first window is sent back to searchURL.
func (c *Controller) restore(s browser.Session, searchURL string, opened bool) error {
	windows, err := s.Windows()
	if err != nil {
		return err
	}
	if len(windows) > 1 {
		return closeExtra(s, windows)
	}
	if !opened {
		return s.Navigate(searchURL)
	}
	return nil
}

// fail resets the session to a clean search page and marks res Failed.
func (c *Controller) fail(s browser.Session, searchURL string, res *Result, cause error) {
	res.State = Failed
	res.Record = nil
	res.Err = browser.Classify(cause, models.ErrCodeNavigation, fmt.Sprintf("entry %d failed", res.Index))
	slog.Warn("entry failed, resetting to search page", "index", res.Index, "error", cause)

	c.metrics.IncRecovery()
	c.reset(s, searchURL)
	c.sleep(c.cfg.SettleDelay)
}

func (c *Controller) reset(s browser.Session, searchURL string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("session reset panicked", "panic", r)
		}
	}()

	windows, err := s.Windows()
	if err != nil {
		slog.Warn("reset: could not list windows", "error", err)
	} else if len(windows) > 0 {
		if err := closeExtra(s, windows); err != nil {
			slog.Warn("reset: could not close extra windows", "error", err)
		}
	}
	if err := s.Navigate(searchURL); err != nil {
		slog.Warn("reset: could not reload search page", "url", searchURL, "error", err)
	}
}

// closeExtra closes windows[1:] and makes windows[0] current.
func closeExtra(s browser.Session, windows []browser.WindowHandle) error {
	var errs []error
	for _, h := range windows[1:] {
		if err := s.SwitchToWindow(h); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.CloseCurrentWindow(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.SwitchToWindow(windows[0]); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

package harvest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/use-agent/harvest/browser/browsertest"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/harvest"
	"github.com/use-agent/harvest/metrics"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/navigator"
)

const (
	base      = "https://shop.test"
	searchURL = base + "/search"
)

func testConfig() config.HarvestConfig {
	return config.HarvestConfig{
		Selectors:         config.DefaultSelectors(),
		ListingTimeout:    time.Second,
		SnapshotTimeout:   time.Second,
		NewWindowTimeout:  time.Second,
		TitleTimeout:      time.Second,
		AttributesTimeout: time.Second,
	}
}

func newOrchestrator(m *metrics.Metrics) *harvest.Orchestrator {
	cfg := testConfig()
	ctrl := navigator.New(cfg, extractor.New(cfg), m)
	return harvest.New(ctrl, cfg, m)
}

// newSite registers a static listing of n new-window entries and their detail pages.
func newSite(n int) (*browsertest.Fake, []browsertest.Entry) {
	f := browsertest.New()
	entries := browsertest.Entries(base, n, true)
	f.Page(searchURL, browsertest.SearchPage(entries...))
	addDetails(f, entries)
	return f, entries
}

func addDetails(f *browsertest.Fake, entries []browsertest.Entry) {
	for _, e := range entries {
		f.Page(e.Href, browsertest.DetailPage(browsertest.Detail{Title: e.Label}))
	}
}

func titles(records []models.ProductRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}

func TestRun_AllEntries(t *testing.T) {
	f, _ := newSite(3)

	res, err := newOrchestrator(nil).Run(context.Background(), f, searchURL)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"Product 0", "Product 1", "Product 2"}
	if diff := cmp.Diff(want, titles(res.Records)); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}
	if res.Advisory != 3 || res.Attempted != 3 || res.Exhausted || res.StoppedAt != -1 {
		t.Errorf("unexpected summary: %+v", res.Progress())
	}
	if len(f.OpenWindows()) != 1 {
		t.Errorf("windows left open: %v", f.OpenWindows())
	}
}

func TestRun_EntryFailureIsIsolated(t *testing.T) {
	f, _ := newSite(5)
	clicks := 0
	f.FailHook = func(op, _ string) error {
		if op != "click" {
			return nil
		}
		clicks++
		if clicks == 3 {
			return errors.New("element is not attached to the page")
		}
		return nil
	}
	m := metrics.New()

	res, err := newOrchestrator(m).Run(context.Background(), f, searchURL)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if clicks != 5 {
		t.Errorf("clicks = %d, want all 5 entries attempted", clicks)
	}
	want := []string{"Product 0", "Product 1", "Product 3", "Product 4"}
	if diff := cmp.Diff(want, titles(res.Records)); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}
	if res.Attempted != 5 || res.Failed != 1 {
		t.Errorf("Attempted = %d, Failed = %d; want 5 and 1", res.Attempted, res.Failed)
	}
}

func TestRun_StopsWhenListingShrinks(t *testing.T) {
	f := browsertest.New()
	entries := browsertest.Entries(base, 10, true)
	// Every return to the listing re-renders it; from the seventh render
	// on, only six entries are left.
	f.Route(searchURL, func(visit int) string {
		if visit < 7 {
			return browsertest.SearchPage(entries...)
		}
		return browsertest.SearchPage(entries[:6]...)
	})
	addDetails(f, entries)

	res, err := newOrchestrator(nil).Run(context.Background(), f, searchURL)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Advisory != 10 {
		t.Errorf("Advisory = %d, want 10", res.Advisory)
	}
	if len(res.Records) != 6 {
		t.Errorf("records = %d, want 6", len(res.Records))
	}
	if !res.Exhausted || res.StoppedAt != 6 {
		t.Errorf("Exhausted = %v, StoppedAt = %d; want true and 6", res.Exhausted, res.StoppedAt)
	}
	if len(f.Clicks) != 6 {
		t.Errorf("clicks = %d, want 6", len(f.Clicks))
	}
}

func TestRun_ListingNeverAppears(t *testing.T) {
	f := browsertest.New()
	f.Page(searchURL, browsertest.SearchPage())

	res, err := newOrchestrator(nil).Run(context.Background(), f, searchURL)

	var herr *models.HarvestError
	if !errors.As(err, &herr) || herr.Code != models.ErrCodeListingUnavailable {
		t.Fatalf("err = %v, want %s", err, models.ErrCodeListingUnavailable)
	}
	if len(res.Records) != 0 || res.Attempted != 0 {
		t.Errorf("fatal run produced work: %+v", res.Progress())
	}
}

func TestRun_CanceledBetweenEntries(t *testing.T) {
	f, _ := newSite(5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	progress := func(p models.JobProgress) {
		if p.Attempted == 2 {
			cancel()
		}
	}
	res, err := newOrchestrator(nil).Run(ctx, f, searchURL, harvest.WithProgress(progress))

	var herr *models.HarvestError
	if !errors.As(err, &herr) || herr.Code != models.ErrCodeCanceled {
		t.Fatalf("err = %v, want %s", err, models.ErrCodeCanceled)
	}
	if len(res.Records) != 2 {
		t.Errorf("records = %d, want the 2 gathered before cancel", len(res.Records))
	}
	if len(f.OpenWindows()) != 1 {
		t.Errorf("windows left open after cancel: %v", f.OpenWindows())
	}
}

func TestRun_Limit(t *testing.T) {
	f, _ := newSite(5)

	res, err := newOrchestrator(nil).Run(context.Background(), f, searchURL, harvest.WithLimit(2))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Advisory != 5 {
		t.Errorf("Advisory = %d, want 5", res.Advisory)
	}
	if diff := cmp.Diff([]string{"Product 0", "Product 1"}, titles(res.Records)); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_ProgressCountsPartialRecords(t *testing.T) {
	f := browsertest.New()
	entries := browsertest.Entries(base, 2, false)
	f.Page(searchURL, browsertest.SearchPage(entries...))
	f.Page(entries[0].Href, browsertest.DetailPage(browsertest.Detail{Title: "Named"}))
	f.Page(entries[1].Href, browsertest.DetailPage(browsertest.Detail{
		Attributes: [][2]string{{"Color", "Red"}},
	}))

	var seen []models.JobProgress
	res, err := newOrchestrator(nil).Run(context.Background(), f, searchURL,
		harvest.WithProgress(func(p models.JobProgress) { seen = append(seen, p) }))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []models.JobProgress{
		{Advisory: 2, Attempted: 1, Recorded: 1},
		{Advisory: 2, Attempted: 2, Recorded: 2, Partial: 1},
	}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
	if res.Records[1].Title != models.Sentinel || res.Records[1].URL != entries[1].Href {
		t.Errorf("partial record = %+v", res.Records[1])
	}
}

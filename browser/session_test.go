package browser_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/browser/browsertest"
)

func TestPoll_HoldsAfterRetries(t *testing.T) {
	calls := 0
	cond := func(browser.Session) (browser.Element, bool, error) {
		calls++
		if calls < 3 {
			return nil, false, errors.New("document not ready")
		}
		return nil, true, nil
	}

	if _, err := browser.Poll(context.Background(), nil, cond, time.Second, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("condition evaluated %d times, want 3", calls)
	}
}

func TestPoll_TimeoutCarriesLastError(t *testing.T) {
	cause := errors.New("node detached")
	cond := func(browser.Session) (browser.Element, bool, error) {
		return nil, false, cause
	}

	_, err := browser.Poll(context.Background(), nil, cond, 5*time.Millisecond, time.Millisecond)
	if !errors.Is(err, browser.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if got := err.Error(); !strings.Contains(got, "node detached") {
		t.Errorf("timeout error should mention the last condition error, got %q", got)
	}
}

func TestPoll_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	never := func(browser.Session) (browser.Element, bool, error) { return nil, false, nil }

	_, err := browser.Poll(ctx, nil, never, time.Minute, time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestConditions(t *testing.T) {
	f := browsertest.New()
	f.Page("https://shop.test/item", browsertest.DetailPage(browsertest.Detail{
		Title:       "Hidden Panel",
		HiddenTitle: true,
		Attributes:  [][2]string{{"Color", "Red"}},
	}))
	if err := f.Navigate("https://shop.test/item"); err != nil {
		t.Fatalf("navigate: %v", err)
	}

	tests := []struct {
		name string
		cond browser.Condition
		want bool
	}{
		{"present", browser.ElementPresent("div[data-module-name='module_attribute']"), true},
		{"absent", browser.ElementPresent(".missing"), false},
		{"hidden title not visible", browser.ElementVisible("div.module_title .product-title-container h1"), false},
		{"visible attribute", browser.ElementVisible(".attribute-item .left"), true},
		{"one window", browser.WindowCount(1), true},
		{"two windows", browser.WindowCount(2), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := tt.cond(f)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.want {
				t.Errorf("condition = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestFake_ClickOpensWindowAndStalesHandles(t *testing.T) {
	const search = "https://shop.test/search"
	f := browsertest.New()
	f.Page(search, browsertest.SearchPage(browsertest.Entries("https://shop.test", 2, true)...))
	if err := f.Navigate(search); err != nil {
		t.Fatalf("navigate: %v", err)
	}

	entries, err := f.FindAll(".search-card-e-title span")
	if err != nil || len(entries) != 2 {
		t.Fatalf("entries = %d, err = %v", len(entries), err)
	}
	if err := f.ScriptClick(entries[1]); err != nil {
		t.Fatalf("click: %v", err)
	}

	windows, _ := f.Windows()
	if len(windows) != 2 {
		t.Fatalf("windows = %d, want 2", len(windows))
	}
	if f.CurrentWindow() != windows[0] {
		t.Errorf("click must not switch windows by itself")
	}

	// Re-entering the search window re-renders it, so the old handles go stale.
	if err := f.SwitchToWindow(windows[0]); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if _, err := entries[0].Text(); !errors.Is(err, browser.ErrStaleElement) {
		t.Errorf("expected stale handle after re-render, got %v", err)
	}
}

// Package browser is the narrow browser capability the harvester drives:
// windows, navigation, element lookup, bounded waits and script clicks.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is returned by WaitUntil when the condition did not hold in time.
	ErrTimeout = errors.New("browser: wait timed out")

	// ErrNotFound is returned by Element.Find when no child matches.
	ErrNotFound = errors.New("browser: element not found")

	// ErrNoWindow is returned when there is no current window, e.g. right
	// after CloseCurrentWindow and before SwitchToWindow.
	ErrNoWindow = errors.New("browser: no current window")

	// ErrStaleElement is returned when an element handle outlived the
	// document it was found in.
	ErrStaleElement = errors.New("browser: stale element reference")
)

// WindowHandle identifies one browser window or tab.
type WindowHandle string

// Session is a single-owner handle to browser state. It is not safe for
// concurrent use; one run drives it at a time.
type Session interface {
	// Navigate loads url in the current window.
	Navigate(url string) error

	// Windows returns the open windows in the order they were opened.
	// The first handle is the window the session started with.
	Windows() ([]WindowHandle, error)

	// SwitchToWindow makes h the current window.
	SwitchToWindow(h WindowHandle) error

	// CloseCurrentWindow closes the current window. Callers must switch to
	// another window before issuing further page operations.
	CloseCurrentWindow() error

	// CurrentURL returns the address of the current window.
	CurrentURL() (string, error)

	// FindAll returns every element matching selector in the current
	// window without waiting.
	FindAll(selector string) ([]Element, error)

	// WaitUntil re-evaluates cond until it holds or timeout elapses, in
	// which case the error wraps ErrTimeout.
	WaitUntil(cond Condition, timeout time.Duration) (Element, error)

	// ScriptClick dispatches a DOM click event on el, bypassing pointer
	// hit-testing.
	ScriptClick(el Element) error
}

// Element is a handle to a node in the current document.
type Element interface {
	Text() (string, error)
	Visible() (bool, error)

	// Find returns the first descendant matching selector, or ErrNotFound.
	Find(selector string) (Element, error)

	// FindAll returns every descendant matching selector.
	FindAll(selector string) ([]Element, error)
}

// Condition is a predicate over the session. It returns the element the
// wait produced (nil for conditions that are not about an element) and
// whether the condition holds.
type Condition func(s Session) (Element, bool, error)

// ElementPresent holds once at least one element matches selector.
func ElementPresent(selector string) Condition {
	return func(s Session) (Element, bool, error) {
		els, err := s.FindAll(selector)
		if err != nil {
			return nil, false, err
		}
		if len(els) == 0 {
			return nil, false, nil
		}
		return els[0], true, nil
	}
}

// ElementVisible holds once the first element matching selector is visible.
func ElementVisible(selector string) Condition {
	return func(s Session) (Element, bool, error) {
		els, err := s.FindAll(selector)
		if err != nil || len(els) == 0 {
			return nil, false, err
		}
		visible, err := els[0].Visible()
		if err != nil || !visible {
			return nil, false, err
		}
		return els[0], true, nil
	}
}

// WindowCount holds once exactly n windows are open.
func WindowCount(n int) Condition {
	return func(s Session) (Element, bool, error) {
		windows, err := s.Windows()
		if err != nil {
			return nil, false, err
		}
		return nil, len(windows) == n, nil
	}
}

// Poll evaluates cond every interval until it holds, timeout elapses, or
// ctx is done. Errors returned by cond are treated as "not yet" (the page
// may be mid-navigation) and reported alongside ErrTimeout if the wait
// runs out.
func Poll(ctx context.Context, s Session, cond Condition, timeout, interval time.Duration) (Element, error) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)

	var lastErr error
	for {
		el, ok, err := cond(s)
		if ok {
			return el, nil
		}
		if err != nil {
			lastErr = err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if lastErr != nil {
				return nil, fmt.Errorf("%w after %s: %v", ErrTimeout, timeout, lastErr)
			}
			return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}

		wait := interval
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

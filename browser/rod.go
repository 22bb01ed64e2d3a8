package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/harvest/models"
)

// RodOptions configures a RodSession.
type RodOptions struct {
	// PollInterval is how often WaitUntil re-evaluates its condition.
	PollInterval time.Duration

	// BlockedResourceTypes are failed on the search window ("Image", "Font", ...).
	BlockedResourceTypes []string

	// ExtraHeaders are sent with every request from the search window.
	ExtraHeaders map[string]string
}

// RodSession implements Session on top of a go-rod browser. It owns one
// root page plus every page opened from it, directly or transitively.
type RodSession struct {
	ctx     context.Context
	browser *rod.Browser
	opts    RodOptions

	// order lists owned targets in the order they were first seen;
	// order[0] is the root page.
	order   []proto.TargetTargetID
	current *rod.Page
	router  *rod.HijackRouter
}

var _ Session = (*RodSession)(nil)

// NewRodSession opens a fresh root page on b. Every driver call made
// through the session is bound to ctx.
func NewRodSession(ctx context.Context, b *rod.Browser, opts RodOptions) (*RodSession, error) {
	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, models.NewHarvestError(
			models.ErrCodeBrowserCrash,
			"failed to open search window",
			err,
		)
	}

	if len(opts.ExtraHeaders) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(opts.ExtraHeaders),
		}).Call(page); err != nil {
			slog.Warn("failed to set extra headers, proceeding without them",
				"error", err,
			)
		}
	}

	s := &RodSession{
		ctx:     ctx,
		browser: b,
		opts:    opts,
		order:   []proto.TargetTargetID{page.TargetID},
		current: page.Context(ctx),
	}
	s.router = setupHijack(page, opts.BlockedResourceTypes)
	return s, nil
}

// Close stops request interception and closes every window the session owns.
func (s *RodSession) Close() {
	if s.router != nil {
		_ = s.router.Stop()
	}
	windows, err := s.Windows()
	if err != nil {
		slog.Warn("session close: failed to list windows", "error", err)
		return
	}
	for _, h := range windows {
		page, err := s.browser.PageFromTarget(proto.TargetTargetID(h))
		if err != nil {
			continue
		}
		if err := page.Close(); err != nil {
			slog.Debug("session close: failed to close window", "window", h, "error", err)
		}
	}
	s.current = nil
}

func (s *RodSession) Navigate(url string) error {
	if s.current == nil {
		return ErrNoWindow
	}
	if err := s.current.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := s.current.WaitLoad(); err != nil {
		return fmt.Errorf("wait for %s to load: %w", url, err)
	}
	return nil
}

// Windows lists the page targets this session owns. A page is owned if it
// is the root or its opener is owned, so tabs opened by clicks are picked
// up while pages belonging to anything else in the browser are not.
func (s *RodSession) Windows() ([]WindowHandle, error) {
	res, err := proto.TargetGetTargets{}.Call(s.browser.Context(s.ctx))
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}

	owned := make(map[proto.TargetTargetID]bool, len(s.order))
	for _, id := range s.order {
		owned[id] = true
	}
	alive := make(map[proto.TargetTargetID]bool, len(res.TargetInfos))
	for _, info := range res.TargetInfos {
		if info.Type == proto.TargetTargetInfoTypePage {
			alive[info.TargetID] = true
		}
	}

	for adopted := true; adopted; {
		adopted = false
		for _, info := range res.TargetInfos {
			if !alive[info.TargetID] || owned[info.TargetID] {
				continue
			}
			if info.OpenerID != "" && owned[info.OpenerID] {
				owned[info.TargetID] = true
				s.order = append(s.order, info.TargetID)
				adopted = true
			}
		}
	}

	kept := make([]proto.TargetTargetID, 0, len(s.order))
	handles := make([]WindowHandle, 0, len(s.order))
	for _, id := range s.order {
		if alive[id] {
			kept = append(kept, id)
			handles = append(handles, WindowHandle(id))
		}
	}
	s.order = kept
	return handles, nil
}

func (s *RodSession) SwitchToWindow(h WindowHandle) error {
	page, err := s.browser.PageFromTarget(proto.TargetTargetID(h))
	if err != nil {
		return fmt.Errorf("switch to window %s: %w", h, err)
	}
	if _, err := page.Activate(); err != nil {
		return fmt.Errorf("activate window %s: %w", h, err)
	}
	s.current = page.Context(s.ctx)
	return nil
}

func (s *RodSession) CloseCurrentWindow() error {
	if s.current == nil {
		return ErrNoWindow
	}
	if err := s.current.Close(); err != nil {
		return fmt.Errorf("close window: %w", err)
	}
	s.current = nil
	return nil
}

func (s *RodSession) CurrentURL() (string, error) {
	if s.current == nil {
		return "", ErrNoWindow
	}
	info, err := s.current.Info()
	if err != nil {
		return "", fmt.Errorf("read current url: %w", err)
	}
	return info.URL, nil
}

func (s *RodSession) FindAll(selector string) ([]Element, error) {
	if s.current == nil {
		return nil, ErrNoWindow
	}
	els, err := s.current.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return wrapElements(els), nil
}

func (s *RodSession) WaitUntil(cond Condition, timeout time.Duration) (Element, error) {
	return Poll(s.ctx, s, cond, timeout, s.opts.PollInterval)
}

func (s *RodSession) ScriptClick(el Element) error {
	re, ok := el.(*rodElement)
	if !ok {
		return fmt.Errorf("script click: element %T does not belong to a rod session", el)
	}
	if _, err := re.el.Eval(`() => this.click()`); err != nil {
		return fmt.Errorf("script click: %w", err)
	}
	return nil
}

// rodElement adapts *rod.Element to Element.
type rodElement struct {
	el *rod.Element
}

func wrapElements(els rod.Elements) []Element {
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el}
	}
	return out
}

func (e *rodElement) Text() (string, error) {
	return e.el.Text()
}

func (e *rodElement) Visible() (bool, error) {
	return e.el.Visible()
}

func (e *rodElement) Find(selector string) (Element, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, selector)
	}
	return &rodElement{el: els[0]}, nil
}

func (e *rodElement) FindAll(selector string) ([]Element, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return wrapElements(els), nil
}

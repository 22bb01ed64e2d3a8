// Package browsertest provides an in-memory browser.Session that renders
// HTML fixtures, for exercising navigation and extraction without Chrome.
package browsertest

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/harvest/browser"
	"golang.org/x/net/html"
)

const blankPage = "<html><head></head><body></body></html>"

// Renderer produces the HTML for a URL on its visit-th render (1-based).
// A page is rendered on every navigation to it and every time its window
// becomes current again, which invalidates earlier element handles.
type Renderer func(visit int) string

// Fake is a scripted browser.Session. Clicking an element carrying
// data-href either navigates the current window or, when the element (or
// an ancestor) has data-new-window, opens a new window.
//
// WaitUntil evaluates its condition exactly once and fails with
// browser.ErrTimeout immediately, so tests never sleep.
type Fake struct {
	// FailHook, when set, is called before every session operation with the
	// operation name ("navigate", "windows", "switch", "close", "url",
	// "find", "wait", "click") and the current window's URL. A non-nil
	// return value is returned from the operation.
	FailHook func(op, url string) error

	// Navigations records every URL passed to Navigate.
	Navigations []string

	// Clicks records the data-href of every clicked element.
	Clicks []string

	routes  map[string]Renderer
	visits  map[string]int
	windows []*window
	current *window
	nextID  int
}

type window struct {
	id     browser.WindowHandle
	url    string
	doc    *goquery.Document
	gen    int
	closed bool
}

var _ browser.Session = (*Fake)(nil)

// New returns a Fake with one blank window.
func New() *Fake {
	f := &Fake{
		routes: make(map[string]Renderer),
		visits: make(map[string]int),
	}
	w := f.openWindow()
	f.current = w
	_ = f.render(w, "about:blank")
	return f
}

// Route registers a renderer for url.
func (f *Fake) Route(url string, r Renderer) {
	f.routes[url] = r
}

// Page registers static HTML for url.
func (f *Fake) Page(url, src string) {
	f.Route(url, func(int) string { return src })
}

// Visits returns how many times url has been rendered.
func (f *Fake) Visits(url string) int {
	return f.visits[url]
}

// OpenWindows returns the open windows without going through FailHook.
func (f *Fake) OpenWindows() []browser.WindowHandle {
	handles := make([]browser.WindowHandle, 0, len(f.windows))
	for _, w := range f.windows {
		handles = append(handles, w.id)
	}
	return handles
}

// CurrentWindow returns the current window handle, or "" if none.
func (f *Fake) CurrentWindow() browser.WindowHandle {
	if f.current == nil {
		return ""
	}
	return f.current.id
}

// CurrentPage returns the current window's URL, or "" if none.
func (f *Fake) CurrentPage() string {
	if f.current == nil {
		return ""
	}
	return f.current.url
}

func (f *Fake) Navigate(url string) error {
	if err := f.hook("navigate"); err != nil {
		return err
	}
	if f.current == nil {
		return browser.ErrNoWindow
	}
	f.Navigations = append(f.Navigations, url)
	return f.render(f.current, url)
}

func (f *Fake) Windows() ([]browser.WindowHandle, error) {
	if err := f.hook("windows"); err != nil {
		return nil, err
	}
	return f.OpenWindows(), nil
}

func (f *Fake) SwitchToWindow(h browser.WindowHandle) error {
	if err := f.hook("switch"); err != nil {
		return err
	}
	for _, w := range f.windows {
		if w.id == h {
			f.current = w
			return f.render(w, w.url)
		}
	}
	return fmt.Errorf("%w: %s", browser.ErrNoWindow, h)
}

func (f *Fake) CloseCurrentWindow() error {
	if err := f.hook("close"); err != nil {
		return err
	}
	if f.current == nil {
		return browser.ErrNoWindow
	}
	closing := f.current
	closing.closed = true
	kept := f.windows[:0]
	for _, w := range f.windows {
		if w != closing {
			kept = append(kept, w)
		}
	}
	f.windows = kept
	f.current = nil
	return nil
}

func (f *Fake) CurrentURL() (string, error) {
	if err := f.hook("url"); err != nil {
		return "", err
	}
	if f.current == nil {
		return "", browser.ErrNoWindow
	}
	return f.current.url, nil
}

func (f *Fake) FindAll(selector string) ([]browser.Element, error) {
	if err := f.hook("find"); err != nil {
		return nil, err
	}
	if f.current == nil {
		return nil, browser.ErrNoWindow
	}
	return wrap(f.current, f.current.doc.Find(selector)), nil
}

func (f *Fake) WaitUntil(cond browser.Condition, timeout time.Duration) (browser.Element, error) {
	if err := f.hook("wait"); err != nil {
		return nil, err
	}
	el, ok, err := cond(f)
	if ok {
		return el, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w after %s: %v", browser.ErrTimeout, timeout, err)
	}
	return nil, fmt.Errorf("%w after %s", browser.ErrTimeout, timeout)
}

func (f *Fake) ScriptClick(el browser.Element) error {
	if err := f.hook("click"); err != nil {
		return err
	}
	fe, ok := el.(*element)
	if !ok {
		return fmt.Errorf("script click: foreign element %T", el)
	}
	if err := fe.check(); err != nil {
		return err
	}
	if fe.win != f.current {
		return fmt.Errorf("%w: element is not in the current window", browser.ErrStaleElement)
	}

	target := fe.sel.Closest("[data-href]")
	href, ok := target.Attr("data-href")
	if !ok {
		return nil
	}
	f.Clicks = append(f.Clicks, href)

	if fe.sel.Closest("[data-new-window]").Length() > 0 {
		w := f.openWindow()
		return f.render(w, href)
	}
	return f.render(f.current, href)
}

func (f *Fake) hook(op string) error {
	if f.FailHook == nil {
		return nil
	}
	return f.FailHook(op, f.CurrentPage())
}

func (f *Fake) openWindow() *window {
	f.nextID++
	w := &window{id: browser.WindowHandle(fmt.Sprintf("window-%d", f.nextID))}
	f.windows = append(f.windows, w)
	return w
}

func (f *Fake) render(w *window, url string) error {
	src := blankPage
	if r, ok := f.routes[url]; ok {
		f.visits[url]++
		src = r(f.visits[url])
	}
	node, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("render %s: %w", url, err)
	}
	w.url = url
	w.doc = goquery.NewDocumentFromNode(node)
	w.gen++
	return nil
}

// element is a handle into one render of one window.
type element struct {
	win *window
	gen int
	sel *goquery.Selection
}

func wrap(w *window, sel *goquery.Selection) []browser.Element {
	out := make([]browser.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &element{win: w, gen: w.gen, sel: s})
	})
	return out
}

func (e *element) check() error {
	if e.win.closed || e.gen != e.win.gen {
		return browser.ErrStaleElement
	}
	return nil
}

func (e *element) Text() (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	return e.sel.Text(), nil
}

func (e *element) Visible() (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}
	hidden := e.sel.Closest("[hidden], [style*='display:none'], [style*='display: none']")
	return hidden.Length() == 0, nil
}

func (e *element) Find(selector string) (browser.Element, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	found := e.sel.Find(selector)
	if found.Length() == 0 {
		return nil, fmt.Errorf("%w: %q", browser.ErrNotFound, selector)
	}
	return &element{win: e.win, gen: e.gen, sel: found.First()}, nil
}

func (e *element) FindAll(selector string) ([]browser.Element, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	return wrap(e.win, e.sel.Find(selector)), nil
}

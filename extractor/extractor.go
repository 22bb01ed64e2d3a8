// Package extractor reads a ProductRecord out of whatever detail page the
// session currently shows. Every field is guarded on its own: a missing
// title or attribute table degrades the record, it never aborts it.
package extractor

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/models"
)

var errEmptyLabel = errors.New("attribute label is empty")

// Extractor builds ProductRecords from detail pages.
type Extractor struct {
	sel          config.Selectors
	titleTimeout time.Duration
	attrTimeout  time.Duration
	now          func() time.Time
}

// Option customises an Extractor.
type Option func(*Extractor)

// WithClock overrides the capture-time source.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// New creates an Extractor from the harvest configuration.
func New(cfg config.HarvestConfig, opts ...Option) *Extractor {
	e := &Extractor{
		sel:          cfg.Selectors,
		titleTimeout: cfg.TitleTimeout,
		attrTimeout:  cfg.AttributesTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads title, URL and attributes from the current window. It does
// not return an error: unreadable fields become the sentinel or are left out.
func (e *Extractor) Extract(s browser.Session) models.ProductRecord {
	title := models.Sentinel
	guard("title", func() { title = e.title(s) })

	// The URL is read whether or not the title step succeeded.
	var pageURL string
	guard("url", func() {
		u, err := s.CurrentURL()
		if err != nil {
			slog.Warn("could not read detail page url", "error", err)
			return
		}
		pageURL = u
	})

	attrs := map[string]string{}
	guard("attributes", func() { attrs = e.attributes(s) })

	return models.NewProductRecord(title, pageURL, attrs, e.now())
}

func (e *Extractor) title(s browser.Session) string {
	el, err := s.WaitUntil(browser.ElementVisible(e.sel.Title), e.titleTimeout)
	if err != nil {
		slog.Info("could not extract product title", "error", err)
		return models.Sentinel
	}
	text, err := el.Text()
	if err != nil {
		slog.Info("could not read product title", "error", err)
		return models.Sentinel
	}
	if text = strings.TrimSpace(text); text == "" {
		return models.Sentinel
	}
	return text
}

func (e *Extractor) attributes(s browser.Session) map[string]string {
	attrs := map[string]string{}

	container, err := s.WaitUntil(browser.ElementPresent(e.sel.Attributes), e.attrTimeout)
	if err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			slog.Debug("no attribute module found")
		} else {
			slog.Warn("attribute module lookup failed", "error", err)
		}
		return attrs
	}

	items, err := container.FindAll(e.sel.AttributeItem)
	if err != nil {
		slog.Warn("could not list attribute items", "error", err)
		return attrs
	}

	for i, item := range items {
		key, value, err := e.attribute(item)
		if err != nil {
			slog.Debug("skipping attribute item", "item", i, "error", err)
			continue
		}
		attrs[key] = value
	}
	return attrs
}

func (e *Extractor) attribute(item browser.Element) (string, string, error) {
	key, err := textOf(item, e.sel.AttributeKey)
	if err != nil {
		return "", "", fmt.Errorf("label: %w", err)
	}
	if key == "" {
		return "", "", errEmptyLabel
	}
	value, err := textOf(item, e.sel.AttributeValue)
	if err != nil {
		return "", "", fmt.Errorf("value for %q: %w", key, err)
	}
	return key, value, nil
}

func textOf(el browser.Element, selector string) (string, error) {
	child, err := el.Find(selector)
	if err != nil {
		return "", err
	}
	text, err := child.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// guard runs one extraction step and contains a driver panic to that step.
func guard(step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("extraction step panicked", "step", step, "panic", r)
		}
	}()
	fn()
}

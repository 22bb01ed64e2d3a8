package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Sentinel is the placeholder stored for any field that could not be extracted.
const Sentinel = "N/A"

// TimeLayout is the fixed textual format of ProductRecord.ScrapedAt.
const TimeLayout = "2006-01-02 15:04:05"

// Column names shared by the tabular and structured outputs.
const (
	FieldTitle      = "Product Title"
	FieldURL        = "Product URL"
	FieldAttributes = "Key Attributes"
	FieldScrapedAt  = "Date Scraped"
)

// ProductRecord is the structured result of processing one listing entry.
// It is built once by NewProductRecord and never mutated afterwards.
type ProductRecord struct {
	// Title is the product title, or Sentinel when it could not be read.
	Title string

	// URL is the address of the detail page at extraction time.
	URL string

	// Attributes holds label/value pairs from the optional attribute table.
	// Never nil; empty when the page has no table.
	Attributes map[string]string

	// ScrapedAt is the capture time.
	ScrapedAt time.Time
}

// NewProductRecord builds a record. A nil attrs map is replaced by an empty one.
func NewProductRecord(title, url string, attrs map[string]string, scrapedAt time.Time) ProductRecord {
	if title == "" {
		title = Sentinel
	}
	if attrs == nil {
		attrs = map[string]string{}
	}
	return ProductRecord{
		Title:      title,
		URL:        url,
		Attributes: attrs,
		ScrapedAt:  scrapedAt.Truncate(time.Second),
	}
}

// Partial reports whether the title could not be extracted.
func (r ProductRecord) Partial() bool {
	return r.Title == Sentinel
}

// ScrapedAtText returns ScrapedAt in TimeLayout.
func (r ProductRecord) ScrapedAtText() string {
	return r.ScrapedAt.Format(TimeLayout)
}

// recordJSON is the wire shape of a ProductRecord.
type recordJSON struct {
	Title      string            `json:"Product Title"`
	URL        string            `json:"Product URL"`
	Attributes map[string]string `json:"Key Attributes"`
	ScrapedAt  string            `json:"Date Scraped"`
}

func (r ProductRecord) MarshalJSON() ([]byte, error) {
	attrs := r.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(recordJSON{
		Title:      r.Title,
		URL:        r.URL,
		Attributes: attrs,
		ScrapedAt:  r.ScrapedAtText(),
	})
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (r *ProductRecord) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := time.ParseInLocation(TimeLayout, raw.ScrapedAt, time.Local)
	if err != nil {
		return fmt.Errorf("parse %q: %w", FieldScrapedAt, err)
	}
	*r = NewProductRecord(raw.Title, raw.URL, raw.Attributes, ts)
	return nil
}

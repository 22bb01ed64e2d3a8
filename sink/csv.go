package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/use-agent/harvest/models"
)

// Columns returns the CSV header for records: the three fixed columns
// followed by the sorted union of every attribute key.
func Columns(records []models.ProductRecord) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for k := range r.Attributes {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return append([]string{models.FieldTitle, models.FieldURL, models.FieldScrapedAt}, keys...)
}

// WriteCSV writes one row per record. Attributes a record lacks are filled
// with the sentinel.
func WriteCSV(w io.Writer, records []models.ProductRecord) error {
	header := Columns(records)
	attrKeys := header[3:]

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := make([]string, 0, len(header))
		row = append(row, r.Title, r.URL, r.ScrapedAtText())
		for _, k := range attrKeys {
			v, ok := r.Attributes[k]
			if !ok {
				v = models.Sentinel
			}
			row = append(row, v)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

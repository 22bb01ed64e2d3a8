package sink

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/use-agent/harvest/models"
)

// WriteJSON writes records as one indented JSON array. Attribute maps are
// kept as they are, without backfill.
func WriteJSON(w io.Writer, records []models.ProductRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode json records: %w", err)
	}
	return nil
}

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/use-agent/harvest/models"
)

// formatStatus renders a job for a tool result.
func formatStatus(st *models.HarvestStatusResponse) string {
	var sb strings.Builder
	p := st.Progress
	fmt.Fprintf(&sb, "Harvest %s: %s\n", st.ID, st.Status)
	fmt.Fprintf(&sb, "Search: %s\n", st.SearchURL)
	fmt.Fprintf(&sb, "Entries: %d listed, %d attempted, %d recorded (%d without title), %d failed\n",
		p.Advisory, p.Attempted, p.Recorded, p.Partial, p.Failed)
	if p.Exhausted {
		sb.WriteString("Listing ran out before the counted entries were reached.\n")
	}
	if st.Error != nil {
		fmt.Fprintf(&sb, "Error: [%s] %s\n", st.Error.Code, st.Error.Message)
	}
	for _, o := range st.Outputs {
		switch {
		case o.Error != "":
			fmt.Fprintf(&sb, "Output %s: failed: %s\n", o.Format, o.Error)
		case o.Skipped:
			fmt.Fprintf(&sb, "Output %s: nothing to save\n", o.Format)
		default:
			fmt.Fprintf(&sb, "Output %s: %s (%d records)\n", o.Format, o.Path, o.Written)
		}
	}

	for i, r := range st.Records {
		fmt.Fprintf(&sb, "\n--- [%d] %s ---\n%s\nScraped: %s\n", i+1, r.Title, r.URL, r.ScrapedAtText())
		keys := make([]string, 0, len(r.Attributes))
		for k := range r.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s\n", k, r.Attributes[k])
		}
	}
	return sb.String()
}

package browsertest

import (
	"fmt"
	"html"
	"strings"
)

// Entry is one product card on a search page fixture.
type Entry struct {
	Href      string
	Label     string
	NewWindow bool
}

// Detail describes a product page fixture.
type Detail struct {
	// Title is the product title; empty means the title element is missing.
	Title string

	// HiddenTitle renders the title element but hides it.
	HiddenTitle bool

	// Attributes are label/value rows; nil means no attribute table at all.
	Attributes [][2]string

	// Malformed adds this many rows that have a label but no value.
	Malformed int
}

// SearchPage renders a listing using the default selectors. With no
// entries the listing container is absent.
func SearchPage(entries ...Entry) string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"results\">")
	for _, e := range entries {
		newWindow := ""
		if e.NewWindow {
			newWindow = " data-new-window"
		}
		fmt.Fprintf(&b,
			`<div class="search-card-e-title"><a><span data-href="%s"%s>%s</span></a></div>`,
			html.EscapeString(e.Href), newWindow, html.EscapeString(e.Label),
		)
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

// Entries builds n entries pointing at base+"/p/<i>".
func Entries(base string, n int, newWindow bool) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = Entry{
			Href:      fmt.Sprintf("%s/p/%d", base, i),
			Label:     fmt.Sprintf("Product %d", i),
			NewWindow: newWindow,
		}
	}
	return entries
}

// DetailPage renders a product page using the default selectors.
func DetailPage(d Detail) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	if d.Title != "" {
		hidden := ""
		if d.HiddenTitle {
			hidden = ` style="display:none"`
		}
		fmt.Fprintf(&b,
			`<div class="module_title"%s><div class="product-title-container"><h1> %s </h1></div></div>`,
			hidden, html.EscapeString(d.Title),
		)
	}
	if d.Attributes != nil || d.Malformed > 0 {
		b.WriteString(`<div data-module-name="module_attribute">`)
		for _, kv := range d.Attributes {
			fmt.Fprintf(&b,
				`<div class="attribute-item"><div class="left">%s</div><div class="right"><span>%s</span></div></div>`,
				html.EscapeString(kv[0]), html.EscapeString(kv[1]),
			)
		}
		for i := 0; i < d.Malformed; i++ {
			fmt.Fprintf(&b, `<div class="attribute-item"><div class="left">Broken %d</div></div>`, i)
		}
		b.WriteString("</div>")
	}
	b.WriteString("</body></html>")
	return b.String()
}

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if diff := cmp.Diff(DefaultSelectors(), cfg.Harvest.Selectors); diff != "" {
		t.Errorf("default selectors mismatch (-want +got):\n%s", diff)
	}
	if cfg.Harvest.ListingTimeout != 20*time.Second {
		t.Errorf("listing timeout = %s, want 20s", cfg.Harvest.ListingTimeout)
	}
	if cfg.Harvest.AttributesTimeout >= cfg.Harvest.TitleTimeout {
		t.Errorf("attribute probe (%s) should be shorter than title wait (%s)",
			cfg.Harvest.AttributesTimeout, cfg.Harvest.TitleTimeout)
	}
	if cfg.Output.CSVFile != "products.csv" || cfg.Output.JSONFile != "products.json" {
		t.Errorf("unexpected output files: %+v", cfg.Output)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HARVEST_SEARCH_URL", "https://shop.example/search?q=panels")
	t.Setenv("HARVEST_TITLE_TIMEOUT", "3s")
	t.Setenv("HARVEST_SEL_TITLE", "h1.name")
	t.Setenv("HARVEST_BLOCKED_RESOURCES", "Image, Stylesheet ,")
	t.Setenv("HARVEST_EXTRA_HEADERS", "Accept-Language: de-DE, X-Trace:abc,broken")
	t.Setenv("HARVEST_MAX_ENTRIES", "not-a-number")

	cfg := Load()

	if cfg.Harvest.SearchURL != "https://shop.example/search?q=panels" {
		t.Errorf("search url = %q", cfg.Harvest.SearchURL)
	}
	if cfg.Harvest.TitleTimeout != 3*time.Second {
		t.Errorf("title timeout = %s, want 3s", cfg.Harvest.TitleTimeout)
	}
	if cfg.Harvest.Selectors.Title != "h1.name" {
		t.Errorf("title selector = %q", cfg.Harvest.Selectors.Title)
	}
	if diff := cmp.Diff([]string{"Image", "Stylesheet"}, cfg.Browser.BlockedResourceTypes); diff != "" {
		t.Errorf("blocked resources (-want +got):\n%s", diff)
	}
	wantHeaders := map[string]string{"Accept-Language": "de-DE", "X-Trace": "abc"}
	if diff := cmp.Diff(wantHeaders, cfg.Browser.ExtraHeaders); diff != "" {
		t.Errorf("extra headers (-want +got):\n%s", diff)
	}
	if cfg.Harvest.MaxEntries != 0 {
		t.Errorf("unparsable max entries should fall back to 0, got %d", cfg.Harvest.MaxEntries)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad selector", func(c *Config) { c.Harvest.Selectors.AttributeKey = "div[" }, "attribute key"},
		{"empty selector", func(c *Config) { c.Harvest.Selectors.ListingEntry = " " }, "listing entry is empty"},
		{"zero timeout", func(c *Config) { c.Harvest.NewWindowTimeout = 0 }, "new window timeout"},
		{"relative url", func(c *Config) { c.Harvest.SearchURL = "/search?q=x" }, "absolute"},
		{"negative limit", func(c *Config) { c.Harvest.MaxEntries = -1 }, "max entries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

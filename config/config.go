package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Harvest   HarvestConfig
	Output    OutputConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// DefaultProxy is the proxy URL for all browser traffic.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// BlockedResourceTypes lists resource types to block on the search window.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// ExtraHeaders are sent with every request from the search window.
	// Format: "Key:Value,Key2:Value2".
	ExtraHeaders map[string]string
}

// Selectors locates the parts of the search and detail pages.
type Selectors struct {
	// ListingReady marks the listing as rendered.
	ListingReady string // default: ".search-card-e-title"

	// ListingEntry matches one clickable entry per product.
	ListingEntry string // default: ".search-card-e-title span"

	// Title is the product title on the detail page.
	Title string // default: "div.module_title .product-title-container h1"

	// Attributes is the optional attribute table container.
	Attributes string // default: "div[data-module-name='module_attribute']"

	// AttributeItem matches one row inside Attributes.
	AttributeItem string // default: ".attribute-item"

	// AttributeKey and AttributeValue are read inside each AttributeItem.
	AttributeKey   string // default: ".left"
	AttributeValue string // default: ".right span"
}

// HarvestConfig controls the navigation and extraction loop.
type HarvestConfig struct {
	// SearchURL is the default search page when the caller supplies none.
	SearchURL string

	Selectors Selectors

	// ListingTimeout bounds the wait for the listing on the search page,
	// both before the run and after each entry.
	ListingTimeout time.Duration // default: 20s

	// SnapshotTimeout bounds the re-acquisition of listing entries.
	SnapshotTimeout time.Duration // default: 15s

	// NewWindowTimeout bounds the wait for a second window after a click.
	NewWindowTimeout time.Duration // default: 15s

	// TitleTimeout bounds the wait for a visible title.
	TitleTimeout time.Duration // default: 20s

	// AttributesTimeout bounds the probe for the attribute table.
	AttributesTimeout time.Duration // default: 10s

	// SettleDelay is the pause after resetting to the search page.
	SettleDelay time.Duration // default: 5s

	// PollInterval is how often wait conditions are re-evaluated.
	PollInterval time.Duration // default: 250ms

	// MaxEntries caps the advisory entry count; 0 means no cap.
	MaxEntries int
}

// OutputConfig controls where results are written.
type OutputConfig struct {
	// Dir is the directory job outputs are written to.
	Dir string // default: "output"

	// CSVFile and JSONFile are the file names used by `harvest run`.
	CSVFile  string // default: "products.csv"
	JSONFile string // default: "products.json"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// JobsConfig controls the harvest job queue.
type JobsConfig struct {
	// QueueSize is the number of jobs that may wait behind the running one.
	QueueSize int // default: 16

	// MaxRetained is the number of finished jobs kept for status lookups.
	MaxRetained int // default: 256

	// Retention is how long a job stays queryable after creation.
	Retention time.Duration // default: 24h
}

// WebhookConfig controls job completion callbacks.
type WebhookConfig struct {
	// Secret signs webhook bodies with HMAC-SHA256 when non-empty.
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// DefaultSelectors returns the selectors for the marketplace the tool was
// first written against.
func DefaultSelectors() Selectors {
	return Selectors{
		ListingReady:   ".search-card-e-title",
		ListingEntry:   ".search-card-e-title span",
		Title:          "div.module_title .product-title-container h1",
		Attributes:     "div[data-module-name='module_attribute']",
		AttributeItem:  ".attribute-item",
		AttributeKey:   ".left",
		AttributeValue: ".right span",
	}
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	sel := DefaultSelectors()
	return &Config{
		Server: ServerConfig{
			Host: envOr("HARVEST_HOST", "0.0.0.0"),
			Port: envIntOr("HARVEST_PORT", 8080),
			Mode: envOr("HARVEST_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("HARVEST_HEADLESS", true),
			DefaultProxy: os.Getenv("HARVEST_PROXY"),
			NoSandbox:    envBoolOr("HARVEST_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("HARVEST_BROWSER_BIN"),
			BlockedResourceTypes: envSliceOr("HARVEST_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			ExtraHeaders: envMapOr("HARVEST_EXTRA_HEADERS", map[string]string{
				"Accept-Language": "en-US,en;q=0.9",
			}),
		},
		Harvest: HarvestConfig{
			SearchURL: os.Getenv("HARVEST_SEARCH_URL"),
			Selectors: Selectors{
				ListingReady:   envOr("HARVEST_SEL_LISTING_READY", sel.ListingReady),
				ListingEntry:   envOr("HARVEST_SEL_LISTING_ENTRY", sel.ListingEntry),
				Title:          envOr("HARVEST_SEL_TITLE", sel.Title),
				Attributes:     envOr("HARVEST_SEL_ATTRIBUTES", sel.Attributes),
				AttributeItem:  envOr("HARVEST_SEL_ATTRIBUTE_ITEM", sel.AttributeItem),
				AttributeKey:   envOr("HARVEST_SEL_ATTRIBUTE_KEY", sel.AttributeKey),
				AttributeValue: envOr("HARVEST_SEL_ATTRIBUTE_VALUE", sel.AttributeValue),
			},
			ListingTimeout:    envDurationOr("HARVEST_LISTING_TIMEOUT", 20*time.Second),
			SnapshotTimeout:   envDurationOr("HARVEST_SNAPSHOT_TIMEOUT", 15*time.Second),
			NewWindowTimeout:  envDurationOr("HARVEST_NEW_WINDOW_TIMEOUT", 15*time.Second),
			TitleTimeout:      envDurationOr("HARVEST_TITLE_TIMEOUT", 20*time.Second),
			AttributesTimeout: envDurationOr("HARVEST_ATTRIBUTES_TIMEOUT", 10*time.Second),
			SettleDelay:       envDurationOr("HARVEST_SETTLE_DELAY", 5*time.Second),
			PollInterval:      envDurationOr("HARVEST_POLL_INTERVAL", 250*time.Millisecond),
			MaxEntries:        envIntOr("HARVEST_MAX_ENTRIES", 0),
		},
		Output: OutputConfig{
			Dir:      envOr("HARVEST_OUTPUT_DIR", "output"),
			CSVFile:  envOr("HARVEST_CSV_FILE", "products.csv"),
			JSONFile: envOr("HARVEST_JSON_FILE", "products.json"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("HARVEST_AUTH_ENABLED", true),
			APIKeys: envSliceOr("HARVEST_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("HARVEST_RATE_RPS", 1.0),
			Burst:             envIntOr("HARVEST_RATE_BURST", 5),
		},
		Jobs: JobsConfig{
			QueueSize:   envIntOr("HARVEST_QUEUE_SIZE", 16),
			MaxRetained: envIntOr("HARVEST_MAX_RETAINED_JOBS", 256),
			Retention:   envDurationOr("HARVEST_JOB_RETENTION", 24*time.Hour),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("HARVEST_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("HARVEST_LOG_LEVEL", "info"),
			Format: envOr("HARVEST_LOG_FORMAT", "json"),
		},
	}
}

// Validate checks the harvest section: every selector must parse, every
// timeout must be positive, and the default search URL, if any, must be absolute.
func (c *Config) Validate() error {
	var errs []error

	for name, sel := range c.Harvest.Selectors.named() {
		if strings.TrimSpace(sel) == "" {
			errs = append(errs, fmt.Errorf("selector %s is empty", name))
			continue
		}
		if _, err := cascadia.Parse(sel); err != nil {
			errs = append(errs, fmt.Errorf("selector %s %q: %w", name, sel, err))
		}
	}

	timeouts := map[string]time.Duration{
		"listing":    c.Harvest.ListingTimeout,
		"snapshot":   c.Harvest.SnapshotTimeout,
		"new window": c.Harvest.NewWindowTimeout,
		"title":      c.Harvest.TitleTimeout,
		"attributes": c.Harvest.AttributesTimeout,
		"poll":       c.Harvest.PollInterval,
	}
	for name, d := range timeouts {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s timeout must be positive, got %s", name, d))
		}
	}
	if c.Harvest.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("settle delay must not be negative, got %s", c.Harvest.SettleDelay))
	}
	if c.Harvest.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("max entries must not be negative, got %d", c.Harvest.MaxEntries))
	}

	if c.Harvest.SearchURL != "" {
		if err := ValidateSearchURL(c.Harvest.SearchURL); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// ValidateSearchURL reports whether raw is an absolute http(s) URL.
func ValidateSearchURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("search url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("search url %q must be an absolute http(s) URL", raw)
	}
	return nil
}

func (s Selectors) named() map[string]string {
	return map[string]string{
		"listing ready":   s.ListingReady,
		"listing entry":   s.ListingEntry,
		"title":           s.Title,
		"attributes":      s.Attributes,
		"attribute item":  s.AttributeItem,
		"attribute key":   s.AttributeKey,
		"attribute value": s.AttributeValue,
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

// envMapOr parses "Key:Value,Key2:Value2". Pairs without a colon are ignored.
func envMapOr(key string, fallback map[string]string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	result := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		k, val, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		if k = strings.TrimSpace(k); k != "" {
			result[k] = strings.TrimSpace(val)
		}
	}
	return result
}

package models

// HarvestRequest is the payload for POST /api/v1/harvest.
type HarvestRequest struct {
	// SearchURL is the search-results page to harvest. Required.
	SearchURL string `json:"search_url" binding:"required,url"`

	// MaxEntries caps the advisory entry count for this run.
	// Default: 0 (no cap beyond the rendered listing).
	MaxEntries int `json:"max_entries,omitempty" binding:"omitempty,min=1,max=1000"`

	// WebhookURL, when set, receives a harvest.completed or harvest.failed
	// event once the job finishes.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

package models

import "time"

// Job states reported by the API.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCanceled  = "canceled"
)

// HarvestResponse is the immediate response for POST /api/v1/harvest.
type HarvestResponse struct {
	ID     string       `json:"id,omitempty"`
	Status string       `json:"status"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// JobProgress counts what a run has done so far.
type JobProgress struct {
	// Advisory is the entry count measured once when the listing appeared.
	Advisory int `json:"advisory"`

	// Attempted is the number of entries processed (recorded or failed).
	Attempted int `json:"attempted"`

	// Recorded is the number of records produced, partial ones included.
	Recorded int `json:"recorded"`

	// Partial is the number of records whose title is the sentinel.
	Partial int `json:"partial"`

	// Failed is the number of entries that produced no record.
	Failed int `json:"failed"`

	// Exhausted is true when the live listing ran out before the advisory count.
	Exhausted bool `json:"exhausted"`
}

// OutputOutcome reports the result of writing one output format.
type OutputOutcome struct {
	Format  string `json:"format"`
	Path    string `json:"path,omitempty"`
	Written int    `json:"written"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HarvestStatusResponse is the response for GET /api/v1/harvest/:id.
type HarvestStatusResponse struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	SearchURL  string          `json:"search_url"`
	Progress   JobProgress     `json:"progress"`
	Records    []ProductRecord `json:"records,omitempty"`
	Outputs    []OutputOutcome `json:"outputs,omitempty"`
	Error      *ErrorDetail    `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status     string `json:"status"` // "healthy" or "degraded"
	Uptime     string `json:"uptime"`
	QueueDepth int    `json:"queue_depth"`
	QueueSize  int    `json:"queue_size"`
	Version    string `json:"version"`
}

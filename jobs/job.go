package jobs

import (
	"sync"
	"time"

	"github.com/use-agent/harvest/models"
)

// Job is one queued or finished harvest. It is updated by the worker and
// read by API handlers, so all access goes through its mutex.
type Job struct {
	mu sync.Mutex

	id         string
	searchURL  string
	webhookURL string
	limit      int

	status     string
	progress   models.JobProgress
	records    []models.ProductRecord
	outputs    []models.OutputOutcome
	err        *models.ErrorDetail
	createdAt  time.Time
	finishedAt *time.Time
}

func newJob(id string, req models.HarvestRequest) *Job {
	return &Job{
		id:         id,
		searchURL:  req.SearchURL,
		webhookURL: req.WebhookURL,
		limit:      req.MaxEntries,
		status:     models.JobQueued,
		createdAt:  time.Now(),
	}
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Status returns the current job state.
func (j *Job) Status() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Done reports whether the job reached a terminal state.
func (j *Job) Done() bool {
	switch j.Status() {
	case models.JobCompleted, models.JobFailed, models.JobCanceled:
		return true
	}
	return false
}

// Snapshot returns a copy of the job suitable for serialisation.
func (j *Job) Snapshot(withRecords bool) models.HarvestStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()

	resp := models.HarvestStatusResponse{
		ID:         j.id,
		Status:     j.status,
		SearchURL:  j.searchURL,
		Progress:   j.progress,
		Outputs:    append([]models.OutputOutcome(nil), j.outputs...),
		Error:      j.err,
		CreatedAt:  j.createdAt,
		FinishedAt: j.finishedAt,
	}
	if withRecords {
		resp.Records = append([]models.ProductRecord(nil), j.records...)
	}
	return resp
}

func (j *Job) setRunning() {
	j.mu.Lock()
	j.status = models.JobRunning
	j.mu.Unlock()
}

func (j *Job) setProgress(p models.JobProgress) {
	j.mu.Lock()
	j.progress = p
	j.mu.Unlock()
}

func (j *Job) finish(status string, records []models.ProductRecord, outputs []models.OutputOutcome, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now()
	j.status = status
	j.records = records
	j.outputs = outputs
	j.err = models.DetailOf(err)
	j.finishedAt = &now
}

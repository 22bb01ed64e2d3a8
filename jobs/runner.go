// Package jobs queues harvest requests and runs them one at a time on a
// single browser.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/harvest"
	"github.com/use-agent/harvest/metrics"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/sink"
	"github.com/use-agent/harvest/webhook"
)

// SessionFactory opens a browser session for one job. The returned release
// func closes it.
type SessionFactory func(ctx context.Context) (browser.Session, func(), error)

// Notifier delivers a webhook event.
type Notifier func(url, secret string, event *webhook.Event)

// Options configures a Runner.
type Options struct {
	QueueSize     int
	OutputDir     string
	WebhookSecret string
	Metrics       *metrics.Metrics

	// Notify defaults to webhook.DeliverAsync.
	Notify Notifier
}

// Runner owns the job queue and the single worker draining it.
type Runner struct {
	orch       *harvest.Orchestrator
	newSession SessionFactory
	store      *Store
	opts       Options

	queue  chan *Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRunner creates a Runner. Call Start to begin processing.
func NewRunner(orch *harvest.Orchestrator, newSession SessionFactory, store *Store, opts Options) *Runner {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	if opts.Notify == nil {
		opts.Notify = webhook.DeliverAsync
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		orch:       orch,
		newSession: newSession,
		store:      store,
		opts:       opts,
		queue:      make(chan *Job, opts.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the worker.
func (r *Runner) Start() {
	r.once.Do(func() {
		r.wg.Add(1)
		go r.work()
	})
}

// Stop cancels the running job, if any, and waits for the worker to exit.
// Jobs still queued are left in the queued state.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
}

// Submit queues a harvest. It fails with QUEUE_FULL when the queue has no room.
func (r *Runner) Submit(req models.HarvestRequest) (*Job, error) {
	job := newJob(uuid.NewString(), req)
	select {
	case r.queue <- job:
	default:
		return nil, models.NewHarvestError(models.ErrCodeQueueFull,
			fmt.Sprintf("harvest queue is full (%d jobs waiting)", cap(r.queue)), nil)
	}
	r.store.Put(job)
	slog.Info("harvest job queued", "id", job.ID(), "url", req.SearchURL, "queue_depth", len(r.queue))
	return job, nil
}

// Get returns a job by ID.
func (r *Runner) Get(id string) (*Job, bool) {
	return r.store.Get(id)
}

// QueueDepth is the number of jobs waiting to run.
func (r *Runner) QueueDepth() int { return len(r.queue) }

// QueueSize is the queue capacity.
func (r *Runner) QueueSize() int { return cap(r.queue) }

func (r *Runner) work() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case job := <-r.queue:
			r.run(job)
		}
	}
}

func (r *Runner) run(job *Job) {
	start := time.Now()
	job.setRunning()
	slog.Info("harvest job started", "id", job.ID(), "url", job.searchURL)

	records, outputs, err := r.harvest(job)

	status := models.JobCompleted
	var herr *models.HarvestError
	switch {
	case err == nil:
	case errors.As(err, &herr) && herr.Code == models.ErrCodeCanceled:
		status = models.JobCanceled
	default:
		status = models.JobFailed
	}
	job.finish(status, records, outputs, err)

	slog.Info("harvest job finished",
		"id", job.ID(),
		"status", status,
		"records", len(records),
		"duration", time.Since(start).Round(time.Millisecond).String(),
	)
	r.notify(job)
}

func (r *Runner) harvest(job *Job) (records []models.ProductRecord, outputs []models.OutputOutcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("harvest job panicked", "id", job.ID(), "panic", p)
			err = models.NewHarvestError(models.ErrCodeBrowserCrash, "harvest aborted", fmt.Errorf("panic: %v", p))
		}
	}()

	session, release, err := r.newSession(r.ctx)
	if err != nil {
		return nil, nil, browser.Classify(err, models.ErrCodeBrowserCrash, "could not open browser session")
	}
	defer release()

	res, runErr := r.orch.Run(r.ctx, session, job.searchURL,
		harvest.WithLimit(job.limit),
		harvest.WithProgress(job.setProgress),
	)
	job.setProgress(res.Progress())

	// Partial results of a canceled run are still saved.
	out := sink.New(
		filepath.Join(r.opts.OutputDir, job.ID()+".csv"),
		filepath.Join(r.opts.OutputDir, job.ID()+".json"),
		r.opts.Metrics,
	)
	report := out.Save(res.Records)
	outputs = make([]models.OutputOutcome, 0, 2)
	for _, o := range report.Outcomes() {
		outputs = append(outputs, o.Model())
	}
	return res.Records, outputs, runErr
}

func (r *Runner) notify(job *Job) {
	if job.webhookURL == "" {
		return
	}
	snap := job.Snapshot(false)
	eventType := webhook.EventCompleted
	if snap.Status != models.JobCompleted {
		eventType = webhook.EventFailed
	}
	r.opts.Notify(job.webhookURL, r.opts.WebhookSecret, &webhook.Event{
		Type:      eventType,
		JobID:     job.ID(),
		Timestamp: time.Now().Unix(),
		Data:      snap,
	})
}

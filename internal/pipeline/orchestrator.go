// Package pipeline runs site decoration passes as background jobs so a
// server can trigger a rebuild and report on it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docdecor/internal/site"
)

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("pipeline stopped")

// Orchestrator queues rebuild jobs and runs them one at a time; a single
// pass already fans out over the processor's worker pool.
type Orchestrator struct {
	jobs  *JobStore
	queue chan *Job
	proc  *site.Processor
	log   *slog.Logger

	mu      sync.Mutex
	stopped bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start before submitting.
func NewOrchestrator(proc *site.Processor, queueSize int, jobTTL time.Duration, log *slog.Logger) *Orchestrator {
	if queueSize <= 0 {
		queueSize = 1
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{
		jobs:  NewJobStore(jobTTL),
		queue: make(chan *Job, queueSize),
		proc:  proc,
		log:   log,
	}
}

// Start launches the worker goroutine.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			select {
			case <-workerCtx.Done():
				return
			case job, ok := <-o.queue:
				if !ok {
					return
				}
				o.process(workerCtx, job)
			}
		}
	}()

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop cancels the running job and waits for the workers to exit. Jobs
// still queued are marked canceled.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()

	for job := range o.queue {
		job.SetStatus(StatusCanceled, "shutdown")
	}
}

// Submit queues a new rebuild job and returns it.
func (o *Orchestrator) Submit() (*Job, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("job id: %w", err)
	}
	job := NewJob(id.String())

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return nil, ErrStopped
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return job, nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return job, fmt.Errorf("job queue is full (%d)", cap(o.queue))
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

func (o *Orchestrator) process(ctx context.Context, job *Job) {
	log := o.log.With("job_id", job.ID)
	job.SetStatus(StatusRunning, "decorating")
	log.Info("rebuild started", "root", o.proc.Root())

	report, err := o.proc.Run(ctx, job)
	job.setReport(report)
	for _, fe := range report.Errors {
		job.AddError(fe.Path + ": " + fe.Error)
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		job.SetStatus(StatusCanceled, "canceled")
	case err != nil:
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "error")
	case report.Failed > 0 && report.Scanned == 0 && report.Copied == 0:
		job.SetStatus(StatusFailed, "all pages failed")
	case report.Failed > 0:
		job.SetStatus(StatusPartial, "done with errors")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("rebuild finished",
		"status", job.Snapshot().Status,
		"changed", report.Changed,
		"failed", report.Failed,
	)
}

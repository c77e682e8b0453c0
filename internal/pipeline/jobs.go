package pipeline

import (
	"sync"
	"time"

	"github.com/dgallion1/docdecor/internal/decorate"
	"github.com/dgallion1/docdecor/internal/site"
)

// JobStatus represents the state of a rebuild job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusPartial   JobStatus = "partial"
	StatusFailed    JobStatus = "failed"
	StatusCanceled  JobStatus = "canceled"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	switch s {
	case StatusCompleted, StatusPartial, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Job tracks one decoration pass over the site. It doubles as the
// progress.Reporter for that pass.
type Job struct {
	mu sync.Mutex

	ID     string    `json:"job_id"`
	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	report *site.Report
	errors []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalFiles     int      `json:"total_files"`
	FilesProcessed int      `json:"files_processed"`
	Current        string   `json:"current,omitempty"`
	Errors         []string `json:"errors"`
}

// NewJob returns a queued job.
func NewJob(id string) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes finished jobs that have not changed within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Done() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// Start implements progress.Reporter.
func (j *Job) Start(total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalFiles = total
	j.UpdatedAt = time.Now()
}

// Update implements progress.Reporter.
func (j *Job) Update(current int, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.FilesProcessed = current
	j.Progress.Current = message
	j.UpdatedAt = time.Now()
}

// Finish implements progress.Reporter.
func (j *Job) Finish() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Current = ""
	j.UpdatedAt = time.Now()
}

func (j *Job) setReport(r site.Report) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.report = &r
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string           `json:"job_id"`
	Status    JobStatus        `json:"status"`
	Phase     string           `json:"phase"`
	Progress  Progress         `json:"progress"`
	Totals    *decorate.Result `json:"totals,omitempty"`
	Changed   int              `json:"changed"`
	Failed    int              `json:"failed"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	snap := JobSnapshot{
		ID:     j.ID,
		Status: j.Status,
		Phase:  j.Phase,
		Progress: Progress{
			TotalFiles:     j.Progress.TotalFiles,
			FilesProcessed: j.Progress.FilesProcessed,
			Current:        j.Progress.Current,
			Errors:         errs,
		},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if j.report != nil {
		totals := j.report.Totals
		snap.Totals = &totals
		snap.Changed = j.report.Changed
		snap.Failed = j.report.Failed
	}
	return snap
}

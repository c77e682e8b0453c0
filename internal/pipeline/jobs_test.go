package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docdecor/internal/decorate"
	"github.com/dgallion1/docdecor/internal/progress"
	"github.com/dgallion1/docdecor/internal/site"
)

var _ progress.Reporter = (*Job)(nil)

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob("test-1")
	if job.Status != StatusQueued {
		t.Fatalf("expected queued job, got %q", job.Status)
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusRunning, "decorating"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJobStatus_Done(t *testing.T) {
	for _, s := range []JobStatus{StatusQueued, StatusRunning} {
		if s.Done() {
			t.Errorf("%q should not be terminal", s)
		}
	}
	for _, s := range []JobStatus{StatusCompleted, StatusPartial, StatusFailed, StatusCanceled} {
		if !s.Done() {
			t.Errorf("%q should be terminal", s)
		}
	}
}

func TestJob_ReportsProgress(t *testing.T) {
	job := NewJob("progress-test")
	job.Start(3)
	job.Update(1, "index.html")
	job.Update(2, "api/index.html")

	snap := job.Snapshot()
	if snap.Progress.TotalFiles != 3 || snap.Progress.FilesProcessed != 2 {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}
	if snap.Progress.Current != "api/index.html" {
		t.Errorf("expected current file, got %q", snap.Progress.Current)
	}

	job.Finish()
	if got := job.Snapshot().Progress.Current; got != "" {
		t.Errorf("expected current cleared on finish, got %q", got)
	}
}

func TestJob_AddError(t *testing.T) {
	job := NewJob("err-test")
	job.AddError("a.html: boom")
	job.AddError("b.html: boom")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "a.html: boom" {
		t.Errorf("expected first error %q, got %q", "a.html: boom", snap.Progress.Errors[0])
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	snap := NewJob("snap-test").Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if snap.Totals != nil {
		t.Error("expected no totals before the job ran")
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	store.Put(NewJob("store-1"))

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := NewJob("old")
	expired.SetStatus(StatusCompleted, "done")
	store.Put(expired)

	running := NewJob("running")
	running.SetStatus(StatusRunning, "decorating")
	store.Put(running)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	store.Put(NewJob("new"))
	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("running") == nil {
		t.Error("expected unfinished job to survive cleanup")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

const classPage = `<html><body>
<div class="doc doc-object doc-class">
<div class="doc-signature"></div>
</div>
</body></html>`

func newOrchestrator(t *testing.T, queue int) (*Orchestrator, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte(classPage), 0o644); err != nil {
		t.Fatal(err)
	}
	proc, err := site.NewProcessor(site.Options{Root: root}, decorate.New(nil), nil)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	return NewOrchestrator(proc, queue, time.Hour, nil), root
}

func waitDone(t *testing.T, job *Job) JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if snap := job.Snapshot(); snap.Status.Done() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", job.ID)
	return JobSnapshot{}
}

func TestOrchestrator_RunsJob(t *testing.T) {
	o, root := newOrchestrator(t, 4)
	o.Start(context.Background())
	defer o.Stop()

	job, err := o.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if o.GetJob(job.ID) != job {
		t.Error("expected submitted job to be retrievable")
	}

	snap := waitDone(t, job)
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed job, got %+v", snap)
	}
	if snap.Changed != 1 || snap.Totals == nil || snap.Totals.Headers != 1 {
		t.Errorf("unexpected job result %+v", snap)
	}
	if snap.Progress.TotalFiles != 1 || snap.Progress.FilesProcessed != 1 {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}

	data, err := os.ReadFile(filepath.Join(root, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Signature:") {
		t.Error("expected page to be decorated on disk")
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	// Not started, so nothing drains the queue.
	o, _ := newOrchestrator(t, 1)

	if _, err := o.Submit(); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	job, err := o.Submit()
	if err == nil {
		t.Fatal("expected queue full error")
	}
	if job.Snapshot().Status != StatusFailed {
		t.Errorf("expected rejected job to be failed, got %q", job.Status)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}

func TestOrchestrator_StopCancelsQueued(t *testing.T) {
	o, _ := newOrchestrator(t, 2)
	job, err := o.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	o.Stop()
	o.Stop()

	if got := job.Snapshot().Status; got != StatusCanceled {
		t.Errorf("expected queued job to be canceled, got %q", got)
	}
	if _, err := o.Submit(); err != ErrStopped {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

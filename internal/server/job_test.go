package server

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/facefit/internal/config"
	"github.com/cwbudde/facefit/internal/fit"
)

func TestCreateJob(t *testing.T) {
	jm := NewJobManager()
	cfg := config.Default().Fit
	cfg.TargetPath = "face.png"

	job := jm.CreateJob(cfg)
	if _, err := uuid.Parse(job.ID); err != nil {
		t.Errorf("Expected UUID job ID, got %q", job.ID)
	}
	if job.State != StatePending {
		t.Errorf("Expected pending state, got %s", job.State)
	}
	if job.Config.TargetPath != "face.png" {
		t.Errorf("Expected target face.png, got %s", job.Config.TargetPath)
	}

	other := jm.CreateJob(cfg)
	if other.ID == job.ID {
		t.Error("Expected unique job IDs")
	}
}

func TestCreateJobWithID(t *testing.T) {
	jm := NewJobManager()
	cfg := config.Default().Fit

	if _, err := jm.CreateJobWithID("job-1", cfg); err != nil {
		t.Fatalf("CreateJobWithID failed: %v", err)
	}
	if _, err := jm.CreateJobWithID("job-1", cfg); err == nil {
		t.Error("Expected error while the job is still pending")
	}

	jm.UpdateJob("job-1", func(j *Job) {
		j.State = StateCompleted
		j.Loop = 5
	})
	job, err := jm.CreateJobWithID("job-1", cfg)
	if err != nil {
		t.Fatalf("Expected finished job to be replaced, got %v", err)
	}
	if job.State != StatePending || job.Loop != 0 {
		t.Errorf("Expected fresh pending job, got state %s loop %d", job.State, job.Loop)
	}
}

func TestGetJobReturnsSnapshot(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(config.Default().Fit)
	params := fit.DefaultParamVector(2)
	jm.UpdateJob(job.ID, func(j *Job) { j.Params = &params })

	got, ok := jm.GetJob(job.ID)
	if !ok {
		t.Fatal("Expected job to exist")
	}
	got.State = StateFailed
	got.Params.Coefficients[0] = 42

	again, _ := jm.GetJob(job.ID)
	if again.State != StatePending {
		t.Errorf("Expected stored state untouched, got %s", again.State)
	}
	if again.Params.Coefficients[0] != 0 {
		t.Errorf("Expected stored params untouched, got %v", again.Params.Coefficients)
	}

	if _, ok := jm.GetJob("missing"); ok {
		t.Error("Expected missing job to be reported")
	}
}

func TestListJobsOrdered(t *testing.T) {
	jm := NewJobManager()
	first := jm.CreateJob(config.Default().Fit)
	second := jm.CreateJob(config.Default().Fit)
	jm.UpdateJob(first.ID, func(j *Job) { j.StartTime = time.Now().Add(-time.Minute) })

	jobs := jm.ListJobs()
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != first.ID || jobs[1].ID != second.ID {
		t.Error("Expected jobs ordered by start time")
	}
}

func TestUpdateJobNotFound(t *testing.T) {
	jm := NewJobManager()
	if err := jm.UpdateJob("missing", func(*Job) {}); err == nil {
		t.Error("Expected error for unknown job")
	}
}

func TestGetRunningJobs(t *testing.T) {
	jm := NewJobManager()
	a := jm.CreateJob(config.Default().Fit)
	jm.CreateJob(config.Default().Fit)
	jm.UpdateJob(a.ID, func(j *Job) { j.State = StateRunning })

	running := jm.GetRunningJobs()
	if len(running) != 1 || running[0].ID != a.ID {
		t.Errorf("Expected only job %s running, got %d jobs", a.ID, len(running))
	}
}

func TestCancelJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(config.Default().Fit)
	ctx, cancel := context.WithCancel(context.Background())
	jm.setCancel(job.ID, cancel)

	if !jm.CancelJob(job.ID) {
		t.Fatal("Expected active job to be cancellable")
	}
	if ctx.Err() == nil {
		t.Error("Expected job context to be cancelled")
	}

	jm.UpdateJob(job.ID, func(j *Job) { j.State = StateCancelled })
	if jm.CancelJob(job.ID) {
		t.Error("Expected finished job to refuse cancellation")
	}
	if jm.CancelJob("missing") {
		t.Error("Expected unknown job to refuse cancellation")
	}
}

func TestJobStateTerminal(t *testing.T) {
	tests := []struct {
		state JobState
		want  bool
	}{
		{StatePending, false},
		{StateRunning, false},
		{StateCompleted, true},
		{StateFailed, true},
		{StateCancelled, true},
	}
	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.want {
			t.Errorf("%s: expected terminal %v, got %v", tt.state, tt.want, got)
		}
	}
}

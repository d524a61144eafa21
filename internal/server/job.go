package server

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/facefit/internal/config"
	"github.com/cwbudde/facefit/internal/fit"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether the job can no longer change
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Job is one fitting job known to the server. Costs are nil until known or
// when the face does not cover the target (infinite cost).
type Job struct {
	ID          string           `json:"id"`
	State       JobState         `json:"state"`
	Config      config.Fit       `json:"config"`
	Params      *fit.ParamVector `json:"params,omitempty"`
	Cost        *float64         `json:"cost,omitempty"`
	InitialCost *float64         `json:"initialCost,omitempty"`
	Loop        int              `json:"loop"`
	Renders     int              `json:"renders"`
	StartTime   time.Time        `json:"startTime"`
	EndTime     *time.Time       `json:"endTime,omitempty"`
	Error       string           `json:"error,omitempty"`

	cancel context.CancelFunc
}

// snapshot copies the job so it can be read without the manager's lock
func (j *Job) snapshot() *Job {
	c := *j
	c.cancel = nil
	if j.Params != nil {
		p := j.Params.Clone()
		c.Params = &p
	}
	if j.EndTime != nil {
		t := *j.EndTime
		c.EndTime = &t
	}
	return &c
}

// finiteCost returns nil for costs JSON cannot carry
func finiteCost(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// JobManager tracks jobs and their cancel functions
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

// NewJobManager creates an empty manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob registers a pending job under a fresh ID
func (jm *JobManager) CreateJob(cfg config.Fit) *Job {
	job, _ := jm.CreateJobWithID(uuid.New().String(), cfg)
	return job
}

// CreateJobWithID registers a pending job under id, replacing a finished job
// with the same ID. Fails while a job with that ID is still active.
func (jm *JobManager) CreateJobWithID(id string, cfg config.Fit) (*Job, error) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if existing, ok := jm.jobs[id]; ok && !existing.State.Terminal() {
		return nil, fmt.Errorf("job %s is still %s", id, existing.State)
	}
	job := &Job{
		ID:        id,
		State:     StatePending,
		Config:    cfg,
		StartTime: time.Now(),
	}
	jm.jobs[id] = job
	jm.broadcaster.Reset(id)
	return job.snapshot(), nil
}

// GetJob returns a copy of the job
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, ok := jm.jobs[id]
	if !ok {
		return nil, false
	}
	return job.snapshot(), true
}

// ListJobs returns copies of all jobs, oldest first
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job.snapshot())
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartTime.Before(jobs[j].StartTime)
	})
	return jobs
}

// UpdateJob atomically applies updateFn to the job
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, ok := jm.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	updateFn(job)
	return nil
}

// GetRunningJobs returns copies of all running jobs
func (jm *JobManager) GetRunningJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	running := make([]*Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			running = append(running, job.snapshot())
		}
	}
	return running
}

// setCancel stores the function that stops the job's worker
func (jm *JobManager) setCancel(id string, cancel context.CancelFunc) {
	jm.UpdateJob(id, func(j *Job) { j.cancel = cancel })
}

// CancelJob asks an active job to stop. Returns false for unknown or
// finished jobs.
func (jm *JobManager) CancelJob(id string) bool {
	jm.mu.RLock()
	job, ok := jm.jobs[id]
	var cancel context.CancelFunc
	active := ok && !job.State.Terminal()
	if active {
		cancel = job.cancel
	}
	jm.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	return active
}

// CancelAll stops every active job
func (jm *JobManager) CancelAll() {
	jm.mu.RLock()
	var cancels []context.CancelFunc
	for _, job := range jm.jobs {
		if !job.State.Terminal() && job.cancel != nil {
			cancels = append(cancels, job.cancel)
		}
	}
	jm.mu.RUnlock()

	for _, cancel := range cancels {
		cancel()
	}
}

package store

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/facefit/internal/config"
	"github.com/cwbudde/facefit/internal/fit"
)

// Checkpoint is the persisted state of a fitting job.
//
// Only the current face is saved. A gradient fit resumed from a checkpoint
// continues exactly, since its state is the face itself. The sampler loses its
// position inside a pass and restarts at coordinate 0, and the population
// optimizer starts a fresh population.
type Checkpoint struct {
	JobID string `json:"jobId"`

	// Params is the face reported at the end of the last completed loop
	Params fit.ParamVector `json:"params"`

	// Cost is the masked MSE of Params
	Cost float64 `json:"cost"`

	InitialCost float64 `json:"initialCost"`

	// Loop counts completed outer loops, summed over resumed runs
	Loop int `json:"loop"`

	Timestamp time.Time `json:"timestamp"`

	// Config is the job description, checked for compatibility on resume
	Config config.Fit `json:"config"`
}

// CheckpointInfo is the listing view of a checkpoint
type CheckpointInfo struct {
	JobID      string    `json:"jobId"`
	Cost       float64   `json:"cost"`
	Loop       int       `json:"loop"`
	Timestamp  time.Time `json:"timestamp"`
	Method     string    `json:"method"`
	Dimensions int       `json:"dimensions"`
	TargetPath string    `json:"targetPath"`
}

// NewCheckpoint stamps a checkpoint with the current time
func NewCheckpoint(jobID string, params fit.ParamVector, cost, initialCost float64, loop int, cfg config.Fit) *Checkpoint {
	return &Checkpoint{
		JobID:       jobID,
		Params:      params.Clone(),
		Cost:        cost,
		InitialCost: initialCost,
		Loop:        loop,
		Timestamp:   time.Now(),
		Config:      cfg,
	}
}

// ToInfo strips the parameter data
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:      c.JobID,
		Cost:       c.Cost,
		Loop:       c.Loop,
		Timestamp:  c.Timestamp,
		Method:     c.Config.Method,
		Dimensions: c.Config.Dimensions,
		TargetPath: c.Config.TargetPath,
	}
}

// Validate checks that the checkpoint can be persisted and resumed.
// Costs must be finite because JSON has no representation for infinity.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if err := validCost(c.Cost); err != nil {
		return &ValidationError{Field: "Cost", Reason: err.Error()}
	}
	if err := validCost(c.InitialCost); err != nil {
		return &ValidationError{Field: "InitialCost", Reason: err.Error()}
	}
	if c.Loop < 0 {
		return &ValidationError{Field: "Loop", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.TargetPath == "" {
		return &ValidationError{Field: "Config.TargetPath", Reason: "cannot be empty"}
	}
	if c.Config.Method == "" {
		return &ValidationError{Field: "Config.Method", Reason: "cannot be empty"}
	}
	if got := c.Params.Dim(); got != c.Config.Dimensions {
		return &ValidationError{
			Field:  "Params",
			Reason: fmt.Sprintf("has %d coefficients, config expects %d", got, c.Config.Dimensions),
		}
	}
	return nil
}

func validCost(v float64) error {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return fmt.Errorf("must be finite")
	case v < 0:
		return fmt.Errorf("cannot be negative")
	}
	return nil
}

// ValidationError reports an invalid checkpoint field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks that a job described by cfg may resume from this checkpoint
func (c *Checkpoint) IsCompatible(cfg config.Fit) error {
	if c.Config.TargetPath != cfg.TargetPath {
		return &CompatibilityError{Field: "TargetPath", Expected: c.Config.TargetPath, Actual: cfg.TargetPath}
	}
	if c.Config.ModelPath != cfg.ModelPath {
		return &CompatibilityError{Field: "ModelPath", Expected: c.Config.ModelPath, Actual: cfg.ModelPath}
	}
	if c.Config.Dimensions != cfg.Dimensions {
		return &CompatibilityError{
			Field:    "Dimensions",
			Expected: fmt.Sprintf("%d", c.Config.Dimensions),
			Actual:   fmt.Sprintf("%d", cfg.Dimensions),
		}
	}
	if c.Config.Channel != cfg.Channel {
		return &CompatibilityError{
			Field:    "Channel",
			Expected: fmt.Sprintf("%d", c.Config.Channel),
			Actual:   fmt.Sprintf("%d", cfg.Channel),
		}
	}
	return nil
}

// CompatibilityError reports a config that differs from the checkpointed one
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}

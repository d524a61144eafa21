package store

// Store persists checkpoints and per-job artifacts.
// Implementations must be safe for concurrent use.
type Store interface {
	// SaveCheckpoint validates and atomically writes a checkpoint, replacing any previous one
	SaveCheckpoint(jobID string, checkpoint *Checkpoint) error

	// LoadCheckpoint returns ErrNotFound when the job has no checkpoint
	LoadCheckpoint(jobID string) (*Checkpoint, error)

	// ListCheckpoints returns metadata of every readable checkpoint, newest first
	ListCheckpoints() ([]CheckpointInfo, error)

	// DeleteCheckpoint removes the checkpoint together with the job's
	// artifacts and trace. Returns ErrNotFound for unknown jobs.
	DeleteCheckpoint(jobID string) error

	// ArtifactPath returns where a named job artifact (best.png, diff.png) lives
	ArtifactPath(jobID, name string) (string, error)

	// OpenTrace opens the job's cost trace for writing
	OpenTrace(jobID string, append bool) (*TraceWriter, error)

	// ReadTrace returns every recorded trace entry of a job
	ReadTrace(jobID string) ([]TraceEntry, error)
}

// ErrNotFound is returned when a checkpoint or trace does not exist.
// Use errors.Is(err, ErrNotFound).
var ErrNotFound = &NotFoundError{}

// NotFoundError names the missing job
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string {
	if e.JobID != "" {
		return "checkpoint not found: " + e.JobID
	}
	return "checkpoint not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

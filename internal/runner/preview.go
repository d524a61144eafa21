package runner

import (
	"context"

	"github.com/cwbudde/facefit/internal/fit"
)

// Preview renders params with the job's model and backend and loads the
// job's target, for on-demand images of jobs that are still running.
func Preview(ctx context.Context, job Job, params fit.ParamVector) (*fit.Observation, *fit.Target, error) {
	_, target, backend, cleanup, err := prepare(job.Config)
	if err != nil {
		return nil, nil, err
	}
	defer cleanup()

	obs, err := backend.Render(ctx, params)
	if err != nil {
		return nil, nil, err
	}
	return obs, target, nil
}

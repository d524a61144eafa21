package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/facefit/internal/config"
	"github.com/cwbudde/facefit/internal/face"
	"github.com/cwbudde/facefit/internal/fit"
	"github.com/cwbudde/facefit/internal/imageio"
	"github.com/cwbudde/facefit/internal/render"
	"github.com/cwbudde/facefit/internal/store"
)

const testSize = 16

// createTargetImage renders a lit synthetic face to a PNG file
func createTargetImage(t *testing.T) string {
	t.Helper()
	model, err := face.SyntheticModel(1, 6)
	if err != nil {
		t.Fatalf("SyntheticModel failed: %v", err)
	}
	r, err := render.NewCPURenderer(model, testSize, testSize)
	if err != nil {
		t.Fatalf("NewCPURenderer failed: %v", err)
	}
	params := fit.DefaultParamVector(1)
	params.Ambient = 0.2
	params.Directed = [3]float64{0.5, 0, 1}
	obs, err := r.Render(context.Background(), params)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "target.png")
	if err := imageio.SaveObservation(path, obs, 0); err != nil {
		t.Fatalf("SaveObservation failed: %v", err)
	}
	return path
}

func testBaseConfig() config.Config {
	cfg := config.Default()
	cfg.Fit.Dimensions = 1
	cfg.Fit.MaxLoops = 2
	cfg.Render.Rows = testSize
	cfg.Render.Cols = testSize
	cfg.Render.Workers = 2
	cfg.Render.ModelResolution = 6
	return cfg
}

func newTestServer(t *testing.T) (*Server, *store.FSStore) {
	t.Helper()
	st, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	s := NewServer(":0", testBaseConfig(), st)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s, st
}

// waitForState polls until the job reaches a terminal state
func waitForState(t *testing.T, jm *JobManager, id string) *Job {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := jm.GetJob(id)
		if !ok {
			t.Fatalf("Job %s disappeared", id)
		}
		if job.State.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Job %s did not finish in time", id)
	return nil
}

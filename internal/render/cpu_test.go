package render

import (
	"context"
	"math"
	"testing"

	"github.com/cwbudde/facefit/internal/face"
	"github.com/cwbudde/facefit/internal/fit"
)

func newTestRenderer(t *testing.T, dims, size int) *CPURenderer {
	t.Helper()
	model, err := face.SyntheticModel(dims, 12)
	if err != nil {
		t.Fatalf("SyntheticModel failed: %v", err)
	}
	r, err := NewCPURenderer(model, size, size)
	if err != nil {
		t.Fatalf("NewCPURenderer failed: %v", err)
	}
	return r
}

func TestCPURendererSilhouette(t *testing.T) {
	r := newTestRenderer(t, 0, 32)

	obs, err := r.Render(context.Background(), fit.DefaultParamVector(0))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if obs.Rows != 32 || obs.Cols != 32 || obs.Channels != Channels {
		t.Fatalf("Unexpected observation shape %dx%dx%d", obs.Rows, obs.Cols, obs.Channels)
	}

	center := 16*32 + 16
	if !obs.Valid(center) {
		t.Error("Center pixel should be covered by the face")
	}
	for _, corner := range []int{0, 31, 31 * 32, 32*32 - 1} {
		if obs.Valid(corner) {
			t.Errorf("Corner pixel %d should be background", corner)
		}
	}

	// unlit face shows ambient everywhere it is drawn
	for i := 0; i < obs.Pixels(); i++ {
		if obs.Valid(i) && math.Abs(float64(obs.At(i, 0))-fit.DefaultAmbient) > 1e-5 {
			t.Fatalf("Pixel %d: expected ambient %f, got %f", i, fit.DefaultAmbient, obs.At(i, 0))
		}
	}
}

func TestCPURendererFrontLight(t *testing.T) {
	r := newTestRenderer(t, 0, 32)

	params := fit.DefaultParamVector(0)
	params.Ambient = 0
	params.Directed = [3]float64{0, 0, 1}
	front, err := r.Render(context.Background(), params)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	params.Directed = [3]float64{0, 0, -1}
	back, err := r.Render(context.Background(), params)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	center := 16*32 + 16
	if front.At(center, 0) < 0.9 {
		t.Errorf("Expected a bright center under front light, got %f", front.At(center, 0))
	}
	if back.At(center, 0) != 0 {
		t.Errorf("Expected a dark center under back light, got %f", back.At(center, 0))
	}
}

func TestCPURendererShapeCoefficients(t *testing.T) {
	r := newTestRenderer(t, 2, 32)

	base, err := r.Render(context.Background(), fit.DefaultParamVector(2))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	params := fit.DefaultParamVector(2)
	params.Coefficients[0] = 4
	params.Directed = [3]float64{0, 1, 1}
	moved, err := r.Render(context.Background(), params)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	cost, err := fit.MaskedMSE(moved, fit.TargetFromObservation(base, 0), 0)
	if err != nil {
		t.Fatalf("MaskedMSE failed: %v", err)
	}
	if cost == 0 {
		t.Error("Expected different parameters to change the observation")
	}
}

func TestCPURendererCancelled(t *testing.T) {
	r := newTestRenderer(t, 0, 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Render(ctx, fit.DefaultParamVector(0)); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestNewCPURendererValidation(t *testing.T) {
	if _, err := NewCPURenderer(nil, 4, 4); err == nil {
		t.Error("Expected error for missing model")
	}
	model, _ := face.SyntheticModel(0, 4)
	if _, err := NewCPURenderer(model, 0, 4); err == nil {
		t.Error("Expected error for zero rows")
	}
}

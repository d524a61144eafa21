package fit

import (
	"context"
	"errors"
	"testing"
)

func TestRunStalled(t *testing.T) {
	r := newSyntheticRenderer(featureOfFirstCoefficient)
	r.drop = true

	fits := 0
	opts := DefaultGradientOptions(1)
	opts.OnFit = func(ParamVector) { fits++ }
	f, err := NewGradientDescentFitter(r.target(0), r, opts)
	if err != nil {
		t.Fatalf("NewGradientDescentFitter failed: %v", err)
	}

	_, err = Run(context.Background(), f, r)
	if !errors.Is(err, ErrStalled) {
		t.Errorf("Expected ErrStalled, got %v", err)
	}
	if !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("Expected stall to be a protocol violation, got %v", err)
	}
	if fits != 0 {
		t.Errorf("Expected no OnFit call, got %d", fits)
	}
}

func TestRunRendererFailure(t *testing.T) {
	r := newSyntheticRenderer(featureOfFirstCoefficient)
	r.fail = errRenderFailed

	f, err := NewCoordinateSamplerFitter(r.target(0), r, DefaultSamplerOptions(1))
	if err != nil {
		t.Fatalf("NewCoordinateSamplerFitter failed: %v", err)
	}
	if _, err := Run(context.Background(), f, r); !errors.Is(err, errRenderFailed) {
		t.Errorf("Expected render failure, got %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	r := newSyntheticRenderer(featureOfFirstCoefficient)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f, err := NewGradientDescentFitter(r.target(0), r, DefaultGradientOptions(1))
	if err != nil {
		t.Fatalf("NewGradientDescentFitter failed: %v", err)
	}
	if _, err := Run(ctx, f, r); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if f.Done() {
		t.Error("Expected fit to remain unfinished after cancellation")
	}
}

func TestRunShapeMismatchIsFatal(t *testing.T) {
	r := newSyntheticRenderer(featureOfFirstCoefficient)

	fits := 0
	opts := DefaultSamplerOptions(1)
	opts.OnFit = func(ParamVector) { fits++ }
	f, err := NewCoordinateSamplerFitter(ConstantTarget(5, 5, 0), r, opts)
	if err != nil {
		t.Fatalf("NewCoordinateSamplerFitter failed: %v", err)
	}
	if _, err := Run(context.Background(), f, r); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch, got %v", err)
	}
	if fits != 0 {
		t.Errorf("Expected no OnFit call, got %d", fits)
	}
}

func TestProtocolViolationIsNotStall(t *testing.T) {
	err := violation(MethodSampler, CandidateLabel(2), "duplicate reply for candidate")
	if errors.Is(err, ErrStalled) {
		t.Error("A plain protocol violation must not match ErrStalled")
	}
	if !errors.Is(err, ErrProtocolViolation) {
		t.Error("Expected match on ErrProtocolViolation")
	}
	if want := "protocol violation in sampler fitter: duplicate reply for candidate (label candidate[2])"; err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}

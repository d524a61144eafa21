package fit

import (
	"math"
	"math/rand"
	"testing"
)

func TestCandidateGrid(t *testing.T) {
	tests := []struct {
		steps int
		want  []float64
	}{
		{steps: 1, want: []float64{-4, 0, 4}},
		{steps: 2, want: []float64{-4, 0, 4}},
		{steps: 3, want: []float64{-4, -2, 0, 2, 4}},
		{steps: 4, want: []float64{-4, -2, 0, 2, 4}},
		{steps: 8, want: []float64{-4, -3, -2, -1, 0, 1, 2, 3, 4}},
	}

	for _, tt := range tests {
		got := CandidateGrid(tt.steps)
		if len(got) != len(tt.want) {
			t.Fatalf("steps=%d: expected %d candidates, got %d", tt.steps, len(tt.want), len(got))
		}
		for i := range tt.want {
			if math.Abs(got[i]-tt.want[i]) > 1e-12 {
				t.Errorf("steps=%d: candidate %d expected %f, got %f", tt.steps, i, tt.want[i], got[i])
			}
		}
	}
}

func TestCandidateGridSymmetric(t *testing.T) {
	for steps := 1; steps <= 12; steps++ {
		grid := CandidateGrid(steps)
		if len(grid)%2 != 1 {
			t.Errorf("steps=%d: expected an odd candidate count, got %d", steps, len(grid))
		}
		if grid[len(grid)/2] != 0 {
			t.Errorf("steps=%d: expected zero at the center, got %f", steps, grid[len(grid)/2])
		}
		if grid[0] != GridMin || grid[len(grid)-1] != GridMax {
			t.Errorf("steps=%d: expected endpoints [%f, %f], got [%f, %f]", steps, GridMin, GridMax, grid[0], grid[len(grid)-1])
		}
	}
}

func TestArgminFirstOccurrence(t *testing.T) {
	if got := Argmin([]float64{3, 1, 2, 1}); got != 1 {
		t.Errorf("Expected index 1, got %d", got)
	}
	if got := Argmin([]float64{math.Inf(1), math.Inf(1)}); got != 0 {
		t.Errorf("Expected index 0 when all costs are infinite, got %d", got)
	}
}

func TestBoltzmannWeights(t *testing.T) {
	costs := []float64{1, 2, math.Inf(1)}
	w := BoltzmannWeights(costs)

	if w[2] != 0 {
		t.Errorf("Expected zero weight for infinite cost, got %f", w[2])
	}
	// temperature is the largest finite cost
	ratio := w[0] / w[1]
	expected := math.Exp(-1.0/2) / math.Exp(-2.0/2)
	if math.Abs(ratio-expected) > 1e-12 {
		t.Errorf("Expected weight ratio %f, got %f", expected, ratio)
	}
	if math.Abs(w[0]+w[1]+w[2]-1) > 1e-12 {
		t.Errorf("Weights must sum to 1, got %f", w[0]+w[1]+w[2])
	}
}

func TestBoltzmannWeightsZeroTemperature(t *testing.T) {
	w := BoltzmannWeights([]float64{0, 0, 0, 0})
	for i, v := range w {
		if v != 0.25 {
			t.Errorf("Expected uniform weight 0.25 at %d, got %f", i, v)
		}
	}
}

func TestSampleBoltzmannAllInfinite(t *testing.T) {
	costs := []float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	if got := SampleBoltzmann(costs, 0.7); got != 0 {
		t.Errorf("Expected argmin fallback 0, got %d", got)
	}
}

func TestSampleBoltzmannRoundOff(t *testing.T) {
	costs := []float64{1, 2, math.Inf(1)}
	// a draw no cumulative sum can exceed falls back to the last weighted candidate
	if got := SampleBoltzmann(costs, 1.0); got != 1 {
		t.Errorf("Expected fallback to index 1, got %d", got)
	}
	if got := SampleBoltzmann(costs, 0); got != 0 {
		t.Errorf("Expected index 0 for draw 0, got %d", got)
	}
}

func TestSampleBoltzmannFrequencies(t *testing.T) {
	costs := []float64{0.1, 0.4, 0.2, 0.8, 0.3}
	weights := BoltzmannWeights(costs)
	rng := rand.New(rand.NewSource(1))

	const draws = 200000
	counts := make([]int, len(costs))
	for i := 0; i < draws; i++ {
		counts[SampleBoltzmann(costs, rng.Float64())]++
	}

	for i, w := range weights {
		freq := float64(counts[i]) / draws
		if math.Abs(freq-w) > 0.01 {
			t.Errorf("Candidate %d: expected frequency %f, got %f", i, w, freq)
		}
	}
}

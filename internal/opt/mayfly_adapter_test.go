package opt

import (
	"math"
	"testing"
)

// sphere has its minimum at the origin
func sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func TestMayflyAdapterOnSphere(t *testing.T) {
	optimizer := NewMayfly(100, 20, 42)

	dim := 3
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := 0; i < dim; i++ {
		lower[i] = -4
		upper[i] = 4
	}

	best, cost := optimizer.Run(sphere, lower, upper, dim)

	if len(best) != dim {
		t.Fatalf("Expected %d parameters, got %d", dim, len(best))
	}
	if cost > 0.1 {
		t.Errorf("Expected cost near 0, got %f", cost)
	}
	for i, v := range best {
		if math.Abs(v) > 1.0 {
			t.Errorf("Parameter %d = %f, expected near 0", i, v)
		}
	}
}

func TestMayflyAdapterRespectsPerParameterBounds(t *testing.T) {
	optimizer := NewMayfly(30, 20, 7)

	lower := []float64{-4, 10}
	upper := []float64{4, 12}
	seen := 0
	eval := func(x []float64) float64 {
		seen++
		for i, v := range x {
			if v < lower[i]-1e-9 || v > upper[i]+1e-9 {
				t.Fatalf("Parameter %d = %f outside [%f, %f]", i, v, lower[i], upper[i])
			}
		}
		return (x[0]-1)*(x[0]-1) + (x[1]-11)*(x[1]-11)
	}

	best, _ := optimizer.Run(eval, lower, upper, 2)

	if seen == 0 {
		t.Fatal("Expected objective to be evaluated")
	}
	if math.Abs(best[1]-11) > 1 {
		t.Errorf("Expected second parameter near 11, got %f", best[1])
	}
}

func TestMayflyAdapterDeterministic(t *testing.T) {
	dim := 2
	lower := []float64{-5, -5}
	upper := []float64{5, 5}

	// popSize must be >= 20 for mayfly v0.1.0
	_, cost1 := NewMayfly(50, 20, 123).Run(sphere, lower, upper, dim)
	_, cost2 := NewMayfly(50, 20, 123).Run(sphere, lower, upper, dim)

	if cost1 != cost2 {
		t.Errorf("Non-deterministic: cost1=%f, cost2=%f", cost1, cost2)
	}
}

func TestMidpoint(t *testing.T) {
	mid := Midpoint([]float64{-4, 0}, []float64{4, 2}, 2)
	if mid[0] != 0 || mid[1] != 1 {
		t.Errorf("Expected [0 1], got %v", mid)
	}
}

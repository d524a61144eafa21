package fit

import "math"

// Candidate values of the coordinate sampler span [GridMin, GridMax]
const (
	GridMin = -4.0
	GridMax = 4.0
)

// CandidateCount returns the grid size for a step count.
// Odd step counts get one extra point so the grid stays symmetric around zero.
func CandidateCount(steps int) int {
	if steps%2 == 0 {
		return steps + 1
	}
	return steps + 2
}

// CandidateGrid returns equally spaced candidates over [GridMin, GridMax]
func CandidateGrid(steps int) []float64 {
	return linspace(GridMin, GridMax, CandidateCount(steps))
}

func linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

// Argmin returns the index of the strictly smallest cost, first occurrence on ties
func Argmin(costs []float64) int {
	best := 0
	for i := 1; i < len(costs); i++ {
		if costs[i] < costs[best] {
			best = i
		}
	}
	return best
}

// BoltzmannWeights normalizes exp(-cost/maxCost) into a probability distribution.
// Infinite costs get zero weight and maxCost is taken over finite costs only;
// a zero temperature yields uniform weights. Returns nil when no cost is finite.
func BoltzmannWeights(costs []float64) []float64 {
	temperature := math.Inf(-1)
	finite := 0
	for _, c := range costs {
		if isFinite(c) {
			finite++
			temperature = math.Max(temperature, c)
		}
	}
	if finite == 0 {
		return nil
	}

	weights := make([]float64, len(costs))
	var total float64
	for i, c := range costs {
		if !isFinite(c) {
			continue
		}
		if temperature > 0 {
			weights[i] = math.Exp(-c / temperature)
		} else {
			weights[i] = 1
		}
		total += weights[i]
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights
}

// SampleBoltzmann picks a candidate by walking the cumulative Boltzmann
// distribution with the uniform draw u in [0, 1).
func SampleBoltzmann(costs []float64, u float64) int {
	weights := BoltzmannWeights(costs)
	if weights == nil {
		return Argmin(costs)
	}

	last := -1
	var acc float64
	for i, w := range weights {
		if w == 0 {
			continue
		}
		last = i
		acc += w
		if u < acc {
			return i
		}
	}
	// round-off left the cumulative sum short of u
	return last
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

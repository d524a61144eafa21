package opt

// Optimizer minimizes a black-box objective inside a box
type Optimizer interface {
	// Run minimizes eval over [lower[i], upper[i]] for each of the dim parameters.
	// Returns the best parameters found and their cost.
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}

// Midpoint returns the center of the box, used as a fallback candidate
func Midpoint(lower, upper []float64, dim int) []float64 {
	mid := make([]float64, dim)
	for i := range mid {
		mid[i] = 0.5 * (lower[i] + upper[i])
	}
	return mid
}

package fit

import (
	"log/slog"
	"math"
)

// ConvergenceConfig defines when a fit stops before its loop budget is spent
type ConvergenceConfig struct {
	// Enabled controls whether convergence detection is active
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Patience is the number of outer loops with no significant improvement before stopping
	Patience int `json:"patience" yaml:"patience"`

	// Threshold is the minimum relative improvement that counts as progress.
	// Relative improvement = (lastSignificant - cost) / lastSignificant
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// DefaultConvergenceConfig returns patience 3 and a 0.1% threshold
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  3,
		Threshold: 0.001,
	}
}

// DisabledConvergenceConfig returns a config with convergence detection disabled
func DisabledConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{Enabled: false}
}

// ConvergenceTracker watches the per-loop cost of a fit
type ConvergenceTracker struct {
	config          ConvergenceConfig
	costHistory     []float64
	bestCost        float64
	lastSignificant float64
	staleCount      int
}

// NewConvergenceTracker creates a tracker with the given config
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		bestCost:        math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records the cost of one loop and reports whether the fit has converged.
// The sampler is not monotonic, so only the best cost ever seen counts as progress.
func (c *ConvergenceTracker) Update(cost float64) bool {
	if !c.config.Enabled {
		return false
	}

	c.costHistory = append(c.costHistory, cost)
	if cost < c.bestCost {
		c.bestCost = cost
	}

	if math.IsInf(c.lastSignificant, 1) {
		c.lastSignificant = cost
		return false
	}

	improved := false
	switch {
	case c.lastSignificant == 0:
		// nothing left to gain
	case math.IsInf(cost, 1) || math.IsNaN(cost):
		// an unrenderable loop is never progress
	default:
		improved = (c.lastSignificant-cost)/c.lastSignificant >= c.config.Threshold
	}

	if improved {
		c.lastSignificant = cost
		c.staleCount = 0
		return false
	}

	c.staleCount++
	slog.Debug("No significant cost improvement",
		"cost", cost,
		"last_significant", c.lastSignificant,
		"stale_count", c.staleCount,
		"patience", c.config.Patience,
	)
	if c.staleCount >= c.config.Patience {
		slog.Info("Convergence detected, stopping early",
			"stale_count", c.staleCount,
			"best_cost", c.bestCost,
		)
		return true
	}
	return false
}

// BestCost returns the best cost seen so far
func (c *ConvergenceTracker) BestCost() float64 {
	return c.bestCost
}

// History returns a copy of the cost history
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.costHistory...)
}

// StaleCount returns the number of loops since the last significant improvement
func (c *ConvergenceTracker) StaleCount() int {
	return c.staleCount
}

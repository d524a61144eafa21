package fit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/cwbudde/facefit/internal/opt"
)

// MethodGlobal names the population-based optimization pipeline
const MethodGlobal = "mayfly"

// GlobalOptions configure OptimizeGlobal
type GlobalOptions struct {
	Dimensions int
	Channel    int

	// Lower and Upper bound every flat parameter; both zero selects the grid range
	Lower float64
	Upper float64

	Logger *slog.Logger
}

// OptimizationResult holds the output of an optimization run
type OptimizationResult struct {
	BestParams  ParamVector
	BestCost    float64
	InitialCost float64
	Evaluations int
}

// OptimizeGlobal searches the whole flat parameter vector with a population
// optimizer, rendering each candidate synchronously.
func OptimizeGlobal(ctx context.Context, render RenderFunc, target *Target, optimizer opt.Optimizer, opts GlobalOptions) (*OptimizationResult, error) {
	if render == nil || target == nil || optimizer == nil {
		return nil, fmt.Errorf("global optimization: render, target and optimizer are required")
	}
	if opts.Dimensions < 0 {
		return nil, fmt.Errorf("global optimization: dimensions cannot be negative, got %d", opts.Dimensions)
	}
	lo, hi := opts.Lower, opts.Upper
	if lo == 0 && hi == 0 {
		lo, hi = GridMin, GridMax
	}
	if lo >= hi {
		return nil, fmt.Errorf("global optimization: lower bound %v must be below upper bound %v", lo, hi)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dim := opts.Dimensions + LightComponents
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range lower {
		lower[i] = lo
		upper[i] = hi
	}

	var (
		mu       sync.Mutex
		evals    int
		firstErr error
	)
	// fail records the first error; later evaluations short-circuit
	fail := func(err error) float64 {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		return math.Inf(1)
	}
	// score may be called concurrently by the optimizer; the lock covers only
	// the shared counters so renders overlap
	score := func(p ParamVector) float64 {
		mu.Lock()
		evals++
		failed := firstErr != nil
		mu.Unlock()
		if failed {
			return math.Inf(1)
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		obs, err := render(ctx, p)
		if err != nil {
			return fail(fmt.Errorf("global optimization: render: %w", err))
		}
		c, err := MaskedMSE(obs, target, opts.Channel)
		if errors.Is(err, ErrDegenerateObservation) {
			return math.Inf(1)
		}
		if err != nil {
			return fail(fmt.Errorf("global optimization: %w", err))
		}
		return c
	}

	initial := DefaultParamVector(opts.Dimensions)
	logger.Info("Starting global optimization", "parameters", dim)
	initialCost := score(initial)

	bestArr, bestCost := optimizer.Run(func(x []float64) float64 {
		p, _ := ParamVectorFromArray(x)
		return score(p)
	}, lower, upper, dim)

	if firstErr != nil {
		return nil, firstErr
	}
	best, err := ParamVectorFromArray(bestArr)
	if err != nil {
		return nil, fmt.Errorf("global optimization: %w", err)
	}

	logger.Info("Global optimization complete",
		"initial_cost", initialCost,
		"best_cost", bestCost,
		"evaluations", evals,
	)

	return &OptimizationResult{
		BestParams:  best,
		BestCost:    bestCost,
		InitialCost: initialCost,
		Evaluations: evals,
	}, nil
}

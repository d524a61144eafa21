package fit

import (
	"fmt"
	"math/rand"
	"time"
)

// MethodSampler names the coordinate-wise Boltzmann sampler
const MethodSampler = "sampler"

// Uniform is a source of uniform draws in [0, 1)
type Uniform interface {
	Float64() float64
}

// SamplerOptions configure a CoordinateSamplerFitter
type SamplerOptions struct {
	Options

	// Steps holds the grid step count per flat coordinate (coefficients, ambient,
	// directed light). Missing entries default to 1, extra entries are ignored.
	Steps []int

	// MaxLoops is the number of full passes over all coordinates
	MaxLoops int

	// DeterminedLoops is the number of leading passes that use argmin selection
	DeterminedLoops int

	// Rand drives Boltzmann sampling; nil seeds from the clock
	Rand Uniform

	Convergence ConvergenceConfig
}

// DefaultSamplerOptions returns the settings used when none are given
func DefaultSamplerOptions(dims int) SamplerOptions {
	return SamplerOptions{
		Options:     Options{Dimensions: dims},
		MaxLoops:    1,
		Convergence: DisabledConvergenceConfig(),
	}
}

// CoordinateSamplerFitter visits one coordinate at a time, renders every grid
// candidate for it concurrently and commits either the cheapest candidate or a
// Boltzmann-weighted draw.
type CoordinateSamplerFitter struct {
	base

	steps           []int
	maxLoops        int
	determinedLoops int
	rng             Uniform
	tracker         *ConvergenceTracker

	params      []float64
	coord       int
	loop        int
	values      []float64
	costs       []float64
	filled      []bool
	pending     int
	initPending bool
	awaitingEnd bool
}

// NewCoordinateSamplerFitter creates a sampler for target that renders through renderer
func NewCoordinateSamplerFitter(target *Target, renderer Renderer, opts SamplerOptions) (*CoordinateSamplerFitter, error) {
	if opts.MaxLoops < 0 {
		return nil, fmt.Errorf("sampler fitter: max loops cannot be negative, got %d", opts.MaxLoops)
	}
	if opts.DeterminedLoops < 0 {
		return nil, fmt.Errorf("sampler fitter: determined loops cannot be negative, got %d", opts.DeterminedLoops)
	}
	for i, s := range opts.Steps {
		if s < 1 {
			return nil, fmt.Errorf("sampler fitter: steps[%d] must be at least 1, got %d", i, s)
		}
	}

	b, err := newBase(MethodSampler, target, renderer, opts.Options)
	if err != nil {
		return nil, err
	}

	n := opts.Dimensions + LightComponents
	steps := make([]int, n)
	for i := range steps {
		steps[i] = 1
	}
	if len(opts.Steps) != 0 && len(opts.Steps) != n {
		b.logger.Debug("Conforming sampler steps to parameter count", "given", len(opts.Steps), "parameters", n)
	}
	copy(steps, opts.Steps)

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	f := &CoordinateSamplerFitter{
		base:            b,
		steps:           steps,
		maxLoops:        opts.MaxLoops,
		determinedLoops: opts.DeterminedLoops,
		rng:             rng,
		tracker:         NewConvergenceTracker(opts.Convergence),
	}
	f.receive = f.ReceiveImage
	return f, nil
}

// Start issues the priming render and the candidate batch of coordinate 0
func (f *CoordinateSamplerFitter) Start() error {
	if err := f.begin(); err != nil {
		return err
	}
	f.params = f.initial.Array()
	f.loop = 0
	f.initPending = true
	f.requestFace(f.initial, At(PhaseInit))

	if f.maxLoops == 0 {
		f.finish(f.initial)
		return nil
	}
	f.beginCoordinate(0)
	return nil
}

// ReceiveImage files one reply; progression waits until every candidate replied
func (f *CoordinateSamplerFitter) ReceiveImage(obs *Observation, label Label) error {
	// The priming reply carries no information and may arrive at any point.
	if label.Phase == PhaseInit && f.initPending {
		f.initPending = false
		return nil
	}
	if err := f.checkReceivable(label); err != nil {
		return err
	}

	switch label.Phase {
	case PhaseCandidate:
		k := label.Index
		if f.pending == 0 {
			return violation(f.method, label, "no candidate batch in flight")
		}
		if k < 0 || k >= len(f.values) {
			return violation(f.method, label, "candidate index out of range [0, %d)", len(f.values))
		}
		if f.filled[k] {
			return violation(f.method, label, "duplicate reply for candidate")
		}
		cost, err := f.cost(obs)
		if err != nil {
			return err
		}
		f.costs[k] = cost
		f.filled[k] = true
		f.pending--
		if f.pending > 0 {
			return nil
		}
		f.commit()

	case PhaseIterationEnd:
		if !f.awaitingEnd {
			return violation(f.method, label, "no loop awaiting completion")
		}
		cost, err := f.cost(obs)
		if err != nil {
			return err
		}
		f.awaitingEnd = false
		f.loop++
		current := f.current()
		f.report(f.loop, cost, current)
		if f.loop >= f.maxLoops || f.tracker.Update(cost) {
			f.finish(current)
			return nil
		}
		f.beginCoordinate(0)

	default:
		return violation(f.method, label, "unexpected phase")
	}
	return nil
}

// Loop returns the number of completed passes
func (f *CoordinateSamplerFitter) Loop() int {
	return f.loop
}

// Steps returns the per-coordinate step counts in use
func (f *CoordinateSamplerFitter) Steps() []int {
	return append([]int(nil), f.steps...)
}

func (f *CoordinateSamplerFitter) current() ParamVector {
	p, _ := ParamVectorFromArray(f.params)
	return p
}

func (f *CoordinateSamplerFitter) beginCoordinate(i int) {
	f.coord = i
	f.values = CandidateGrid(f.steps[i])
	f.costs = make([]float64, len(f.values))
	f.filled = make([]bool, len(f.values))
	f.pending = len(f.values)

	candidate := make([]float64, len(f.params))
	for k, v := range f.values {
		copy(candidate, f.params)
		candidate[i] = v
		p, _ := ParamVectorFromArray(candidate)
		f.requestFace(p, CandidateLabel(k))
	}
}

func (f *CoordinateSamplerFitter) commit() {
	var best int
	if f.loop < f.determinedLoops {
		best = Argmin(f.costs)
	} else {
		best = SampleBoltzmann(f.costs, f.rng.Float64())
	}
	f.params[f.coord] = f.values[best]

	f.logger.Debug("Coordinate selected",
		"loop", f.loop,
		"coordinate", f.coord,
		"value", f.values[best],
		"cost", f.costs[best],
		"min_cost", f.costs[Argmin(f.costs)],
	)

	if f.coord+1 < len(f.params) {
		f.beginCoordinate(f.coord + 1)
		return
	}
	f.awaitingEnd = true
	f.requestFace(f.current(), At(PhaseIterationEnd))
}

package fit

import (
	"fmt"
	"math"
)

// MethodGradient names the finite-difference gradient descent fitter
const MethodGradient = "gradient"

const cursorSentinel = ambientIndex - 1

// GradientOptions configure a GradientDescentFitter
type GradientOptions struct {
	Options

	// Dx is the finite-difference perturbation; light terms use Dx/2
	Dx float64

	// Step is the gradient-descent step size
	Step float64

	// MaxLoops is the number of gradient updates applied before finishing
	MaxLoops int

	// LightScale additionally scales the light update; zero selects 1/50
	LightScale float64

	// Convergence optionally stops the run early
	Convergence ConvergenceConfig
}

// DefaultGradientOptions returns the settings used when none are given
func DefaultGradientOptions(dims int) GradientOptions {
	return GradientOptions{
		Options:     Options{Dimensions: dims},
		Dx:          0.1,
		Step:        100,
		MaxLoops:    10,
		LightScale:  1.0 / 50,
		Convergence: DisabledConvergenceConfig(),
	}
}

// GradientDescentFitter estimates every partial derivative with a symmetric
// finite difference (three renders per parameter) and then applies one batch
// gradient-descent update per outer loop.
type GradientDescentFitter struct {
	base

	dx         float64
	step       float64
	maxLoops   int
	lightScale float64
	tracker    *ConvergenceTracker

	face        ParamVector
	derivatives []float64
	left        []float64
	right       []float64
	center      float64
	cursor      int
	loop        int
	awaiting    Phase
}

// NewGradientDescentFitter creates a fitter for target that renders through renderer
func NewGradientDescentFitter(target *Target, renderer Renderer, opts GradientOptions) (*GradientDescentFitter, error) {
	if opts.Dx <= 0 || math.IsInf(opts.Dx, 0) || math.IsNaN(opts.Dx) {
		return nil, fmt.Errorf("gradient fitter: dx must be positive, got %v", opts.Dx)
	}
	if opts.Step < 0 {
		return nil, fmt.Errorf("gradient fitter: step cannot be negative, got %v", opts.Step)
	}
	if opts.MaxLoops < 0 {
		return nil, fmt.Errorf("gradient fitter: max loops cannot be negative, got %d", opts.MaxLoops)
	}
	if opts.LightScale == 0 {
		opts.LightScale = 1.0 / 50
	}

	b, err := newBase(MethodGradient, target, renderer, opts.Options)
	if err != nil {
		return nil, err
	}

	f := &GradientDescentFitter{
		base:       b,
		dx:         opts.Dx,
		step:       opts.Step,
		maxLoops:   opts.MaxLoops,
		lightScale: opts.LightScale,
		tracker:    NewConvergenceTracker(opts.Convergence),
		cursor:     cursorSentinel,
	}
	f.receive = f.ReceiveImage
	return f, nil
}

// Start renders the initial face labeled start-iteration
func (f *GradientDescentFitter) Start() error {
	if err := f.begin(); err != nil {
		return err
	}

	n := f.dims + LightComponents
	f.derivatives = make([]float64, n)
	f.left = make([]float64, n)
	f.right = make([]float64, n)

	f.face = f.initial.Clone()
	f.loop = 0
	f.cursor = cursorSentinel
	f.await(PhaseStartIteration, f.face)
	return nil
}

// ReceiveImage advances the center/right/left state machine by one reply
func (f *GradientDescentFitter) ReceiveImage(obs *Observation, label Label) error {
	if err := f.checkReceivable(label); err != nil {
		return err
	}
	if label.Phase != f.awaiting {
		return violation(f.method, label, "expected %s", f.awaiting)
	}

	cost, err := f.cost(obs)
	if err != nil {
		return err
	}

	switch label.Phase {
	case PhaseStartIteration:
		f.report(f.loop, cost, f.face)
		if f.loop >= f.maxLoops || f.tracker.Update(cost) {
			f.finish(f.face)
			return nil
		}
		// The iteration's base render doubles as the first center observation.
		f.cursor = ambientIndex
		f.observeCenter(cost)

	case PhaseCenter:
		f.observeCenter(cost)

	case PhaseRightDerivative:
		s := slot(f.cursor, f.dims)
		f.right[s] = f.difference(f.center, cost)
		f.await(PhaseLeftDerivative, f.perturbed(f.cursor, -f.dx))

	case PhaseLeftDerivative:
		s := slot(f.cursor, f.dims)
		f.left[s] = f.difference(cost, f.center)
		d := 0.5 * (f.left[s] + f.right[s])
		if math.IsNaN(d) || math.IsInf(d, 0) {
			f.logger.Warn("Non-finite derivative, skipping parameter", "parameter", f.cursor, "loop", f.loop)
			d = 0
		}
		f.derivatives[s] = d

		f.cursor++
		if f.cursor > f.dims-1 {
			f.descend()
			return nil
		}
		f.await(PhaseCenter, f.face)

	default:
		return violation(f.method, label, "unhandled phase")
	}
	return nil
}

// Derivatives returns the latest derivative estimates in flat layout
func (f *GradientDescentFitter) Derivatives() []float64 {
	return append([]float64(nil), f.derivatives...)
}

// Loop returns the number of gradient updates applied so far
func (f *GradientDescentFitter) Loop() int {
	return f.loop
}

func (f *GradientDescentFitter) await(phase Phase, params ParamVector) {
	f.awaiting = phase
	f.requestFace(params, At(phase))
}

func (f *GradientDescentFitter) observeCenter(cost float64) {
	f.center = cost
	f.await(PhaseRightDerivative, f.perturbed(f.cursor, f.dx))
}

func (f *GradientDescentFitter) perturbed(param int, dx float64) ParamVector {
	p := f.face.Clone()
	if IsLight(param) {
		dx /= 2
	}
	p.SetComponent(param, p.Component(param)+dx)
	return p
}

func (f *GradientDescentFitter) difference(y0, y1 float64) float64 {
	return (y1 - y0) / f.dx
}

// descend applies one batch update and starts the next outer loop
func (f *GradientDescentFitter) descend() {
	next := f.face.Clone()
	for i := range next.Coefficients {
		next.Coefficients[i] -= f.step * f.derivatives[i]
	}
	next.Ambient -= f.step * f.derivatives[slot(ambientIndex, f.dims)] * f.lightScale
	for j := 0; j < DirectionComponents; j++ {
		next.Directed[j] -= f.step * f.derivatives[f.dims+AmbientComponents+j] * f.lightScale
	}

	f.face = next
	f.loop++
	f.cursor = cursorSentinel
	f.logger.Debug("Gradient step applied", "loop", f.loop, "ambient", next.Ambient)
	f.await(PhaseStartIteration, f.face)
}

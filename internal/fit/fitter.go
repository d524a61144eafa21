package fit

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// Fitter is one fitting run driven by asynchronous render replies.
// A Fitter is not reusable once it has finished.
type Fitter interface {
	// Start issues the first render requests
	Start() error

	// ReceiveImage consumes one render reply. Unexpected labels are rejected
	// with a *ProtocolViolationError and leave the state untouched.
	ReceiveImage(obs *Observation, label Label) error

	// Done reports whether the run reached its terminal state
	Done() bool

	// Result returns the final vector once Done
	Result() (ParamVector, bool)
}

// Progress is reported once per outer loop
type Progress struct {
	Method  string      `json:"method"`
	Loop    int         `json:"loop"`
	Cost    float64     `json:"cost"`
	Params  ParamVector `json:"params"`
	Renders int         `json:"renders"`
}

// Options configure the behavior shared by every fitter
type Options struct {
	// Dimensions is the number of shape coefficients being fitted
	Dimensions int

	// Initial is the starting face; nil selects DefaultParamVector.
	// A coefficient count different from Dimensions is zero-padded or truncated.
	Initial *ParamVector

	// Channel selects the observation feature channel compared with the target
	Channel int

	// OnFit receives the final vector, at most once
	OnFit func(ParamVector)

	// OnProgress receives one report per outer loop
	OnProgress func(Progress)

	Logger *slog.Logger
}

type runState int

const (
	stateIdle runState = iota
	stateRunning
	stateDone
)

// base carries the request/finish plumbing of the concrete fitters
type base struct {
	method     string
	target     *Target
	dims       int
	initial    ParamVector
	renderer   Renderer
	channel    int
	onFit      func(ParamVector)
	onProgress func(Progress)
	logger     *slog.Logger

	state   runState
	result  ParamVector
	renders int

	// receive is the concrete ReceiveImage; set by the constructors
	receive func(*Observation, Label) error
}

func newBase(method string, target *Target, renderer Renderer, opts Options) (base, error) {
	if target == nil {
		return base{}, fmt.Errorf("%s fitter: target is required", method)
	}
	if renderer == nil {
		return base{}, fmt.Errorf("%s fitter: renderer is required", method)
	}
	if opts.Dimensions < 0 {
		return base{}, fmt.Errorf("%s fitter: dimensions cannot be negative, got %d", method, opts.Dimensions)
	}
	if opts.Channel < 0 {
		return base{}, fmt.Errorf("%s fitter: channel cannot be negative, got %d", method, opts.Channel)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("method", method)

	initial := DefaultParamVector(opts.Dimensions)
	if opts.Initial != nil {
		if opts.Initial.Dim() != opts.Dimensions {
			logger.Debug("Conforming initial face to model dimensions",
				"given", opts.Initial.Dim(),
				"dimensions", opts.Dimensions,
			)
		}
		initial = opts.Initial.Conform(opts.Dimensions)
	}

	return base{
		method:     method,
		target:     target,
		dims:       opts.Dimensions,
		initial:    initial,
		renderer:   renderer,
		channel:    opts.Channel,
		onFit:      opts.OnFit,
		onProgress: opts.OnProgress,
		logger:     logger,
	}, nil
}

// Initial returns the conformed starting vector
func (b *base) Initial() ParamVector {
	return b.initial.Clone()
}

// Dimensions returns the number of fitted shape coefficients
func (b *base) Dimensions() int {
	return b.dims
}

// Renders returns how many render requests were issued
func (b *base) Renders() int {
	return b.renders
}

func (b *base) Done() bool {
	return b.state == stateDone
}

func (b *base) Result() (ParamVector, bool) {
	if b.state != stateDone {
		return ParamVector{}, false
	}
	return b.result.Clone(), true
}

func (b *base) begin() error {
	if b.state != stateIdle {
		return ErrFitterStarted
	}
	b.state = stateRunning
	b.logger.Info("Starting fit", "dimensions", b.dims, "target_rows", b.target.Rows, "target_cols", b.target.Cols)
	return nil
}

// checkReceivable rejects replies outside the running state
func (b *base) checkReceivable(label Label) error {
	switch b.state {
	case stateIdle:
		return violation(b.method, label, "reply before start")
	case stateDone:
		return violation(b.method, label, "reply after finish")
	}
	return nil
}

func (b *base) requestFace(params ParamVector, label Label) {
	b.renders++
	b.renderer.RequestImage(params.Clone(), func(obs *Observation) error {
		return b.receive(obs, label)
	})
}

// cost scores an observation; a degenerate mask counts as infinitely bad
func (b *base) cost(obs *Observation) (float64, error) {
	c, err := MaskedMSE(obs, b.target, b.channel)
	if errors.Is(err, ErrDegenerateObservation) {
		b.logger.Warn("Observation has no valid pixels, treating cost as infinite")
		return math.Inf(1), nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s fitter: %w", b.method, err)
	}
	return c, nil
}

func (b *base) report(loop int, cost float64, params ParamVector) {
	b.logger.Info("Loop complete", "loop", loop, "cost", cost, "renders", b.renders)
	if b.onProgress != nil {
		b.onProgress(Progress{
			Method:  b.method,
			Loop:    loop,
			Cost:    cost,
			Params:  params.Clone(),
			Renders: b.renders,
		})
	}
}

func (b *base) finish(params ParamVector) {
	b.state = stateDone
	b.result = params.Clone()
	b.logger.Info("Fit finished", "renders", b.renders)
	if b.onFit != nil {
		b.onFit(b.result.Clone())
	}
}

package fit

import (
	"context"
	"errors"
	"math/rand"
)

// syntheticRenderer answers every request with a uniform observation whose
// feature value is computed from the parameters. It doubles as its own event
// loop and delivers replies FIFO, or in random order when shuffle is set.
type syntheticRenderer struct {
	rows, cols int
	feature    func(p ParamVector) float64
	valid      func(p ParamVector) bool

	shuffle *rand.Rand
	drop    bool
	fail    error

	queue     []pendingRequest
	requested []ParamVector
}

type pendingRequest struct {
	params ParamVector
	done   Completion
}

func newSyntheticRenderer(feature func(p ParamVector) float64) *syntheticRenderer {
	return &syntheticRenderer{rows: 2, cols: 3, feature: feature}
}

func (r *syntheticRenderer) RequestImage(params ParamVector, done Completion) {
	r.requested = append(r.requested, params)
	if r.drop {
		return
	}
	r.queue = append(r.queue, pendingRequest{params: params, done: done})
}

func (r *syntheticRenderer) Run(ctx context.Context) error {
	for len(r.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.fail != nil {
			return r.fail
		}
		i := 0
		if r.shuffle != nil {
			i = r.shuffle.Intn(len(r.queue))
		}
		req := r.queue[i]
		r.queue = append(r.queue[:i], r.queue[i+1:]...)
		if err := req.done(r.observe(req.params)); err != nil {
			return err
		}
	}
	return nil
}

func (r *syntheticRenderer) observe(p ParamVector) *Observation {
	obs := NewObservation(r.rows, r.cols, 2)
	valid := r.valid == nil || r.valid(p)
	v := float32(r.feature(p))
	for i := 0; i < obs.Pixels(); i++ {
		obs.Set(i, 0, v)
		if valid {
			obs.Set(i, 1, 1)
		}
	}
	return obs
}

func (r *syntheticRenderer) render(_ context.Context, p ParamVector) (*Observation, error) {
	if r.fail != nil {
		return nil, r.fail
	}
	return r.observe(p), nil
}

func (r *syntheticRenderer) target(v float64) *Target {
	return ConstantTarget(r.rows, r.cols, v)
}

// uniformObservation returns a fully valid observation filled with v
func uniformObservation(rows, cols int, v float32) *Observation {
	obs := NewObservation(rows, cols, 2)
	for i := 0; i < obs.Pixels(); i++ {
		obs.Set(i, 0, v)
		obs.Set(i, 1, 1)
	}
	return obs
}

// constantUniform always returns the same draw
type constantUniform float64

func (c constantUniform) Float64() float64 { return float64(c) }

var errRenderFailed = errors.New("render failed")

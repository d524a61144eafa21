package fit

import "context"

// Completion receives the observation for one render request.
// A non-nil error stops the renderer's event loop.
type Completion func(obs *Observation) error

// Renderer asynchronously turns a parameter vector into an observation.
// Implementations must call done exactly once per request, on the control
// thread that drives the fitter.
type Renderer interface {
	RequestImage(params ParamVector, done Completion)
}

// EventLoop drives a Renderer until no request is pending
type EventLoop interface {
	Run(ctx context.Context) error
}

// RenderFunc renders synchronously; used by the global optimization pipeline
type RenderFunc func(ctx context.Context, params ParamVector) (*Observation, error)

package fit

import "context"

// Run starts f and drives loop until no render is pending.
// Returns the fitted vector, the loop's error on renderer failure or
// cancellation, or a protocol violation wrapping ErrStalled when the renderer
// drained before the fitter finished.
func Run(ctx context.Context, f Fitter, loop EventLoop) (ParamVector, error) {
	if err := f.Start(); err != nil {
		return ParamVector{}, err
	}
	if err := loop.Run(ctx); err != nil {
		return ParamVector{}, err
	}

	result, ok := f.Result()
	if !ok {
		return ParamVector{}, &ProtocolViolationError{
			Reason: "no pending render left to advance the fit",
			Err:    ErrStalled,
		}
	}
	return result, nil
}

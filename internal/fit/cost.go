package fit

import "fmt"

// MaskedMSE computes the mean squared error between one feature channel of an
// observation and the target, restricted to pixels the renderer drew.
// A negative channel selects the first feature channel.
func MaskedMSE(obs *Observation, target *Target, channel int) (float64, error) {
	if obs.Rows != target.Rows || obs.Cols != target.Cols {
		return 0, fmt.Errorf("%w: observation %dx%d, target %dx%d",
			ErrShapeMismatch, obs.Rows, obs.Cols, target.Rows, target.Cols)
	}
	if channel < 0 {
		channel = 0
	}
	if obs.Channels < 2 || channel >= obs.Channels-1 {
		return 0, fmt.Errorf("feature channel %d out of range for %d channels", channel, obs.Channels)
	}

	var sum float64
	var count int
	for i := 0; i < obs.Pixels(); i++ {
		if !obs.Valid(i) {
			continue
		}
		d := float64(obs.At(i, channel)) - target.Values[i]
		sum += d * d
		count++
	}

	if count == 0 {
		return 0, ErrDegenerateObservation
	}
	return sum / float64(count), nil
}

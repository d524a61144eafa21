package fit

import "fmt"

// Observation is a rendered feature buffer. Pixels are stored row-major with
// row 0 at the bottom of the viewport, Channels values per pixel, and the last
// channel is the validity flag.
type Observation struct {
	Rows     int
	Cols     int
	Channels int
	Pix      []float32
}

// NewObservation allocates an empty observation; every pixel starts invalid
func NewObservation(rows, cols, channels int) *Observation {
	return &Observation{
		Rows:     rows,
		Cols:     cols,
		Channels: channels,
		Pix:      make([]float32, rows*cols*channels),
	}
}

// Pixels returns the number of pixels
func (o *Observation) Pixels() int {
	return o.Rows * o.Cols
}

// At returns channel ch of pixel i
func (o *Observation) At(i, ch int) float32 {
	return o.Pix[i*o.Channels+ch]
}

// Set writes channel ch of pixel i
func (o *Observation) Set(i, ch int, v float32) {
	o.Pix[i*o.Channels+ch] = v
}

// Valid reports whether the renderer drew pixel i
func (o *Observation) Valid(i int) bool {
	return o.Pix[i*o.Channels+o.Channels-1] != 0
}

// ValidCount returns how many pixels carry a nonzero validity flag
func (o *Observation) ValidCount() int {
	n := 0
	for i := 0; i < o.Pixels(); i++ {
		if o.Valid(i) {
			n++
		}
	}
	return n
}

// Target is the single-channel feature image a fit is matched against.
// It uses the same bottom-up row order as Observation.
type Target struct {
	Rows   int
	Cols   int
	Values []float64
}

// NewTarget wraps values as a rows x cols target
func NewTarget(rows, cols int, values []float64) (*Target, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("target dimensions must be positive, got %dx%d", rows, cols)
	}
	if len(values) != rows*cols {
		return nil, fmt.Errorf("%w: target has %d values for %dx%d", ErrShapeMismatch, len(values), rows, cols)
	}
	return &Target{Rows: rows, Cols: cols, Values: values}, nil
}

// ConstantTarget returns a target filled with v
func ConstantTarget(rows, cols int, v float64) *Target {
	values := make([]float64, rows*cols)
	for i := range values {
		values[i] = v
	}
	return &Target{Rows: rows, Cols: cols, Values: values}
}

// TargetFromObservation copies one feature channel of obs into a target.
// Pixels the renderer did not draw become zero.
func TargetFromObservation(obs *Observation, channel int) *Target {
	t := &Target{Rows: obs.Rows, Cols: obs.Cols, Values: make([]float64, obs.Pixels())}
	for i := range t.Values {
		if obs.Valid(i) {
			t.Values[i] = float64(obs.At(i, channel))
		}
	}
	return t
}

package fit

import "fmt"

const (
	// AmbientComponents is the number of ambient light parameters
	AmbientComponents = 1
	// DirectionComponents is the number of directional light parameters
	DirectionComponents = 3
	// LightComponents is the number of lighting parameters appended after the coefficients
	LightComponents = AmbientComponents + DirectionComponents

	// DefaultAmbient is the ambient light of a freshly constructed face
	DefaultAmbient = 0.5

	ambientIndex = -4
)

// ParamVector holds every tunable quantity of a fitting run:
// shape coefficients, ambient light and a directional light.
type ParamVector struct {
	Coefficients []float64  `json:"coefficients"`
	Ambient      float64    `json:"ambient"`
	Directed     [3]float64 `json:"directed"`
}

// DefaultParamVector returns zero coefficients, no directed light and ambient 0.5
func DefaultParamVector(dims int) ParamVector {
	return ParamVector{
		Coefficients: make([]float64, dims),
		Ambient:      DefaultAmbient,
	}
}

// Dim returns the number of shape coefficients
func (p ParamVector) Dim() int {
	return len(p.Coefficients)
}

// Len returns the length of the flat layout (coefficients + lights)
func (p ParamVector) Len() int {
	return len(p.Coefficients) + LightComponents
}

// Clone returns a deep copy
func (p ParamVector) Clone() ParamVector {
	c := p
	c.Coefficients = append([]float64(nil), p.Coefficients...)
	return c
}

// Conform returns a copy with exactly dims coefficients.
// Extra coefficients are dropped, missing ones are zero; lights are kept.
func (p ParamVector) Conform(dims int) ParamVector {
	c := p
	c.Coefficients = make([]float64, dims)
	copy(c.Coefficients, p.Coefficients)
	return c
}

// Array encodes the vector as coefficients..., ambient, dx, dy, dz
func (p ParamVector) Array() []float64 {
	out := make([]float64, 0, p.Len())
	out = append(out, p.Coefficients...)
	out = append(out, p.Ambient)
	out = append(out, p.Directed[:]...)
	return out
}

// ParamVectorFromArray decodes the flat layout produced by Array
func ParamVectorFromArray(data []float64) (ParamVector, error) {
	if len(data) < LightComponents {
		return ParamVector{}, fmt.Errorf("parameter array too short: %d values, need at least %d", len(data), LightComponents)
	}
	dims := len(data) - LightComponents
	p := ParamVector{
		Coefficients: append([]float64(nil), data[:dims]...),
		Ambient:      data[dims],
	}
	copy(p.Directed[:], data[dims+1:])
	return p, nil
}

// Component reads a parameter using the signed index convention:
// 0..dims-1 are shape coefficients, -4 is ambient, -3..-1 are the directed light.
func (p ParamVector) Component(i int) float64 {
	switch {
	case i >= 0:
		return p.Coefficients[i]
	case i == ambientIndex:
		return p.Ambient
	default:
		return p.Directed[i+DirectionComponents]
	}
}

// SetComponent writes a parameter using the same convention as Component
func (p *ParamVector) SetComponent(i int, v float64) {
	switch {
	case i >= 0:
		p.Coefficients[i] = v
	case i == ambientIndex:
		p.Ambient = v
	default:
		p.Directed[i+DirectionComponents] = v
	}
}

// IsLight reports whether a signed component index addresses a lighting term
func IsLight(i int) bool {
	return i < 0
}

// slot maps a signed component index to its position in the flat layout
func slot(i, dims int) int {
	if i >= 0 {
		return i
	}
	return dims + LightComponents + i
}

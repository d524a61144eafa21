package face

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidModel is wrapped by every model validation error
var ErrInvalidModel = errors.New("invalid face model")

// ModelData is an immutable linear shape model: a mean shape plus principal
// components scaled by their standard deviations. One value is shared by all
// renderers of a process.
type ModelData struct {
	mean       *mat.VecDense
	components *mat.Dense
	deviations []float64
	triangles  [][3]int
}

// NewModelData validates and wraps a shape model.
// mean holds x,y,z per vertex; components has one column per shape coefficient.
func NewModelData(mean []float64, components *mat.Dense, deviations []float64, triangles [][3]int) (*ModelData, error) {
	if len(mean) == 0 || len(mean)%3 != 0 {
		return nil, fmt.Errorf("%w: mean shape size must be a positive multiple of three, got %d", ErrInvalidModel, len(mean))
	}
	rows, cols := 0, 0
	if components != nil {
		rows, cols = components.Dims()
	}
	if cols > 0 && rows != len(mean) {
		return nil, fmt.Errorf("%w: components have %d rows, mean shape has %d values", ErrInvalidModel, rows, len(mean))
	}
	if len(deviations) != cols {
		return nil, fmt.Errorf("%w: %d deviations for %d components", ErrInvalidModel, len(deviations), cols)
	}
	for i, d := range deviations {
		if d <= 0 || math.IsInf(d, 0) || math.IsNaN(d) {
			return nil, fmt.Errorf("%w: deviation %d must be positive, got %v", ErrInvalidModel, i, d)
		}
	}
	vertices := len(mean) / 3
	for i, t := range triangles {
		for _, v := range t {
			if v < 0 || v >= vertices {
				return nil, fmt.Errorf("%w: triangle %d references vertex %d of %d", ErrInvalidModel, i, v, vertices)
			}
		}
	}

	m := &ModelData{
		mean:       mat.NewVecDense(len(mean), append([]float64(nil), mean...)),
		deviations: append([]float64(nil), deviations...),
		triangles:  append([][3]int(nil), triangles...),
	}
	if cols > 0 {
		m.components = mat.DenseCopyOf(components)
	}
	return m, nil
}

// Dimensions returns the number of shape coefficients
func (m *ModelData) Dimensions() int {
	return len(m.deviations)
}

// VertexCount returns the number of mesh vertices
func (m *ModelData) VertexCount() int {
	return m.mean.Len() / 3
}

// Triangles returns the mesh; callers must not modify it
func (m *ModelData) Triangles() [][3]int {
	return m.triangles
}

// Deviations returns a copy of the per-component standard deviations
func (m *ModelData) Deviations() []float64 {
	return append([]float64(nil), m.deviations...)
}

// Shape returns the raw vertex coordinates mean + PC * (coefficients * deviations).
// Missing coefficients are zero and extra ones are ignored.
func (m *ModelData) Shape(coefficients []float64) []float64 {
	shape := mat.NewVecDense(m.mean.Len(), nil)
	if k := m.Dimensions(); k > 0 {
		w := mat.NewVecDense(k, nil)
		for i := 0; i < k && i < len(coefficients); i++ {
			w.SetVec(i, coefficients[i]*m.deviations[i])
		}
		shape.MulVec(m.components, w)
	}
	shape.AddVec(shape, m.mean)
	return shape.RawVector().Data
}

// Vertices synthesizes the normalized mesh for a coefficient vector.
// The mesh is scaled uniformly into the unit cube and centered on the origin,
// so it fits the [-0.5, 0.5] orthographic view.
func (m *ModelData) Vertices(coefficients []float64) []mgl32.Vec3 {
	return normalize(m.Shape(coefficients))
}

// Multipliers returns floor(scale * sqrt(deviation / smallest deviation)) per
// component, a step count that grows with the component's spread.
func (m *ModelData) Multipliers(scale float64) []int {
	out := make([]int, len(m.deviations))
	if len(m.deviations) == 0 {
		return out
	}
	smallest := m.deviations[0]
	for _, d := range m.deviations[1:] {
		smallest = math.Min(smallest, d)
	}
	for i, d := range m.deviations {
		out[i] = int(math.Floor(scale * math.Sqrt(d/smallest)))
	}
	return out
}

func normalize(shape []float64) []mgl32.Vec3 {
	lo := math.Inf(1)
	for _, v := range shape {
		lo = math.Min(lo, v)
	}
	hi := math.Inf(-1)
	for _, v := range shape {
		hi = math.Max(hi, v-lo)
	}
	scale := 1.0
	if hi > 0 {
		scale = 1 / hi
	}

	n := len(shape) / 3
	out := make([]mgl32.Vec3, n)
	var centroid [3]float64
	for i := 0; i < n; i++ {
		for a := 0; a < 3; a++ {
			v := (shape[3*i+a] - lo) * scale
			out[i][a] = float32(v)
			centroid[a] += v
		}
	}
	for a := range centroid {
		centroid[a] /= float64(n)
	}
	c := mgl32.Vec3{float32(centroid[0]), float32(centroid[1]), float32(centroid[2])}
	for i := range out {
		out[i] = out[i].Sub(c)
	}
	return out
}

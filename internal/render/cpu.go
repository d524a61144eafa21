package render

import (
	"context"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/cwbudde/facefit/internal/face"
	"github.com/cwbudde/facefit/internal/fit"
)

// Channels is the channel count of rendered observations: shading, validity
const Channels = 2

// viewHalfExtent bounds the orthographic view volume on every axis
const viewHalfExtent = 0.5

// CPURenderer rasterizes the face mesh in software with an orthographic
// camera looking down -z and a depth buffer.
type CPURenderer struct {
	model *face.ModelData
	rows  int
	cols  int
}

// NewCPURenderer creates a software renderer producing rows x cols observations
func NewCPURenderer(model *face.ModelData, rows, cols int) (*CPURenderer, error) {
	if model == nil {
		return nil, fmt.Errorf("cpu renderer: model is required")
	}
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("cpu renderer: size must be positive, got %dx%d", rows, cols)
	}
	return &CPURenderer{model: model, rows: rows, cols: cols}, nil
}

// Size returns the observation size
func (r *CPURenderer) Size() (rows, cols int) {
	return r.rows, r.cols
}

// Render draws the face for params. Channel 0 holds Gouraud-interpolated
// shading, channel 1 is 1 wherever a triangle was drawn.
func (r *CPURenderer) Render(ctx context.Context, params fit.ParamVector) (*fit.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vertices := r.model.Vertices(params.Coefficients)
	normals := face.Normals(vertices, r.model.Triangles())
	shade := face.Shade(normals, params.Ambient, params.Directed)

	obs := fit.NewObservation(r.rows, r.cols, Channels)
	depth := make([]float32, r.rows*r.cols)
	for i := range depth {
		depth[i] = float32(math.Inf(-1))
	}

	screen := make([]mgl32.Vec3, len(vertices))
	for i, v := range vertices {
		screen[i] = mgl32.Vec3{
			(v.X() + viewHalfExtent) * float32(r.cols),
			(v.Y() + viewHalfExtent) * float32(r.rows),
			v.Z(),
		}
	}
	for _, t := range r.model.Triangles() {
		r.rasterize(obs, depth, screen, shade, t)
	}
	return obs, nil
}

// rasterize fills one triangle, keeping the fragment nearest the viewer
func (r *CPURenderer) rasterize(obs *fit.Observation, depth []float32, screen []mgl32.Vec3, shade []float32, t [3]int) {
	a, b, c := screen[t[0]], screen[t[1]], screen[t[2]]
	area := edge(a, b, c.X(), c.Y())
	if area == 0 {
		return
	}

	minX := max(0, int(math.Floor(float64(min(a.X(), b.X(), c.X())))))
	maxX := min(r.cols-1, int(math.Ceil(float64(max(a.X(), b.X(), c.X())))))
	minY := max(0, int(math.Floor(float64(min(a.Y(), b.Y(), c.Y())))))
	maxY := min(r.rows-1, int(math.Ceil(float64(max(a.Y(), b.Y(), c.Y())))))

	for y := minY; y <= maxY; y++ {
		py := float32(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float32(x) + 0.5

			w0 := edge(b, c, px, py) / area
			w1 := edge(c, a, px, py) / area
			w2 := edge(a, b, px, py) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}

			z := w0*a.Z() + w1*b.Z() + w2*c.Z()
			if z < -viewHalfExtent || z > viewHalfExtent {
				continue
			}
			i := y*r.cols + x
			if z <= depth[i] {
				continue
			}
			depth[i] = z
			obs.Set(i, 0, w0*shade[t[0]]+w1*shade[t[1]]+w2*shade[t[2]])
			obs.Set(i, 1, 1)
		}
	}
}

// edge is twice the signed area of (a, b, p)
func edge(a, b mgl32.Vec3, px, py float32) float32 {
	return (b.X()-a.X())*(py-a.Y()) - (b.Y()-a.Y())*(px-a.X())
}

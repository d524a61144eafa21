package face

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Normals computes area-weighted vertex normals.
// Vertices that belong to no triangle keep a zero normal.
func Normals(vertices []mgl32.Vec3, triangles [][3]int) []mgl32.Vec3 {
	normals := make([]mgl32.Vec3, len(vertices))
	for _, t := range triangles {
		a, b, c := vertices[t[0]], vertices[t[1]], vertices[t[2]]
		n := b.Sub(a).Cross(c.Sub(a))
		for _, v := range t {
			normals[v] = normals[v].Add(n)
		}
	}
	for i, n := range normals {
		if n.Len() > 0 {
			normals[i] = n.Normalize()
		}
	}
	return normals
}

// LightDirection normalizes a directed light vector; ok is false for a zero vector
func LightDirection(directed [3]float64) (dir mgl32.Vec3, ok bool) {
	d := mgl32.Vec3{float32(directed[0]), float32(directed[1]), float32(directed[2])}
	if d.Len() == 0 {
		return mgl32.Vec3{}, false
	}
	return d.Normalize(), true
}

// Shade evaluates ambient plus Lambert lighting per vertex, clamped to [0, 1].
// The directed light's magnitude is ignored; a zero direction leaves ambient only.
func Shade(normals []mgl32.Vec3, ambient float64, directed [3]float64) []float32 {
	dir, lit := LightDirection(directed)
	out := make([]float32, len(normals))
	for i, n := range normals {
		v := float32(ambient)
		if lit {
			v += max(0, n.Dot(dir))
		}
		out[i] = mgl32.Clamp(v, 0, 1)
	}
	return out
}

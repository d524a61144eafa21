package face

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SyntheticModel builds a face-like ellipsoid with dims smooth deformation
// modes. resolution is the number of latitude bands; longitude uses twice as many.
// Deviations shrink with the mode index like a real PCA spectrum.
func SyntheticModel(dims, resolution int) (*ModelData, error) {
	if dims < 0 {
		return nil, fmt.Errorf("synthetic model: dimensions cannot be negative, got %d", dims)
	}
	if resolution < 2 {
		return nil, fmt.Errorf("synthetic model: resolution must be at least 2, got %d", resolution)
	}

	bands, segments := resolution, 2*resolution
	type point struct{ theta, phi float64 }
	points := []point{{theta: 0}}
	for i := 1; i < bands; i++ {
		for j := 0; j < segments; j++ {
			points = append(points, point{
				theta: math.Pi * float64(i) / float64(bands),
				phi:   2 * math.Pi * float64(j) / float64(segments),
			})
		}
	}
	points = append(points, point{theta: math.Pi})
	n := len(points)

	// ellipsoid radii, flattened front to back
	radii := [3]float64{0.8, 1.0, 0.6}
	mean := make([]float64, 3*n)
	radial := make([][3]float64, n)
	for i, p := range points {
		u := [3]float64{
			math.Sin(p.theta) * math.Sin(p.phi),
			math.Cos(p.theta),
			math.Sin(p.theta) * math.Cos(p.phi),
		}
		radial[i] = u
		for a := 0; a < 3; a++ {
			mean[3*i+a] = radii[a] * u[a]
		}
	}

	var components *mat.Dense
	deviations := make([]float64, dims)
	if dims > 0 {
		components = mat.NewDense(3*n, dims, nil)
		for k := 0; k < dims; k++ {
			deviations[k] = 0.05 / float64(k+1)
			freq := float64(k/2 + 1)
			for i, p := range points {
				var g float64
				if k%2 == 0 {
					g = math.Cos(freq * p.theta)
				} else {
					g = math.Sin(freq*p.theta) * math.Cos(freq*p.phi)
				}
				for a := 0; a < 3; a++ {
					components.Set(3*i+a, k, g*radial[i][a])
				}
			}
		}
	}

	// counter-clockwise seen from outside, so normals point outward
	var triangles [][3]int
	ring := func(i, j int) int { return 1 + (i-1)*segments + j%segments }
	south := n - 1
	for j := 0; j < segments; j++ {
		triangles = append(triangles, [3]int{0, ring(1, j), ring(1, j+1)})
		triangles = append(triangles, [3]int{south, ring(bands-1, j+1), ring(bands-1, j)})
	}
	for i := 1; i < bands-1; i++ {
		for j := 0; j < segments; j++ {
			a, b := ring(i, j), ring(i, j+1)
			c, d := ring(i+1, j), ring(i+1, j+1)
			triangles = append(triangles, [3]int{a, d, b}, [3]int{a, c, d})
		}
	}

	return NewModelData(mean, components, deviations, triangles)
}

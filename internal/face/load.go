package face

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

// modelFile is the on-disk JSON form of a model.
// Components are stored one per row, each with 3*vertices values.
type modelFile struct {
	Mean       []float64   `json:"mean"`
	Components [][]float64 `json:"components"`
	Deviations []float64   `json:"deviations"`
	Triangles  [][3]int    `json:"triangles"`
}

// LoadModel reads a JSON model file
func LoadModel(path string) (*ModelData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()

	m, err := ReadModel(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ReadModel decodes a JSON model
func ReadModel(r io.Reader) (*ModelData, error) {
	var mf modelFile
	if err := json.NewDecoder(r).Decode(&mf); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}

	var components *mat.Dense
	if k := len(mf.Components); k > 0 && len(mf.Mean) > 0 {
		components = mat.NewDense(len(mf.Mean), k, nil)
		for c, col := range mf.Components {
			if len(col) != len(mf.Mean) {
				return nil, fmt.Errorf("%w: component %d has %d values, mean shape has %d", ErrInvalidModel, c, len(col), len(mf.Mean))
			}
			components.SetCol(c, col)
		}
	}
	return NewModelData(mf.Mean, components, mf.Deviations, mf.Triangles)
}

// SaveModel writes m as JSON, creating parent directories
func SaveModel(path string, m *ModelData) error {
	mf := modelFile{
		Mean:       append([]float64(nil), m.mean.RawVector().Data...),
		Deviations: m.Deviations(),
		Triangles:  m.triangles,
	}
	for c := 0; c < m.Dimensions(); c++ {
		mf.Components = append(mf.Components, mat.Col(nil, c, m.components))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	data, err := json.Marshal(mf)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

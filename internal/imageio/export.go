package imageio

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/cwbudde/facefit/internal/fit"
)

var (
	background = colorful.Color{R: 1, G: 1, B: 1}
	hot        = colorful.Color{R: 0.85, G: 0.1, B: 0.1}
)

// ObservationImage renders one feature channel as grayscale.
// Pixels the renderer did not draw are white; rows are flipped so the
// bottom-up observation reads upright.
func ObservationImage(obs *fit.Observation, channel int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, obs.Cols, obs.Rows))
	for r := 0; r < obs.Rows; r++ {
		y := obs.Rows - 1 - r
		for x := 0; x < obs.Cols; x++ {
			i := r*obs.Cols + x
			if !obs.Valid(i) {
				img.Set(x, y, color.NRGBA{255, 255, 255, 255})
				continue
			}
			v := uint8(math.Round(clamp01(float64(obs.At(i, channel))) * 255))
			img.Set(x, y, color.NRGBA{v, v, v, 255})
		}
	}
	return img
}

// DiffImage shades each drawn pixel from white (match) to red (error of 1 or more)
func DiffImage(obs *fit.Observation, target *fit.Target, channel int) (*image.NRGBA, error) {
	if obs.Rows != target.Rows || obs.Cols != target.Cols {
		return nil, fmt.Errorf("%w: observation %dx%d, target %dx%d",
			fit.ErrShapeMismatch, obs.Rows, obs.Cols, target.Rows, target.Cols)
	}
	img := image.NewNRGBA(image.Rect(0, 0, obs.Cols, obs.Rows))
	for r := 0; r < obs.Rows; r++ {
		y := obs.Rows - 1 - r
		for x := 0; x < obs.Cols; x++ {
			i := r*obs.Cols + x
			c := background
			if obs.Valid(i) {
				d := math.Abs(float64(obs.At(i, channel)) - target.Values[i])
				c = background.BlendLab(hot, clamp01(d)).Clamped()
			}
			cr, cg, cb := c.RGB255()
			img.Set(x, y, color.NRGBA{cr, cg, cb, 255})
		}
	}
	return img, nil
}

// WriteObservationPNG encodes ObservationImage to w
func WriteObservationPNG(w io.Writer, obs *fit.Observation, channel int) error {
	return png.Encode(w, ObservationImage(obs, channel))
}

// WriteDiffPNG encodes DiffImage to w
func WriteDiffPNG(w io.Writer, obs *fit.Observation, target *fit.Target, channel int) error {
	img, err := DiffImage(obs, target, channel)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// SaveObservation writes ObservationImage as a PNG file
func SaveObservation(path string, obs *fit.Observation, channel int) error {
	return savePNG(path, ObservationImage(obs, channel))
}

// SaveDiff writes DiffImage as a PNG file
func SaveDiff(path string, obs *fit.Observation, target *fit.Target, channel int) error {
	img, err := DiffImage(obs, target, channel)
	if err != nil {
		return err
	}
	return savePNG(path, img)
}

func savePNG(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

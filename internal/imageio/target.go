package imageio

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"

	"github.com/cwbudde/facefit/internal/fit"
)

// LoadTarget decodes a PNG or JPEG and converts it to a rows x cols target
func LoadTarget(path string, rows, cols int) (*fit.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open target: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode target %s: %w", path, err)
	}
	return TargetFromImage(img, rows, cols)
}

// TargetFromImage rescales img to rows x cols and stores the CIE L* lightness
// of each pixel in [0, 1]. The image's top row becomes the target's last row.
func TargetFromImage(img image.Image, rows, cols int) (*fit.Target, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("target size must be positive, got %dx%d", rows, cols)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("target image is empty")
	}

	scaled := image.NewRGBA(image.Rect(0, 0, cols, rows))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	values := make([]float64, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			c, ok := colorful.MakeColor(scaled.At(x, y))
			if !ok {
				// fully transparent
				continue
			}
			l, _, _ := c.Lab()
			values[(rows-1-y)*cols+x] = l
		}
	}
	return fit.NewTarget(rows, cols, values)
}

package render

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/facefit/internal/fit"
)

const headerSize = 12

// ErrMalformedObservation is returned when an encoded observation cannot be decoded
var ErrMalformedObservation = errors.New("malformed observation payload")

// EncodeObservation packs an observation as a little-endian rows, cols,
// channels header (uint32 each) followed by the float32 pixels.
func EncodeObservation(obs *fit.Observation) []byte {
	buf := make([]byte, headerSize+4*len(obs.Pix))
	binary.LittleEndian.PutUint32(buf[0:], uint32(obs.Rows))
	binary.LittleEndian.PutUint32(buf[4:], uint32(obs.Cols))
	binary.LittleEndian.PutUint32(buf[8:], uint32(obs.Channels))
	for i, v := range obs.Pix {
		binary.LittleEndian.PutUint32(buf[headerSize+4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeObservation reverses EncodeObservation
func DecodeObservation(data []byte) (*fit.Observation, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrMalformedObservation, len(data))
	}
	rows := int(binary.LittleEndian.Uint32(data[0:]))
	cols := int(binary.LittleEndian.Uint32(data[4:]))
	channels := int(binary.LittleEndian.Uint32(data[8:]))
	if rows <= 0 || cols <= 0 || channels < 2 {
		return nil, fmt.Errorf("%w: invalid shape %dx%dx%d", ErrMalformedObservation, rows, cols, channels)
	}
	// divide the payload instead of multiplying the header, which can overflow
	payload := len(data) - headerSize
	n := payload / 4
	if payload%4 != 0 || n%channels != 0 || (n/channels)%cols != 0 || n/channels/cols != rows {
		return nil, fmt.Errorf("%w: %d pixel bytes do not match shape %dx%dx%d",
			ErrMalformedObservation, payload, rows, cols, channels)
	}

	obs := fit.NewObservation(rows, cols, channels)
	for i := range obs.Pix {
		obs.Pix[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[headerSize+4*i:]))
	}
	return obs, nil
}

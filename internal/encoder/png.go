package encoder

import (
	"bytes"
	"image"
	"image/png"
)

// PNGEncoder encodes previews of images with transparency.
type PNGEncoder struct{}

func (e *PNGEncoder) Format() string      { return "png" }
func (e *PNGEncoder) ContentType() string { return "image/png" }

func (e *PNGEncoder) Encode(img image.Image, _ int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(128 * 1024)

	// Previews are produced per request; favour speed over size.
	enc := &png.Encoder{CompressionLevel: png.BestSpeed}
	err := enc.Encode(&buf, img)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

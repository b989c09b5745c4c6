package encoder

import (
	"bytes"
	"image"
	"image/jpeg"
)

// DefaultQuality is used when a caller passes a quality outside 1-100.
const DefaultQuality = 82

// JPEGEncoder encodes opaque previews.
type JPEGEncoder struct{}

func (e *JPEGEncoder) Format() string      { return "jpeg" }
func (e *JPEGEncoder) ContentType() string { return "image/jpeg" }

func (e *JPEGEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	buf.Grow(64 * 1024)

	err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

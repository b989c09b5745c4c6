// Package encoder renders preview thumbnails of media files for the
// duplicate review UI.
package encoder

import (
	"image"
)

// Encoder encodes an image to a specific format.
type Encoder interface {
	// Format returns the output format name ("jpeg" or "png").
	Format() string

	// ContentType is the MIME type served with the encoded bytes.
	ContentType() string

	// Encode converts the image to bytes at the given quality (1-100).
	// Lossless encoders ignore quality.
	Encode(img image.Image, quality int) ([]byte, error)
}

package encoder

import (
	"fmt"
	"image"

	"github.com/AnyUserName/mediadup/internal/hasher"
	"github.com/disintegration/imaging"
)

// MaxPreviewWidth caps requested thumbnail widths.
const MaxPreviewWidth = 1920

// Preview is an encoded thumbnail ready to be served.
type Preview struct {
	Data        []byte
	ContentType string
	ETag        string
	Width       int
	Height      int
}

// Thumbnail scales img down to width, keeping its aspect ratio. Images
// already narrower than width are returned as is.
func Thumbnail(img image.Image, width int) image.Image {
	b := img.Bounds()
	origW, origH := b.Dx(), b.Dy()
	if width <= 0 || width >= origW || origW == 0 {
		return img
	}
	h := int(float64(origH) * float64(width) / float64(origW))
	if h < 1 {
		h = 1
	}
	return imaging.Resize(img, width, h, imaging.Lanczos)
}

// Render scales img to width and encodes it with the encoder the registry
// picks for it.
func (r *Registry) Render(img image.Image, width, quality int) (Preview, error) {
	if width > MaxPreviewWidth {
		width = MaxPreviewWidth
	}
	thumb := Thumbnail(img, width)
	enc := r.For(thumb)

	data, err := enc.Encode(thumb, quality)
	if err != nil {
		return Preview{}, fmt.Errorf("encode %s preview: %w", enc.Format(), err)
	}
	b := thumb.Bounds()
	return Preview{
		Data:        data,
		ContentType: enc.ContentType(),
		ETag:        hasher.ETag(data),
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}

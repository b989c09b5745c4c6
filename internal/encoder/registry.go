package encoder

import (
	"image"
)

// Registry holds the preview encoders by format name.
type Registry struct {
	encoders map[string]Encoder
}

// NewRegistry creates a registry with the built-in encoders.
func NewRegistry() *Registry {
	r := &Registry{
		encoders: make(map[string]Encoder),
	}
	for _, enc := range []Encoder{&JPEGEncoder{}, &PNGEncoder{}} {
		r.encoders[enc.Format()] = enc
	}
	return r
}

// For picks the encoder for img: PNG when it has transparency, JPEG
// otherwise.
func (r *Registry) For(img image.Image) Encoder {
	if HasAlpha(img) {
		return r.encoders["png"]
	}
	return r.encoders["jpeg"]
}

// HasAlpha reports whether any pixel of img is not fully opaque.
func HasAlpha(img image.Image) bool {
	switch src := img.(type) {
	case *image.NRGBA:
		for i := 3; i < len(src.Pix); i += 4 {
			if src.Pix[i] < 255 {
				return true
			}
		}
		return false
	case *image.YCbCr, *image.Gray, *image.Gray16, *image.CMYK:
		return false
	case interface{ Opaque() bool }:
		return !src.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a < 0xffff {
				return true
			}
		}
	}
	return false
}

package fingerprint

import (
	"context"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/bep/imagemeta"
	"github.com/disintegration/imaging"
	"github.com/spf13/afero"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ExtractImage decodes the image at path, honouring EXIF orientation, and
// fingerprints it. The EXIF capture time is attached when present.
func (e *Extractor) ExtractImage(ctx context.Context, path string) (Features, error) {
	if err := ctx.Err(); err != nil {
		return Features{}, err
	}
	img, taken, err := e.decodeImage(path)
	if err != nil {
		return Features{}, err
	}

	fp, err := Compute(img, e.opts.HashSize)
	if err != nil {
		return Features{}, fmt.Errorf("hash %s: %w", filepath.Base(path), err)
	}

	b := img.Bounds()
	return Features{
		Width:       b.Dx(),
		Height:      b.Dy(),
		Fingerprint: fp,
		TakenAt:     taken,
	}, nil
}

func (e *Extractor) decodeImage(path string) (image.Image, *time.Time, error) {
	f, err := e.fs.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	taken := takenAt(f, path)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, nil, fmt.Errorf("rewind %s: %w", filepath.Base(path), err)
	}

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, taken, nil
}

// exifFormats lists the containers imagemeta can read metadata from.
var exifFormats = map[string]imagemeta.ImageFormat{
	".jpg":  imagemeta.JPEG,
	".jpeg": imagemeta.JPEG,
	".png":  imagemeta.PNG,
	".tif":  imagemeta.TIFF,
	".tiff": imagemeta.TIFF,
	".webp": imagemeta.WebP,
}

const exifDateLayout = "2006:01:02 15:04:05"

// takenAt reads EXIF DateTimeOriginal. Metadata is best effort: any
// failure simply yields nil.
func takenAt(r afero.File, path string) *time.Time {
	format, ok := exifFormats[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil
	}

	var taken *time.Time
	_, err := imagemeta.Decode(imagemeta.Options{
		R:           r,
		ImageFormat: format,
		Sources:     imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return ti.Tag == "DateTimeOriginal"
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			switch v := ti.Value.(type) {
			case time.Time:
				taken = &v
			case string:
				if t, err := time.ParseInLocation(exifDateLayout, strings.TrimSpace(v), time.Local); err == nil {
					taken = &t
				}
			}
			return nil
		},
	})
	if err != nil {
		log.Debugf("exif %s: %v", filepath.Base(path), err)
		return nil
	}
	return taken
}

//go:build ignore

// gen_fixtures creates a small media tree with known near-duplicates for
// the E2E smoke test.
// Usage: go run gen_fixtures.go <output_dir>
//
// photo.jpg, copies/photo-small.png and copies/photo-q30.jpg should pair
// with each other at the default threshold; pattern.png should not pair
// with any of them.
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]
	os.MkdirAll(filepath.Join(dir, "copies"), 0o755)

	photo := gradient(400, 225)
	writeJPEG(filepath.Join(dir, "photo.jpg"), photo, 90)

	// Near-duplicates: downscaled and recompressed.
	writeImage(filepath.Join(dir, "copies", "photo-small.png"), imaging.Resize(photo, 160, 90, imaging.Lanczos))
	writeJPEG(filepath.Join(dir, "copies", "photo-q30.jpg"), photo, 30)

	// Unrelated images.
	writeImage(filepath.Join(dir, "pattern.png"), checkers(200, 150, 25))
	writeImage(filepath.Join(dir, "logo.png"), alphaGradient(100, 100))

	// Ignored by the scanner.
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not media\n"), 0o644)

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created 5 media fixtures in %s\n", dir)
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func checkers(w, h, cell int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 30, G: 30, B: 30, A: 255}
			if (x/cell+y/cell)%2 == 0 {
				c = color.NRGBA{R: 240, G: 240, B: 240, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func alphaGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: 220, G: 60, B: 30,
				A: uint8(x * 255 / w),
			})
		}
	}
	return img
}

func writeJPEG(path string, img image.Image, quality int) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		panic(err)
	}
}

func writeImage(path string, img image.Image) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		panic(err)
	}
}

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/AnyUserName/mediadup/internal/media"
)

// Config holds the runtime parameters shared by the scanner, the
// fingerprint extractor and the duplicate engine.
type Config struct {
	DBPath          string
	ImageExtensions map[string]bool
	VideoExtensions map[string]bool

	HashSize      int     // fingerprint grid dimension; HashSize² bits
	MaxFileSizeMB int64   // larger files are skipped with a warning
	FramePosition float64 // representative video frame, fraction of the frame count

	DefaultThreshold int
	MaxThreshold     int

	Workers     int // extraction workers; 1 keeps strict enumeration order
	FFprobePath string
	FFmpegPath  string
	ListenAddr  string
}

// HardMaxThreshold bounds every configurable threshold.
const HardMaxThreshold = 15

// ErrInvalidThreshold is returned for thresholds outside 0..MaxThreshold.
var ErrInvalidThreshold = errors.New("threshold out of range")

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath: filepath.Join("data", "fingerprints.db"),
		ImageExtensions: map[string]bool{
			".jpg":  true,
			".jpeg": true,
			".png":  true,
			".gif":  true,
			".bmp":  true,
			".webp": true,
			".tiff": true,
			".tif":  true,
		},
		VideoExtensions: map[string]bool{
			".mp4":  true,
			".avi":  true,
			".mov":  true,
			".mkv":  true,
			".webm": true,
			".flv":  true,
			".wmv":  true,
		},
		HashSize:         8,
		MaxFileSizeMB:    500,
		FramePosition:    0.5,
		DefaultThreshold: 5,
		MaxThreshold:     HardMaxThreshold,
		Workers:          1,
		FFprobePath:      "ffprobe",
		FFmpegPath:       "ffmpeg",
		ListenAddr:       "127.0.0.1:8000",
	}
}

// Validate checks the parameters for internal consistency.
func (c Config) Validate() error {
	bits := c.HashSize * c.HashSize
	if c.HashSize < 2 || bits&(bits-1) != 0 {
		return fmt.Errorf("hash size %d: %d bits is not a power of two", c.HashSize, bits)
	}
	if c.FramePosition < 0 || c.FramePosition >= 1 {
		return fmt.Errorf("frame position %.2f outside [0, 1)", c.FramePosition)
	}
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("max file size must be positive, got %d MB", c.MaxFileSizeMB)
	}
	if c.MaxThreshold < 0 || c.MaxThreshold > HardMaxThreshold {
		return fmt.Errorf("max threshold %d outside 0..%d", c.MaxThreshold, HardMaxThreshold)
	}
	if c.DefaultThreshold < 0 || c.DefaultThreshold > c.MaxThreshold {
		return fmt.Errorf("default threshold %d outside 0..%d", c.DefaultThreshold, c.MaxThreshold)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// ValidateThreshold rejects thresholds outside 0..MaxThreshold.
func (c Config) ValidateThreshold(t int) error {
	if t < 0 || t > c.MaxThreshold {
		return fmt.Errorf("%w: threshold must be between 0 and %d, got %d", ErrInvalidThreshold, c.MaxThreshold, t)
	}
	return nil
}

// MaxDistance is the bit length of a fingerprint.
func (c Config) MaxDistance() int { return c.HashSize * c.HashSize }

// MaxFileSize returns the size limit in bytes.
func (c Config) MaxFileSize() int64 { return c.MaxFileSizeMB << 20 }

// KindOf classifies a file by extension. ok is false for unsupported files.
func (c Config) KindOf(path string) (media.Kind, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case c.ImageExtensions[ext]:
		return media.KindImage, true
	case c.VideoExtensions[ext]:
		return media.KindVideo, true
	}
	return "", false
}

// Accepts reports whether a file with this path belongs to the scope.
func (c Config) Accepts(scope media.Scope, path string) bool {
	k, ok := c.KindOf(path)
	return ok && scope.Includes(k)
}

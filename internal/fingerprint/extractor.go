package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/AnyUserName/mediadup/internal/media"
	"github.com/spf13/afero"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("mediadup.fingerprint")

var (
	// ErrUnsupported is returned for kinds the extractor does not handle.
	ErrUnsupported = errors.New("unsupported file kind")
	// ErrNoFrames means the video container reports zero frames.
	ErrNoFrames = errors.New("video has no frames")
	// ErrSeek means the representative frame position could not be located.
	ErrSeek = errors.New("cannot seek to representative frame")
	// ErrFrameDecode means the selected frame could not be decoded.
	ErrFrameDecode = errors.New("cannot decode representative frame")
)

// Features is what extraction yields for one file.
type Features struct {
	Width       int
	Height      int
	Fingerprint string
	TakenAt     *time.Time
}

// Options configures an Extractor.
type Options struct {
	HashSize      int
	FramePosition float64
	FFprobePath   string
	FFmpegPath    string
}

// Extractor turns image and video files into fingerprints. Images are
// read through the afero filesystem; videos are handed to ffprobe and
// ffmpeg by path and therefore must live on the OS filesystem.
type Extractor struct {
	fs   afero.Fs
	opts Options
}

// NewExtractor creates an extractor reading images from fs.
func NewExtractor(fs afero.Fs, opts Options) *Extractor {
	if opts.HashSize == 0 {
		opts.HashSize = 8
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	return &Extractor{fs: fs, opts: opts}
}

// Extract dispatches on kind.
func (e *Extractor) Extract(ctx context.Context, kind media.Kind, path string) (Features, error) {
	switch kind {
	case media.KindImage:
		return e.ExtractImage(ctx, path)
	case media.KindVideo:
		return e.ExtractVideo(ctx, path)
	}
	return Features{}, fmt.Errorf("%w: %q", ErrUnsupported, kind)
}

// Frame returns the image a file is fingerprinted from: the decoded image
// itself, or the representative frame of a video.
func (e *Extractor) Frame(ctx context.Context, kind media.Kind, path string) (image.Image, error) {
	switch kind {
	case media.KindImage:
		img, _, err := e.decodeImage(path)
		return img, err
	case media.KindVideo:
		img, _, err := e.videoFrame(ctx, path)
		return img, err
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, kind)
}

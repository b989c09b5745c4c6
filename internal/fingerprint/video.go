package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ExtractVideo fingerprints the representative frame of a video.
func (e *Extractor) ExtractVideo(ctx context.Context, path string) (Features, error) {
	img, info, err := e.videoFrame(ctx, path)
	if err != nil {
		return Features{}, err
	}
	fp, err := Compute(img, e.opts.HashSize)
	if err != nil {
		return Features{}, fmt.Errorf("hash %s: %w", filepath.Base(path), err)
	}

	w, h := info.Width, info.Height
	if w == 0 || h == 0 {
		b := img.Bounds()
		w, h = b.Dx(), b.Dy()
	}
	return Features{Width: w, Height: h, Fingerprint: fp}, nil
}

func (e *Extractor) videoFrame(ctx context.Context, path string) (image.Image, videoInfo, error) {
	info, err := e.readStreams(ctx, path)
	if err != nil {
		return nil, info, err
	}
	ts, err := info.seekSeconds(e.opts.FramePosition)
	if err != nil {
		return nil, info, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	cmd := exec.CommandContext(ctx, e.opts.FFmpegPath,
		"-v", "error",
		"-ss", strconv.FormatFloat(ts, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1",
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, info, fmt.Errorf("%w: %s: %v%s", ErrFrameDecode, filepath.Base(path), err, stderrOf(err))
	}
	if len(out) == 0 {
		return nil, info, fmt.Errorf("%w: %s: empty frame at %.3fs", ErrFrameDecode, filepath.Base(path), ts)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, info, fmt.Errorf("%w: %s: %v", ErrFrameDecode, filepath.Base(path), err)
	}
	log.Debugf("frame %s at %.3fs (%dx%d)", filepath.Base(path), ts, info.Width, info.Height)
	return img, info, nil
}

func (e *Extractor) readStreams(ctx context.Context, path string) (videoInfo, error) {
	cmd := exec.CommandContext(ctx, e.opts.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,nb_frames,avg_frame_rate,duration",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return videoInfo{}, fmt.Errorf("inspect %s: %v%s", filepath.Base(path), err, stderrOf(err))
	}
	info, err := parseStreams(out)
	if err != nil {
		return videoInfo{}, fmt.Errorf("inspect %s: %w", filepath.Base(path), err)
	}
	return info, nil
}

// videoInfo is the first video stream as reported by ffprobe.
type videoInfo struct {
	Width    int
	Height   int
	Frames   int
	FPS      float64
	Duration float64
}

type streamsOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		NbFrames     string `json:"nb_frames"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
}

func parseStreams(data []byte) (videoInfo, error) {
	var out streamsOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return videoInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return videoInfo{}, ErrNoFrames
	}
	s := out.Streams[0]
	info := videoInfo{
		Width:    s.Width,
		Height:   s.Height,
		FPS:      parseRate(s.AvgFrameRate),
		Duration: parseFloat(s.Duration),
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s.NbFrames)); err == nil && n > 0 {
		info.Frames = n
	} else if info.FPS > 0 && info.Duration > 0 {
		info.Frames = int(math.Round(info.Duration * info.FPS))
	}
	return info, nil
}

// seekSeconds maps a fractional frame position onto a timestamp.
func (p videoInfo) seekSeconds(position float64) (float64, error) {
	if p.Frames <= 0 {
		return 0, ErrNoFrames
	}
	index := int(float64(p.Frames) * position)
	switch {
	case p.FPS > 0:
		return float64(index) / p.FPS, nil
	case p.Duration > 0:
		return p.Duration * float64(index) / float64(p.Frames), nil
	}
	return 0, ErrSeek
}

func parseRate(s string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return parseFloat(num)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func stderrOf(err error) string {
	var ee *exec.ExitError
	if errors.As(err, &ee) && len(ee.Stderr) > 0 {
		return ": " + strings.TrimSpace(string(ee.Stderr))
	}
	return ""
}

package media

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind is the type of a media file.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Scope selects which kinds of files a scan or a duplicate query covers.
type Scope string

const (
	ScopeImage Scope = "image"
	ScopeVideo Scope = "video"
	ScopeBoth  Scope = "both"
)

// ErrInvalidScope is returned by ParseScope for anything other than
// image, video or both.
var ErrInvalidScope = errors.New("file_type must be 'image', 'video', or 'both'")

// ParseScope parses a scope name. The empty string is rejected; callers
// that want a default must substitute it themselves.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeImage:
		return ScopeImage, nil
	case ScopeVideo:
		return ScopeVideo, nil
	case ScopeBoth:
		return ScopeBoth, nil
	}
	return "", fmt.Errorf("%w: got %q", ErrInvalidScope, s)
}

// Includes reports whether files of kind k fall inside the scope.
func (s Scope) Includes(k Kind) bool {
	switch s {
	case ScopeBoth:
		return k == KindImage || k == KindVideo
	case ScopeImage:
		return k == KindImage
	case ScopeVideo:
		return k == KindVideo
	}
	return false
}

// FileRecord is one cached file, keyed by its canonical absolute path.
//
// Fingerprint is empty when extraction failed; such records are kept for
// bookkeeping but never take part in duplicate comparison.
type FileRecord struct {
	Path        string     `json:"path"`
	Filename    string     `json:"filename"`
	Size        int64      `json:"size_bytes"`
	Width       *int       `json:"width,omitempty"`
	Height      *int       `json:"height,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ModifiedAt  time.Time  `json:"modified_at"`
	Kind        Kind       `json:"file_type"`
	Fingerprint string     `json:"hash,omitempty"`
	TakenAt     *time.Time `json:"taken_at,omitempty"`
	ScannedAt   time.Time  `json:"scan_date"`
}

// HasFingerprint reports whether the record can be compared.
func (r FileRecord) HasFingerprint() bool { return r.Fingerprint != "" }

// SizeMB returns the size in MiB rounded to two decimals.
func (r FileRecord) SizeMB() float64 { return BytesToMB(r.Size) }

// BytesToMB converts bytes to MiB rounded to two decimals.
func BytesToMB(b int64) float64 {
	return Round2(float64(b) / (1 << 20))
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

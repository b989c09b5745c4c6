package scan

import (
	"time"

	"github.com/AnyUserName/mediadup/internal/media"
)

// State is a snapshot of the process-wide scan progress.
type State struct {
	ID             string      `json:"scan_id,omitempty"`
	Scanning       bool        `json:"is_scanning"`
	Path           string      `json:"scanned_path,omitempty"`
	Scope          media.Scope `json:"file_type"`
	TotalFiles     int         `json:"total_files"`
	ProcessedFiles int         `json:"processed_files"`
	CacheHits      int         `json:"cache_hits"`
	CurrentFile    string      `json:"current_file,omitempty"`
	Errors         []string    `json:"errors"`
	StartTime      *time.Time  `json:"start_time"`
	EndTime        *time.Time  `json:"end_time"`
}

func idleState() State {
	return State{Scope: media.ScopeBoth, Errors: []string{}}
}

// clone returns a copy that shares no memory with s.
func (s State) clone() State {
	c := s
	c.Errors = append([]string{}, s.Errors...)
	if s.StartTime != nil {
		t := *s.StartTime
		c.StartTime = &t
	}
	if s.EndTime != nil {
		t := *s.EndTime
		c.EndTime = &t
	}
	return c
}

// Duration is the elapsed scan time, up to now while still scanning.
func (s State) Duration() time.Duration {
	if s.StartTime == nil {
		return 0
	}
	if s.EndTime == nil {
		return time.Since(*s.StartTime)
	}
	return s.EndTime.Sub(*s.StartTime)
}

// Package report renders duplicate query results as JSON documents.
package report

import "time"

// Report is the top-level output of a duplicate query.
type Report struct {
	Version                 int      `json:"version"`
	GeneratedAt             string   `json:"generated_at"`
	Threshold               int      `json:"threshold"`
	Scope                   string   `json:"file_type"`
	Pairs                   []Pair   `json:"pairs"`
	TotalPairs              int      `json:"total_pairs"`
	TotalPotentialSavingsMB float64  `json:"total_potential_savings_mb"`
	Summary                 *Summary `json:"summary,omitempty"`
}

// FileInfo describes one side of a pair.
type FileInfo struct {
	Path       string     `json:"path"`
	Filename   string     `json:"filename"`
	SizeMB     float64    `json:"size_mb"`
	Width      *int       `json:"width"`
	Height     *int       `json:"height"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt time.Time  `json:"modified_at"`
	Kind       string     `json:"file_type"`
	Hash       string     `json:"hash,omitempty"`
	TakenAt    *time.Time `json:"taken_at,omitempty"`
}

// Pair is two similar files.
type Pair struct {
	File1                FileInfo `json:"file1"`
	File2                FileInfo `json:"file2"`
	SimilarityScore      int      `json:"similarity_score"`      // Hamming distance, 0 = identical
	SimilarityPercentage float64  `json:"similarity_percentage"` // 100 = identical
}

// Summary aggregates per-file figures that the pair list repeats.
type Summary struct {
	DistinctFiles int            `json:"distinct_files"`
	ByScore       map[string]int `json:"by_score"`
}

// SupportedReportVersion is the current schema version.
const SupportedReportVersion = 1

package report

import (
	"encoding/json"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/AnyUserName/mediadup/internal/dupes"
	"github.com/AnyUserName/mediadup/internal/media"
)

// New builds a report from a duplicate query result.
func New(res dupes.Result, threshold int, scope media.Scope) *Report {
	r := &Report{
		Version:                 SupportedReportVersion,
		GeneratedAt:             time.Now().UTC().Format(time.RFC3339),
		Threshold:               threshold,
		Scope:                   string(scope),
		Pairs:                   make([]Pair, 0, len(res.Pairs)),
		TotalPairs:              res.TotalPairs,
		TotalPotentialSavingsMB: res.PotentialSavingsMB,
	}
	for _, p := range res.Pairs {
		r.Pairs = append(r.Pairs, Pair{
			File1:                fileInfo(p.File1),
			File2:                fileInfo(p.File2),
			SimilarityScore:      p.Score,
			SimilarityPercentage: p.Similarity,
		})
	}
	return r
}

func fileInfo(rec media.FileRecord) FileInfo {
	return FileInfo{
		Path:       rec.Path,
		Filename:   rec.Filename,
		SizeMB:     rec.SizeMB(),
		Width:      rec.Width,
		Height:     rec.Height,
		CreatedAt:  rec.CreatedAt,
		ModifiedAt: rec.ModifiedAt,
		Kind:       string(rec.Kind),
		Hash:       rec.Fingerprint,
		TakenAt:    rec.TakenAt,
	}
}

// ComputeSummary recalculates the summary from the pairs.
func (r *Report) ComputeSummary() {
	s := Summary{ByScore: make(map[string]int)}
	seen := make(map[string]struct{})
	for _, p := range r.Pairs {
		seen[p.File1.Path] = struct{}{}
		seen[p.File2.Path] = struct{}{}
		s.ByScore[strconv.Itoa(p.SimilarityScore)]++
	}
	s.DistinctFiles = len(seen)
	r.Summary = &s
}

// Encode writes the report as indented JSON.
func Encode(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteJSON serializes the report, with its summary, to a file. r itself
// is left unchanged.
func WriteJSON(r *Report, path string) error {
	out := *r
	out.ComputeSummary()

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// Package dupes finds pairs of perceptually similar files among cached
// fingerprints.
package dupes

import (
	"context"
	"fmt"
	"sort"

	"github.com/AnyUserName/mediadup/internal/config"
	"github.com/AnyUserName/mediadup/internal/fingerprint"
	"github.com/AnyUserName/mediadup/internal/media"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("mediadup.dupes")

// Lister supplies the fingerprinted records to compare.
type Lister interface {
	ListWithFingerprint(ctx context.Context, scope media.Scope) ([]media.FileRecord, error)
}

// Pair is two similar files. Score is the Hamming distance between their
// fingerprints; Similarity is the same distance as a percentage.
type Pair struct {
	File1      media.FileRecord
	File2      media.FileRecord
	Score      int
	Similarity float64
}

// Result is the outcome of one duplicate query.
type Result struct {
	Pairs              []Pair
	TotalPairs         int
	PotentialSavingsMB float64
}

// Engine compares every fingerprinted record against every other one.
// The comparison is O(n²), which is fine for a personal collection.
type Engine struct {
	lister Lister
	cfg    config.Config
}

// New returns an engine reading from lister.
func New(lister Lister, cfg config.Config) *Engine {
	return &Engine{lister: lister, cfg: cfg}
}

// Find reports every unordered pair of records in scope whose distance is
// at most threshold, most similar first.
func (e *Engine) Find(ctx context.Context, threshold int, scope media.Scope) (Result, error) {
	if err := e.cfg.ValidateThreshold(threshold); err != nil {
		return Result{}, err
	}
	if _, err := media.ParseScope(string(scope)); err != nil {
		return Result{}, err
	}

	files, err := e.lister.ListWithFingerprint(ctx, scope)
	if err != nil {
		return Result{}, fmt.Errorf("list fingerprints: %w", err)
	}
	log.Infof("comparing %d files (threshold=%d, scope=%s)", len(files), threshold, scope)

	pairs := Compare(files, threshold, e.cfg.MaxDistance())
	log.Infof("found %d similar pairs", len(pairs))

	return Result{
		Pairs:              pairs,
		TotalPairs:         len(pairs),
		PotentialSavingsMB: PotentialSavings(pairs),
	}, nil
}

// Compare is the pairwise core of Find. Each unordered pair of distinct
// paths is considered once, even if a path occurs more than once in files.
// A corrupt fingerprint is reported once and never qualifies.
func Compare(files []media.FileRecord, threshold, maxDistance int) []Pair {
	corruptFingerprints(files)
	seen := make(map[[2]string]struct{})
	var pairs []Pair

	for i := 0; i < len(files); i++ {
		for j := i + 1; j < len(files); j++ {
			a, b := files[i], files[j]
			if a.Path == b.Path {
				continue
			}
			key := pairKey(a.Path, b.Path)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			if !a.HasFingerprint() || !b.HasFingerprint() {
				continue
			}
			d := fingerprint.Distance(a.Fingerprint, b.Fingerprint)
			if d > threshold {
				continue
			}
			pairs = append(pairs, Pair{
				File1:      a,
				File2:      b,
				Score:      d,
				Similarity: fingerprint.Similarity(d, maxDistance),
			})
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Score < pairs[j].Score })
	return pairs
}

// PotentialSavings sums the larger file of every pair in MB. A file that
// appears in several pairs is counted once per pair.
func PotentialSavings(pairs []Pair) float64 {
	var total float64
	for _, p := range pairs {
		total += max(p.File1.SizeMB(), p.File2.SizeMB())
	}
	return media.Round2(total)
}

// corruptFingerprints logs every record whose stored fingerprint does not
// decode, once per path, and returns those paths.
func corruptFingerprints(files []media.FileRecord) map[string]struct{} {
	corrupt := make(map[string]struct{})
	for _, f := range files {
		if !f.HasFingerprint() || fingerprint.Valid(f.Fingerprint) {
			continue
		}
		if _, ok := corrupt[f.Path]; ok {
			continue
		}
		corrupt[f.Path] = struct{}{}
		log.Warningf("corrupt fingerprint %q for %s, never matches", f.Fingerprint, f.Path)
	}
	return corrupt
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

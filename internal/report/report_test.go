package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/AnyUserName/mediadup/internal/dupes"
	"github.com/AnyUserName/mediadup/internal/media"
)

func sample() dupes.Result {
	w, h := 800, 600
	a := media.FileRecord{Path: "/m/a.jpg", Filename: "a.jpg", Size: 1 << 20, Width: &w, Height: &h, Kind: media.KindImage, Fingerprint: "0000000000000000"}
	b := media.FileRecord{Path: "/m/b.jpg", Filename: "b.jpg", Size: 3 << 20, Kind: media.KindImage, Fingerprint: "0000000000000001"}
	c := media.FileRecord{Path: "/m/c.jpg", Filename: "c.jpg", Size: 2 << 20, Kind: media.KindImage, Fingerprint: "0000000000000003"}
	pairs := []dupes.Pair{
		{File1: a, File2: b, Score: 1, Similarity: 98.44},
		{File1: b, File2: c, Score: 1, Similarity: 98.44},
		{File1: a, File2: c, Score: 2, Similarity: 96.88},
	}
	return dupes.Result{Pairs: pairs, TotalPairs: len(pairs), PotentialSavingsMB: dupes.PotentialSavings(pairs)}
}

func TestWriteJSON(t *testing.T) {
	r := New(sample(), 5, media.ScopeImage)

	path := filepath.Join(t.TempDir(), "dups.json")
	if err := WriteJSON(r, path); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var got Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Version != SupportedReportVersion {
		t.Errorf("version: got %d, want %d", got.Version, SupportedReportVersion)
	}
	if got.Threshold != 5 || got.Scope != "image" {
		t.Errorf("query: got threshold=%d scope=%q", got.Threshold, got.Scope)
	}
	if got.TotalPairs != 3 || len(got.Pairs) != 3 {
		t.Fatalf("pairs: got %d/%d", len(got.Pairs), got.TotalPairs)
	}
	if got.TotalPotentialSavingsMB != 8 {
		t.Errorf("savings: got %v, want 8", got.TotalPotentialSavingsMB)
	}
	if got.Pairs[0].File2.SizeMB != 3 || got.Pairs[0].SimilarityPercentage != 98.44 {
		t.Errorf("first pair: got %+v", got.Pairs[0])
	}
	if got.Pairs[0].File1.Width == nil || *got.Pairs[0].File1.Width != 800 {
		t.Errorf("width: got %v", got.Pairs[0].File1.Width)
	}
	if got.Summary == nil {
		t.Fatal("summary missing")
	}
	if got.Summary.DistinctFiles != 3 || got.Summary.ByScore["1"] != 2 || got.Summary.ByScore["2"] != 1 {
		t.Errorf("summary: got %+v", got.Summary)
	}
}

func TestWriteJSONLeavesReportUnchanged(t *testing.T) {
	r := New(sample(), 5, media.ScopeImage)

	path := filepath.Join(t.TempDir(), "dups.json")
	if err := WriteJSON(r, path); err != nil {
		t.Fatalf("write: %v", err)
	}
	if r.Summary != nil {
		t.Errorf("summary should stay unset on the caller's report, got %+v", r.Summary)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Summary == nil || got.Summary.DistinctFiles != 3 {
		t.Errorf("file summary: got %+v", got.Summary)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, r); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["summary"]; ok {
		t.Error("summary leaked into a later encode")
	}
}

func TestEncodeEmpty(t *testing.T) {
	r := New(dupes.Result{}, 0, media.ScopeBoth)

	var buf bytes.Buffer
	if err := Encode(&buf, r); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	pairs, ok := raw["pairs"].([]any)
	if !ok || len(pairs) != 0 {
		t.Errorf("pairs: want empty array, got %v", raw["pairs"])
	}
	if _, ok := raw["summary"]; ok {
		t.Error("summary should be omitted until computed")
	}
}

package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/AnyUserName/mediadup/internal/config"
	"github.com/AnyUserName/mediadup/internal/fingerprint"
	"github.com/AnyUserName/mediadup/internal/media"
	"github.com/spf13/afero"
)

type fakeCache struct {
	mu        sync.Mutex
	records   map[string]media.FileRecord
	upserts   map[string]int
	clears    int
	upsertErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{records: map[string]media.FileRecord{}, upserts: map[string]int{}}
}

func (c *fakeCache) Get(_ context.Context, path string) (media.FileRecord, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[path]
	return r, ok, nil
}

func (c *fakeCache) Upsert(_ context.Context, rec media.FileRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.upsertErr != nil {
		return c.upsertErr
	}
	c.records[rec.Path] = rec
	c.upserts[rec.Path]++
	return nil
}

func (c *fakeCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = map[string]media.FileRecord{}
	c.clears++
	return nil
}

type fakeExtractor struct {
	mu      sync.Mutex
	calls   []string
	fail    map[string]error
	block   chan struct{}
	started chan struct{}
	panics  bool
}

func (e *fakeExtractor) Extract(_ context.Context, kind media.Kind, path string) (fingerprint.Features, error) {
	e.mu.Lock()
	e.calls = append(e.calls, path)
	e.mu.Unlock()
	if e.started != nil {
		select {
		case e.started <- struct{}{}:
		default:
		}
	}
	if e.block != nil {
		<-e.block
	}
	if e.panics {
		panic("decoder exploded")
	}
	if err := e.fail[path]; err != nil {
		return fingerprint.Features{}, err
	}
	return fingerprint.Features{Width: 640, Height: 480, Fingerprint: "00000000000000ff"}, nil
}

func (e *fakeExtractor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func writeFiles(t *testing.T, fs afero.Fs, files map[string]int) {
	t.Helper()
	for path, size := range files {
		if err := afero.WriteFile(fs, path, make([]byte, size), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", path, err)
		}
	}
}

func setupTest(t *testing.T) (afero.Fs, *fakeCache, *fakeExtractor, config.Config) {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/media/sub", 0o755); err != nil {
		t.Fatal(err)
	}
	writeFiles(t, fs, map[string]int{
		"/media/a.jpg":     10,
		"/media/b.PNG":     20,
		"/media/clip.mp4":  30,
		"/media/notes.txt": 5,
		"/media/sub/c.gif": 40,
	})
	return fs, newFakeCache(), &fakeExtractor{}, config.Default()
}

func mustRun(t *testing.T, o *Orchestrator, req Request) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := o.Run(ctx, req)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	return st
}

func TestWalkFiltersByScopeAndSize(t *testing.T) {
	fs, _, _, cfg := setupTest(t)
	cfg.MaxFileSizeMB = 1
	writeFiles(t, fs, map[string]int{"/media/huge.jpg": 2 << 20})

	tests := []struct {
		scope media.Scope
		want  []string
	}{
		{media.ScopeImage, []string{"/media/a.jpg", "/media/b.PNG", "/media/sub/c.gif"}},
		{media.ScopeVideo, []string{"/media/clip.mp4"}},
		{media.ScopeBoth, []string{"/media/a.jpg", "/media/b.PNG", "/media/clip.mp4", "/media/sub/c.gif"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.scope), func(t *testing.T) {
			res, err := Walk(fs, "/media", tt.scope, cfg)
			if err != nil {
				t.Fatalf("Walk failed: %v", err)
			}
			var got []string
			for _, c := range res.Files {
				got = append(got, c.Path)
			}
			sort.Strings(got)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
			wantOversized := 0
			if tt.scope != media.ScopeVideo {
				wantOversized = 1
			}
			if res.Oversized != wantOversized {
				t.Errorf("Expected %d oversized, got %d", wantOversized, res.Oversized)
			}
		})
	}
}

func TestScanPopulatesCache(t *testing.T) {
	fs, cache, ex, cfg := setupTest(t)
	o := New(fs, cache, ex, cfg)

	st := mustRun(t, o, Request{Path: "/media", Scope: media.ScopeBoth})

	if st.Scanning {
		t.Error("Expected scan to be finished")
	}
	if st.TotalFiles != 4 || st.ProcessedFiles != 4 {
		t.Errorf("Expected 4/4 files, got %d/%d", st.ProcessedFiles, st.TotalFiles)
	}
	if st.CacheHits != 0 {
		t.Errorf("Expected no cache hits, got %d", st.CacheHits)
	}
	if len(st.Errors) != 0 {
		t.Errorf("Expected no errors, got %v", st.Errors)
	}
	if st.ID == "" || st.StartTime == nil || st.EndTime == nil {
		t.Errorf("Expected id and timestamps, got %+v", st)
	}
	if st.CurrentFile != "c.gif" {
		t.Errorf("Expected last processed file to stay visible, got %q", st.CurrentFile)
	}
	if cache.clears != 1 {
		t.Errorf("Expected a default request to clear the cache once, got %d", cache.clears)
	}

	rec, ok, _ := cache.Get(context.Background(), "/media/clip.mp4")
	if !ok {
		t.Fatal("Expected video record in cache")
	}
	if rec.Kind != media.KindVideo || rec.Filename != "clip.mp4" || rec.Size != 30 {
		t.Errorf("Unexpected record: %+v", rec)
	}
	if rec.Width == nil || *rec.Width != 640 || rec.Fingerprint != "00000000000000ff" {
		t.Errorf("Expected extracted features, got %+v", rec)
	}
	if rec.ScannedAt.IsZero() {
		t.Error("Expected scan date to be set")
	}
}

func TestScanReusesUnchangedFiles(t *testing.T) {
	fs, cache, ex, cfg := setupTest(t)
	o := New(fs, cache, ex, cfg)

	mustRun(t, o, Request{Path: "/media", Scope: media.ScopeImage, KeepCache: true})
	if ex.callCount() != 3 {
		t.Fatalf("Expected 3 extractions, got %d", ex.callCount())
	}

	st := mustRun(t, o, Request{Path: "/media", Scope: media.ScopeImage, KeepCache: true})
	if st.CacheHits != 3 || st.ProcessedFiles != 3 {
		t.Errorf("Expected 3 cache hits of 3, got %d of %d", st.CacheHits, st.ProcessedFiles)
	}
	if ex.callCount() != 3 {
		t.Errorf("Expected no new extraction, got %d calls", ex.callCount())
	}

	later := time.Now().Add(time.Hour)
	if err := fs.Chtimes("/media/a.jpg", later, later); err != nil {
		t.Fatal(err)
	}
	st = mustRun(t, o, Request{Path: "/media", Scope: media.ScopeImage, KeepCache: true})
	if st.CacheHits != 2 {
		t.Errorf("Expected 2 cache hits after touching a file, got %d", st.CacheHits)
	}
	if ex.callCount() != 4 {
		t.Errorf("Expected touched file to be extracted again, got %d calls", ex.callCount())
	}
	rec, _, _ := cache.Get(context.Background(), "/media/a.jpg")
	if !rec.ModifiedAt.Equal(later) {
		t.Errorf("Expected modified time %v, got %v", later, rec.ModifiedAt)
	}
}

func TestClearCacheDiscardsOtherScopes(t *testing.T) {
	fs, cache, ex, cfg := setupTest(t)
	o := New(fs, cache, ex, cfg)

	mustRun(t, o, Request{Path: "/media", Scope: media.ScopeVideo, KeepCache: true})
	if _, ok, _ := cache.Get(context.Background(), "/media/clip.mp4"); !ok {
		t.Fatal("Expected video in cache")
	}

	mustRun(t, o, Request{Path: "/media", Scope: media.ScopeImage})
	if _, ok, _ := cache.Get(context.Background(), "/media/clip.mp4"); ok {
		t.Error("Expected video record to be discarded by clearing scan")
	}
	if cache.clears != 1 {
		t.Errorf("Expected one clear, got %d", cache.clears)
	}
}

func TestFileErrorsDoNotAbortScan(t *testing.T) {
	fs, cache, ex, cfg := setupTest(t)
	ex.fail = map[string]error{"/media/b.PNG": errors.New("corrupt data")}
	o := New(fs, cache, ex, cfg)

	st := mustRun(t, o, Request{Path: "/media", Scope: media.ScopeImage})

	if st.ProcessedFiles != 3 {
		t.Errorf("Expected all 3 files processed, got %d", st.ProcessedFiles)
	}
	if len(st.Errors) != 1 || st.Errors[0] != "b.PNG: corrupt data" {
		t.Errorf("Expected one file error, got %v", st.Errors)
	}

	rec, ok, _ := cache.Get(context.Background(), "/media/b.PNG")
	if !ok {
		t.Fatal("Expected partial record to be stored")
	}
	if rec.HasFingerprint() || rec.Width != nil {
		t.Errorf("Expected record without features, got %+v", rec)
	}
}

func TestStartValidation(t *testing.T) {
	fs, cache, ex, cfg := setupTest(t)
	o := New(fs, cache, ex, cfg)
	ctx := context.Background()

	if _, err := o.Start(ctx, Request{Path: "/nowhere"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := o.Start(ctx, Request{Path: "/media/a.jpg"}); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("Expected ErrNotDirectory, got %v", err)
	}
	if _, err := o.Start(ctx, Request{Path: "/media", Scope: "audio"}); !errors.Is(err, media.ErrInvalidScope) {
		t.Errorf("Expected ErrInvalidScope, got %v", err)
	}
	if st := o.Status(); st.Scanning || st.ID != "" {
		t.Errorf("Expected idle state after rejected requests, got %+v", st)
	}
}

func TestConcurrentStartIsRejected(t *testing.T) {
	fs, cache, ex, cfg := setupTest(t)
	ex.block = make(chan struct{})
	ex.started = make(chan struct{}, 1)
	o := New(fs, cache, ex, cfg)
	ctx := context.Background()

	task, err := o.Start(ctx, Request{Path: "/media", Scope: media.ScopeImage, KeepCache: true})
	if err != nil {
		t.Fatalf("Failed to start scan: %v", err)
	}
	<-ex.started

	before := o.Status()
	if !before.Scanning {
		t.Fatal("Expected scan to be running")
	}
	if _, err := o.Start(ctx, Request{Path: "/media", Scope: media.ScopeVideo}); !errors.Is(err, ErrScanInProgress) {
		t.Errorf("Expected ErrScanInProgress, got %v", err)
	}
	after := o.Status()
	if after.ID != before.ID || after.Scope != media.ScopeImage || cache.clears != 0 {
		t.Errorf("Rejected request touched the running scan: %+v", after)
	}

	close(ex.block)
	st, err := task.Wait(ctx)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if st.ProcessedFiles != 3 {
		t.Errorf("Expected 3 processed files, got %d", st.ProcessedFiles)
	}
}

func TestStorageErrorIsFatal(t *testing.T) {
	fs, cache, ex, cfg := setupTest(t)
	cache.upsertErr = errors.New("disk full")
	o := New(fs, cache, ex, cfg)

	st, err := o.Run(context.Background(), Request{Path: "/media", Scope: media.ScopeImage})
	if err == nil {
		t.Fatal("Expected storage error")
	}
	if st.Scanning {
		t.Error("Expected scanning flag to be cleared")
	}
	if st.ProcessedFiles != 0 || len(st.Errors) != 1 {
		t.Errorf("Expected abort on first file, got %+v", st)
	}

	cache.upsertErr = nil
	st = mustRun(t, o, Request{Path: "/media", Scope: media.ScopeImage})
	if st.ProcessedFiles != 3 || len(st.Errors) != 0 {
		t.Errorf("Expected a clean follow-up scan, got %+v", st)
	}
}

func TestPanicLeavesTerminalState(t *testing.T) {
	fs, cache, ex, cfg := setupTest(t)
	ex.panics = true
	o := New(fs, cache, ex, cfg)

	st, err := o.Run(context.Background(), Request{Path: "/media", Scope: media.ScopeVideo})
	if err == nil {
		t.Fatal("Expected error from panicking extractor")
	}
	if st.Scanning || st.EndTime == nil {
		t.Errorf("Expected terminal state, got %+v", st)
	}
}

func TestParallelWorkersProcessEachFileOnce(t *testing.T) {
	fs, cache, ex, cfg := setupTest(t)
	for i := 0; i < 20; i++ {
		writeFiles(t, fs, map[string]int{fmt.Sprintf("/media/sub/img%02d.jpg", i): i + 1})
	}
	cfg.Workers = 4
	o := New(fs, cache, ex, cfg)

	st := mustRun(t, o, Request{Path: "/media", Scope: media.ScopeImage})
	if st.TotalFiles != 23 || st.ProcessedFiles != 23 {
		t.Errorf("Expected 23/23 files, got %d/%d", st.ProcessedFiles, st.TotalFiles)
	}
	for path, n := range cache.upserts {
		if n != 1 {
			t.Errorf("Expected one upsert for %s, got %d", path, n)
		}
	}
	if len(cache.upserts) != 23 {
		t.Errorf("Expected 23 upserted files, got %d", len(cache.upserts))
	}
}

func TestStatusIsSnapshot(t *testing.T) {
	fs, cache, ex, cfg := setupTest(t)
	ex.fail = map[string]error{"/media/a.jpg": errors.New("bad")}
	o := New(fs, cache, ex, cfg)
	mustRun(t, o, Request{Path: "/media", Scope: media.ScopeImage})

	st := o.Status()
	st.Errors[0] = "changed"
	*st.StartTime = time.Time{}

	again := o.Status()
	if again.Errors[0] == "changed" || again.StartTime.IsZero() {
		t.Error("Expected status snapshot to be independent of orchestrator state")
	}
	if again.Duration() < 0 {
		t.Errorf("Expected non-negative duration, got %v", again.Duration())
	}
}

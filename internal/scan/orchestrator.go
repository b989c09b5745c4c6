// Package scan walks a directory tree and keeps the fingerprint cache in
// step with it. At most one scan runs at a time.
package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/AnyUserName/mediadup/internal/config"
	"github.com/AnyUserName/mediadup/internal/fingerprint"
	"github.com/AnyUserName/mediadup/internal/media"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"
)

var log = commonlog.GetLogger("mediadup.scan")

var (
	// ErrScanInProgress rejects a scan request while another one runs.
	ErrScanInProgress = errors.New("a scan is already in progress")
	// ErrNotFound means the scan path does not exist.
	ErrNotFound = errors.New("path not found")
	// ErrNotDirectory means the scan path is not a directory.
	ErrNotDirectory = errors.New("path is not a directory")
)

// Cache is the part of the fingerprint store a scan writes to.
type Cache interface {
	Get(ctx context.Context, path string) (media.FileRecord, bool, error)
	Upsert(ctx context.Context, rec media.FileRecord) error
	Clear(ctx context.Context) error
}

// Extractor produces fingerprints for single files.
type Extractor interface {
	Extract(ctx context.Context, kind media.Kind, path string) (fingerprint.Features, error)
}

// Request describes one scan.
type Request struct {
	Path  string
	Scope media.Scope
	// KeepCache skips emptying the cache before the scan. By default the
	// whole cache is cleared, including records outside Scope.
	KeepCache bool
}

// Orchestrator owns the scan state and runs scans in the background.
type Orchestrator struct {
	fs        afero.Fs
	cache     Cache
	extractor Extractor
	cfg       config.Config
	now       func() time.Time

	mu    sync.RWMutex
	state State
	task  *Task
}

// New creates an idle orchestrator.
func New(fs afero.Fs, cache Cache, extractor Extractor, cfg config.Config) *Orchestrator {
	return &Orchestrator{
		fs:        fs,
		cache:     cache,
		extractor: extractor,
		cfg:       cfg,
		now:       time.Now,
		state:     idleState(),
	}
}

// Task is the handle of a background scan.
type Task struct {
	ID   string
	o    *Orchestrator
	done chan struct{}
	err  error
}

// Done is closed once the scan reached a terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the scan ends or ctx is done. The returned error is
// the scan-fatal error, if any; per-file errors are in State.Errors.
func (t *Task) Wait(ctx context.Context) (State, error) {
	select {
	case <-t.done:
		return t.o.Status(), t.err
	case <-ctx.Done():
		return t.o.Status(), ctx.Err()
	}
}

// Status returns a snapshot of the current or last scan. It never waits
// for a running scan.
func (o *Orchestrator) Status() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state.clone()
}

// Current returns the handle of the running or last scan, or nil.
func (o *Orchestrator) Current() *Task {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.task
}

// Run starts a scan and waits for it to finish.
func (o *Orchestrator) Run(ctx context.Context, req Request) (State, error) {
	t, err := o.Start(ctx, req)
	if err != nil {
		return o.Status(), err
	}
	return t.Wait(ctx)
}

// Start validates req and launches the scan in the background. A request
// made while a scan is running is rejected with ErrScanInProgress and
// leaves the running scan untouched. Cancelling ctx does not stop the
// scan once it started.
func (o *Orchestrator) Start(ctx context.Context, req Request) (*Task, error) {
	if req.Scope == "" {
		req.Scope = media.ScopeBoth
	}
	scope, err := media.ParseScope(string(req.Scope))
	if err != nil {
		return nil, err
	}
	req.Scope = scope

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Scanning {
		return nil, ErrScanInProgress
	}
	root, err := o.resolveRoot(req.Path)
	if err != nil {
		return nil, err
	}

	start := o.now()
	t := &Task{ID: uuid.NewString(), o: o, done: make(chan struct{})}
	o.state = idleState()
	o.state.ID = t.ID
	o.state.Scanning = true
	o.state.Path = root
	o.state.Scope = req.Scope
	o.state.StartTime = &start
	o.task = t

	go o.run(context.WithoutCancel(ctx), t, root, req)
	return t, nil
}

func (o *Orchestrator) resolveRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if _, ok := o.fs.(*afero.OsFs); ok {
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("%w: %s", ErrNotFound, path)
			}
			return "", fmt.Errorf("resolve %s: %w", path, err)
		}
		abs = resolved
	}

	info, err := o.fs.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}
	return abs, nil
}

func (o *Orchestrator) run(ctx context.Context, t *Task, root string, req Request) {
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			t.err = fmt.Errorf("scan aborted: %v", r)
		}
		o.finish(t.err)
	}()
	t.err = o.scan(ctx, root, req)
}

// finish moves the state to its terminal form. It runs exactly once per
// scan, whatever happened before.
func (o *Orchestrator) finish(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err != nil {
		log.Errorf("error during scan: %v", err)
		o.state.Errors = append(o.state.Errors, err.Error())
	}
	end := o.now()
	o.state.EndTime = &end
	o.state.Scanning = false
	log.Noticef("scan of %s finished in %s: %d/%d files, %d cached, %d errors",
		o.state.Path, end.Sub(*o.state.StartTime).Round(time.Millisecond),
		o.state.ProcessedFiles, o.state.TotalFiles, o.state.CacheHits, len(o.state.Errors))
}

func (o *Orchestrator) update(fn func(*State)) {
	o.mu.Lock()
	fn(&o.state)
	o.mu.Unlock()
}

func (o *Orchestrator) scan(ctx context.Context, root string, req Request) error {
	log.Infof("starting scan of %s (file_type: %s, clear_cache: %v)", root, req.Scope, !req.KeepCache)

	if !req.KeepCache {
		log.Info("clearing fingerprint cache before scan")
		if err := o.cache.Clear(ctx); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
	}

	found, err := Walk(o.fs, root, req.Scope, o.cfg)
	if err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}
	o.update(func(s *State) {
		s.TotalFiles = len(found.Files)
		s.Errors = append(s.Errors, found.Errors...)
	})
	log.Infof("found %d files to process (%d oversized skipped)", len(found.Files), found.Oversized)

	if o.cfg.Workers <= 1 {
		for _, c := range found.Files {
			if err := o.handle(ctx, c); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for _, c := range found.Files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("scan aborted: %v", r)
				}
			}()
			return o.handle(gctx, c)
		})
	}
	return g.Wait()
}

// handle processes one candidate and accounts for it. Only scan-fatal
// errors are returned.
func (o *Orchestrator) handle(ctx context.Context, c Candidate) error {
	o.update(func(s *State) { s.CurrentFile = c.Name })

	hit, err := o.processFile(ctx, c)
	var fe *fileError
	switch {
	case errors.As(err, &fe):
		log.Warningf("%v", fe)
		o.update(func(s *State) { s.Errors = append(s.Errors, fe.Error()) })
	case err != nil:
		return err
	}

	o.update(func(s *State) {
		s.ProcessedFiles++
		if hit {
			s.CacheHits++
		}
	})
	return nil
}

// Package api serves the scan, duplicate review and preview endpoints over
// HTTP with JSON bodies.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"time"

	"github.com/AnyUserName/mediadup/internal/config"
	"github.com/AnyUserName/mediadup/internal/dupes"
	"github.com/AnyUserName/mediadup/internal/encoder"
	"github.com/AnyUserName/mediadup/internal/media"
	"github.com/AnyUserName/mediadup/internal/scan"
	"github.com/AnyUserName/mediadup/internal/store"
	"github.com/spf13/afero"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("mediadup.api")

// Version is reported by the index endpoint.
const Version = "1.0.0"

// Cache is the part of the fingerprint store the API reads and prunes.
type Cache interface {
	Get(ctx context.Context, path string) (media.FileRecord, bool, error)
	Delete(ctx context.Context, path string) (bool, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (store.Stats, error)
}

// Scanner starts background scans and reports their progress.
type Scanner interface {
	Start(ctx context.Context, req scan.Request) (*scan.Task, error)
	Status() scan.State
}

// Finder answers duplicate queries.
type Finder interface {
	Find(ctx context.Context, threshold int, scope media.Scope) (dupes.Result, error)
}

// Framer decodes the image a media file is fingerprinted from.
type Framer interface {
	Frame(ctx context.Context, kind media.Kind, path string) (image.Image, error)
}

// Deps wires a Server.
type Deps struct {
	Fs      afero.Fs
	Cache   Cache
	Scanner Scanner
	Finder  Finder
	Framer  Framer
	Config  config.Config
}

// Server holds the handlers' dependencies.
type Server struct {
	fs       afero.Fs
	cache    Cache
	scanner  Scanner
	finder   Finder
	framer   Framer
	previews *encoder.Registry
	cfg      config.Config
}

// NewServer creates a server from deps.
func NewServer(deps Deps) *Server {
	fs := deps.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Server{
		fs:       fs,
		cache:    deps.Cache,
		scanner:  deps.Scanner,
		finder:   deps.Finder,
		framer:   deps.Framer,
		previews: encoder.NewRegistry(),
		cfg:      deps.Config,
	}
}

// Router returns the request multiplexer with every route registered.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /api/scan", s.handleStartScan)
	mux.HandleFunc("GET /api/scan/status", s.handleScanStatus)
	mux.HandleFunc("GET /api/duplicates", s.handleDuplicates)
	mux.HandleFunc("POST /api/delete", s.handleDelete)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("DELETE /api/cache", s.handleClearCache)
	mux.HandleFunc("GET /api/preview", s.handlePreview)
	return logRequests(mux)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Noticef("listening on http://%s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debugf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warningf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

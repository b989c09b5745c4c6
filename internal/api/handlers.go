package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/AnyUserName/mediadup/internal/config"
	"github.com/AnyUserName/mediadup/internal/media"
	"github.com/AnyUserName/mediadup/internal/report"
	"github.com/AnyUserName/mediadup/internal/scan"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "mediadup API",
		"version": Version,
		"endpoints": map[string]string{
			"scan":        "POST /api/scan",
			"scan_status": "GET /api/scan/status",
			"duplicates":  "GET /api/duplicates",
			"delete":      "POST /api/delete",
			"stats":       "GET /api/stats",
			"clear_cache": "DELETE /api/cache",
			"preview":     "GET /api/preview",
		},
	})
}

type scanRequest struct {
	Path       string `json:"path"`
	FileType   string `json:"file_type"`
	ClearCache *bool  `json:"clear_cache"`
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	scope := media.ScopeBoth
	if req.FileType != "" {
		scope = media.Scope(req.FileType)
	}
	clearCache := true
	if req.ClearCache != nil {
		clearCache = *req.ClearCache
	}

	_, err := s.scanner.Start(r.Context(), scan.Request{Path: req.Path, Scope: scope, KeepCache: !clearCache})
	switch {
	case errors.Is(err, scan.ErrScanInProgress):
		writeError(w, http.StatusConflict, "A scan is already in progress")
	case errors.Is(err, scan.ErrNotFound):
		writeError(w, http.StatusNotFound, "Path not found: "+req.Path)
	case errors.Is(err, scan.ErrNotDirectory):
		writeError(w, http.StatusBadRequest, "Path is not a directory: "+req.Path)
	case errors.Is(err, media.ErrInvalidScope):
		writeError(w, http.StatusBadRequest, media.ErrInvalidScope.Error())
	case err != nil:
		log.Errorf("start scan: %v", err)
		writeError(w, http.StatusInternalServerError, "Error starting scan: "+err.Error())
	default:
		writeJSON(w, http.StatusAccepted, s.scanner.Status())
	}
}

func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scanner.Status())
}

func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	threshold := s.cfg.DefaultThreshold
	if v := q.Get("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "threshold must be an integer")
			return
		}
		threshold = n
	}

	// Without an explicit file_type the query follows the last scan.
	scope := s.scanner.Status().Scope
	if v := q.Get("file_type"); v != "" {
		scope = media.Scope(v)
	}
	parsed, err := media.ParseScope(string(scope))
	if err != nil {
		writeError(w, http.StatusBadRequest, media.ErrInvalidScope.Error())
		return
	}

	res, err := s.finder.Find(r.Context(), threshold, parsed)
	switch {
	case errors.Is(err, config.ErrInvalidThreshold):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Threshold must be between 0 and %d", s.cfg.MaxThreshold))
	case err != nil:
		log.Errorf("find duplicates: %v", err)
		writeError(w, http.StatusInternalServerError, "Error finding duplicates: "+err.Error())
	default:
		writeJSON(w, http.StatusOK, report.New(res, threshold, parsed))
	}
}

type deleteRequest struct {
	FilePath     string `json:"file_path"`
	ScanBasePath string `json:"scan_base_path"`
}

type deleteResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	DeletedPath string `json:"deleted_path,omitempty"`
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.FilePath == "" || req.ScanBasePath == "" {
		writeError(w, http.StatusBadRequest, "file_path and scan_base_path are required")
		return
	}

	target, ok := s.within(req.ScanBasePath, req.FilePath)
	if !ok {
		writeError(w, http.StatusForbidden, "Cannot delete file outside of scanned directory")
		return
	}

	info, err := s.fs.Stat(target)
	switch {
	case os.IsNotExist(err):
		writeError(w, http.StatusNotFound, "File not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Error deleting file: "+err.Error())
		return
	case !info.Mode().IsRegular():
		writeError(w, http.StatusBadRequest, "Path is not a file")
		return
	}

	if err := s.fs.Remove(target); err != nil {
		log.Errorf("delete %s: %v", target, err)
		writeError(w, http.StatusInternalServerError, "Error deleting file: "+err.Error())
		return
	}
	log.Infof("deleted file: %s", target)

	if _, err := s.cache.Delete(r.Context(), target); err != nil {
		// The file is gone; a stale record is dropped by the next scan.
		log.Errorf("forget %s: %v", target, err)
	}
	writeJSON(w, http.StatusOK, deleteResponse{Success: true, Message: "File deleted successfully", DeletedPath: target})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.cache.Stats(r.Context())
	if err != nil {
		log.Errorf("stats: %v", err)
		writeError(w, http.StatusInternalServerError, "Error getting stats: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.Clear(r.Context()); err != nil {
		log.Errorf("clear cache: %v", err)
		writeError(w, http.StatusInternalServerError, "Error clearing cache: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cache cleared successfully"})
}

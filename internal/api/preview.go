package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AnyUserName/mediadup/internal/hasher"
)

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".flv":  "video/x-flv",
	".wmv":  "video/x-ms-wmv",
}

func contentType(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// handlePreview serves a media file, or with ?w= a thumbnail of it. A
// cache record whose file vanished from disk is dropped.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("file_path")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "file_path is required")
		return
	}
	width := 0
	if v := q.Get("w"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "w must be a positive integer")
			return
		}
		width = n
	}

	path, err := s.canonical(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file_path")
		return
	}
	rec, known, err := s.cache.Get(r.Context(), path)
	if err != nil {
		log.Errorf("preview lookup %s: %v", path, err)
	}

	info, err := s.fs.Stat(path)
	if os.IsNotExist(err) {
		if known {
			log.Errorf("file in cache but not on disk: %s", path)
			if _, err := s.cache.Delete(r.Context(), path); err != nil {
				log.Errorf("forget %s: %v", path, err)
			}
		}
		writeError(w, http.StatusNotFound, "File not found on disk. It may have been moved or deleted. Path: "+path)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error serving file: "+err.Error())
		return
	}
	if !info.Mode().IsRegular() {
		writeError(w, http.StatusBadRequest, "Path is not a file")
		return
	}
	if !known {
		log.Warningf("preview of file not in cache: %s", path)
	}

	if width > 0 {
		s.servePreview(w, r, path, width)
		return
	}

	f, err := s.fs.Open(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error serving file: "+err.Error())
		return
	}
	defer f.Close()

	etag := hasher.ETag([]byte(fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())))
	w.Header().Set("ETag", "W/"+etag)
	w.Header().Set("Content-Type", contentType(path))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", info.Name()))
	if known && rec.Fingerprint != "" {
		w.Header().Set("X-Fingerprint", rec.Fingerprint)
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *Server) servePreview(w http.ResponseWriter, r *http.Request, path string, width int) {
	kind, ok := s.cfg.KindOf(path)
	if !ok {
		writeError(w, http.StatusUnsupportedMediaType, "No preview for this file type")
		return
	}
	img, err := s.framer.Frame(r.Context(), kind, path)
	if err != nil {
		log.Warningf("preview frame %s: %v", path, err)
		writeError(w, http.StatusUnprocessableEntity, "Cannot render preview: "+err.Error())
		return
	}
	p, err := s.previews.Render(img, width, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error rendering preview: "+err.Error())
		return
	}

	w.Header().Set("ETag", p.ETag)
	w.Header().Set("Cache-Control", "private, max-age=300")
	if match := r.Header.Get("If-None-Match"); match != "" && match == p.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", p.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Data)))
	if _, err := w.Write(p.Data); err != nil {
		log.Debugf("write preview: %v", err)
	}
}

package api

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// canonical resolves p to an absolute, cleaned path. Symlinks are
// followed on the OS filesystem when the target exists.
func (s *Server) canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if _, ok := s.fs.(*afero.OsFs); ok {
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			return resolved, nil
		}
	}
	return abs, nil
}

// within resolves target and reports whether it lies inside base. Both
// paths are canonicalized first, so "..", and symlinks on the OS
// filesystem, cannot escape base.
func (s *Server) within(base, target string) (string, bool) {
	b, err := s.canonical(base)
	if err != nil {
		return "", false
	}
	t, err := s.canonical(target)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(b, t)
	if err != nil || rel == "." {
		return t, false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return t, false
	}
	return t, true
}

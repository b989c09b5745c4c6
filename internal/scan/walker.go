package scan

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/AnyUserName/mediadup/internal/config"
	"github.com/AnyUserName/mediadup/internal/media"
	"github.com/spf13/afero"
)

// Candidate is a discovered media file.
type Candidate struct {
	// Path is the canonical absolute path, the cache key.
	Path string
	// Name is the base name, used in progress and error reports.
	Name string
	Kind media.Kind
	Size int64
}

// WalkResult is the outcome of enumerating a directory tree.
type WalkResult struct {
	Files []Candidate
	// Errors holds "<name>: <message>" for entries that could not be read.
	Errors []string
	// Oversized counts files skipped for exceeding the size limit.
	Oversized int
}

// Walk enumerates regular files below root in lexical order, keeping those
// whose extension belongs to scope. An error on root itself is returned;
// errors on entries below it are collected and the walk continues.
func Walk(fs afero.Fs, root string, scope media.Scope, cfg config.Config) (WalkResult, error) {
	var res WalkResult
	limit := cfg.MaxFileSize()

	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}

		if !cfg.Accepts(scope, path) {
			return nil
		}
		kind, _ := cfg.KindOf(path)
		if info.Size() > limit {
			res.Oversized++
			log.Warningf("skipping large file (%.2fMB): %s", float64(info.Size())/(1<<20), path)
			return nil
		}

		res.Files = append(res.Files, Candidate{
			Path: path,
			Name: info.Name(),
			Kind: kind,
			Size: info.Size(),
		})
		return nil
	})
	return res, err
}

package scan

import (
	"context"

	"github.com/AnyUserName/mediadup/internal/media"
)

// fileError is a failure confined to one file. The scan records it and
// moves on.
type fileError struct {
	name string
	err  error
}

func (e *fileError) Error() string { return e.name + ": " + e.err.Error() }
func (e *fileError) Unwrap() error { return e.err }

// processFile brings the cache entry for c up to date. A cached record is
// reused verbatim when its modification time equals the file's current
// one; otherwise the file is extracted and upserted, with or without a
// fingerprint. Cache errors are returned as is and end the scan.
func (o *Orchestrator) processFile(ctx context.Context, c Candidate) (cacheHit bool, err error) {
	info, err := o.fs.Stat(c.Path)
	if err != nil {
		return false, &fileError{name: c.Name, err: err}
	}

	rec := media.FileRecord{
		Path:       c.Path,
		Filename:   c.Name,
		Size:       info.Size(),
		CreatedAt:  createdAt(info),
		ModifiedAt: info.ModTime(),
		Kind:       c.Kind,
	}

	cached, ok, err := o.cache.Get(ctx, c.Path)
	if err != nil {
		return false, err
	}
	if ok && cached.ModifiedAt.Equal(rec.ModifiedAt) {
		log.Debugf("using cached data for %s", c.Name)
		return true, nil
	}

	feat, exErr := o.extractor.Extract(ctx, c.Kind, c.Path)
	if exErr == nil {
		w, h := feat.Width, feat.Height
		rec.Width = &w
		rec.Height = &h
		rec.Fingerprint = feat.Fingerprint
		rec.TakenAt = feat.TakenAt
	}
	rec.ScannedAt = o.now()

	if err := o.cache.Upsert(ctx, rec); err != nil {
		return false, err
	}
	if exErr != nil {
		return false, &fileError{name: c.Name, err: exErr}
	}
	return false, nil
}

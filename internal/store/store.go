// Package store is the persistent fingerprint cache: one SQLite row per
// canonical file path.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AnyUserName/mediadup/internal/media"
	_ "github.com/mattn/go-sqlite3"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("mediadup.store")

// Memory opens a private in-memory cache.
const Memory = ":memory:"

// Store is safe for concurrent use. It holds a single connection so each
// upsert is one serialized statement and readers never see a torn row.
type Store struct {
	db   *sql.DB
	path string
}

// Stats summarizes the cache contents.
type Stats struct {
	TotalFiles  int        `json:"total_files_cached"`
	TotalImages int        `json:"total_images"`
	TotalVideos int        `json:"total_videos"`
	TotalSizeMB float64    `json:"total_size_mb"`
	CreatedAt   *time.Time `json:"cache_created_at"`
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Store, error) {
	dsn := path
	if path != Memory {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create cache dir: %w", err)
			}
		}
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	log.Infof("fingerprint cache at %s", path)
	return &Store{db: db, path: path}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the location the store was opened with.
func (s *Store) Path() string { return s.path }

const selectColumns = `path, filename, size_bytes, width, height, created_at,
    modified_at, file_type, hash, taken_at, scan_date`

// Get looks a record up by canonical path.
func (s *Store) Get(ctx context.Context, path string) (media.FileRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM files WHERE path = ?", path)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return media.FileRecord{}, false, nil
	}
	if err != nil {
		return media.FileRecord{}, false, fmt.Errorf("query file %s: %w", path, err)
	}
	return rec, true, nil
}

// Upsert inserts rec or overwrites the mutable fields of an existing row
// with the same path. Filename, creation time and kind keep their
// original values.
func (s *Store) Upsert(ctx context.Context, rec media.FileRecord) error {
	scanned := rec.ScannedAt
	if scanned.IsZero() {
		scanned = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO files (
            path, filename, size_bytes, width, height,
            created_at, modified_at, file_type, hash, taken_at, scan_date
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(path) DO UPDATE SET
            size_bytes  = excluded.size_bytes,
            width       = excluded.width,
            height      = excluded.height,
            modified_at = excluded.modified_at,
            hash        = excluded.hash,
            taken_at    = excluded.taken_at,
            scan_date   = excluded.scan_date
    `,
		rec.Path,
		rec.Filename,
		rec.Size,
		nullInt(rec.Width),
		nullInt(rec.Height),
		rec.CreatedAt.UnixNano(),
		rec.ModifiedAt.UnixNano(),
		string(rec.Kind),
		nullString(rec.Fingerprint),
		nullTime(rec.TakenAt),
		scanned.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert file %s: %w", rec.Path, err)
	}
	return nil
}

// ListWithFingerprint returns every fingerprinted record in scope, ordered
// by fingerprint so near-identical values sit next to each other.
func (s *Store) ListWithFingerprint(ctx context.Context, scope media.Scope) ([]media.FileRecord, error) {
	query := "SELECT " + selectColumns + " FROM files WHERE hash IS NOT NULL"
	var args []any
	switch scope {
	case media.ScopeBoth:
	case media.ScopeImage, media.ScopeVideo:
		query += " AND file_type = ?"
		args = append(args, string(scope))
	default:
		return nil, fmt.Errorf("%w: %q", media.ErrInvalidScope, scope)
	}
	query += " ORDER BY hash, path"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fingerprinted files: %w", err)
	}
	defer rows.Close()

	var records []media.FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file records: %w", err)
	}
	return records, nil
}

// Delete removes the record for path and reports whether one existed.
func (s *Store) Delete(ctx context.Context, path string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM files WHERE path = ?", path)
	if err != nil {
		return false, fmt.Errorf("delete file %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete file %s: %w", path, err)
	}
	return n > 0, nil
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM files"); err != nil {
		return fmt.Errorf("clear files: %w", err)
	}
	log.Warning("all cached fingerprints cleared")
	return nil
}

// Stats aggregates counts and sizes over the whole cache.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var (
		total, images, videos sql.NullInt64
		size, earliest        sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT
            COUNT(*),
            SUM(CASE WHEN file_type = 'image' THEN 1 ELSE 0 END),
            SUM(CASE WHEN file_type = 'video' THEN 1 ELSE 0 END),
            SUM(size_bytes),
            MIN(scan_date)
        FROM files
    `).Scan(&total, &images, &videos, &size, &earliest)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}

	st := Stats{
		TotalFiles:  int(total.Int64),
		TotalImages: int(images.Int64),
		TotalVideos: int(videos.Int64),
		TotalSizeMB: media.BytesToMB(size.Int64),
	}
	if earliest.Valid {
		t := time.Unix(0, earliest.Int64)
		st.CreatedAt = &t
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(r rowScanner) (media.FileRecord, error) {
	var (
		rec                          media.FileRecord
		kind                         string
		width, height, taken         sql.NullInt64
		hash                         sql.NullString
		created, modified, scannedAt int64
	)
	err := r.Scan(
		&rec.Path, &rec.Filename, &rec.Size, &width, &height,
		&created, &modified, &kind, &hash, &taken, &scannedAt,
	)
	if err != nil {
		return media.FileRecord{}, err
	}

	rec.Kind = media.Kind(kind)
	rec.CreatedAt = time.Unix(0, created)
	rec.ModifiedAt = time.Unix(0, modified)
	rec.ScannedAt = time.Unix(0, scannedAt)
	rec.Fingerprint = hash.String
	if width.Valid {
		w := int(width.Int64)
		rec.Width = &w
	}
	if height.Valid {
		h := int(height.Int64)
		rec.Height = &h
	}
	if taken.Valid {
		t := time.Unix(0, taken.Int64)
		rec.TakenAt = &t
	}
	return rec, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

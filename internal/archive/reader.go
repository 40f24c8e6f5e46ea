// Package archive provides lazy, bounded traversal of untrusted zip
// archives. Entries are decoded one at a time; nothing is materialized
// beyond the per-entry content ceiling.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrArchiveOpen reports that the archive path is missing or the container
// format is invalid. It is the only global-fatal error in the scan pipeline.
var ErrArchiveOpen = errors.New("cannot open archive")

// Entry is one logical file record inside the archive. It is valid only
// for the duration of the traversal that produced it.
type Entry struct {
	Name           string
	Size           int64 // uncompressed bytes
	CompressedSize int64
	IsDirectory    bool

	file *zip.File
}

// Content decodes the entry up to limit bytes. Entries larger than limit
// must not be decoded; callers check Size first and catalogue oversized
// entries as metadata only.
func (e *Entry) Content(limit int64) (string, error) {
	if e.file == nil || e.IsDirectory {
		return "", fmt.Errorf("entry %s has no content stream", e.Name)
	}
	rc, err := e.file.Open()
	if err != nil {
		return "", fmt.Errorf("opening entry %s: %w", e.Name, err)
	}
	defer rc.Close() //nolint:errcheck // read-only stream

	// LimitReader guards against entries whose header lies about Size:
	// decompression stops at limit+1 regardless of the declared length.
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return "", fmt.Errorf("reading entry %s: %w", e.Name, err)
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("entry %s exceeds content limit %d", e.Name, limit)
	}
	return string(data), nil
}

// Reader traverses a zip archive lazily. It is finite and non-restartable:
// each Reader walks its archive exactly once.
type Reader struct {
	rc    *zip.ReadCloser
	files []*zip.File
	pos   int
}

// Open opens the archive at path. A missing path or invalid container
// yields an error wrapping ErrArchiveOpen.
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArchiveOpen, path, err)
	}
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArchiveOpen, path, err)
	}
	return &Reader{rc: rc, files: rc.File}, nil
}

// Next returns the next entry, or io.EOF when the archive is exhausted.
// The context is observed at each entry boundary so a stuck or
// adversarially large archive can be aborted between entries.
func (r *Reader) Next(ctx context.Context) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.pos >= len(r.files) {
		return nil, io.EOF
	}
	f := r.files[r.pos]
	r.pos++

	return &Entry{
		Name:           f.Name,
		Size:           int64(f.UncompressedSize64), //nolint:gosec // bounded by zip format
		CompressedSize: int64(f.CompressedSize64),   //nolint:gosec // bounded by zip format
		IsDirectory:    f.FileInfo().IsDir(),
		file:           f,
	}, nil
}

// Close releases the underlying archive handle. Safe to call once
// traversal is finished or abandoned.
func (r *Reader) Close() error {
	return r.rc.Close()
}

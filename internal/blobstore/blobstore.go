// Package blobstore owns the external blob directory and the thumbnail
// cache directory: it maps a content hash to an on-disk path, writes
// payloads atomically, and validates every storage_ref before it is trusted
// (spec §4.3).
package blobstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/scopyapp/scopy/internal/fs"
)

// ErrInvalidRef means a storage_ref failed validation against the blob
// root. RemoveBlob swallows it; ReadBlob and RemoveBlobByBasename return it
// to their callers.
var ErrInvalidRef = errors.New("invalid storage ref")

// identifierPattern matches the basename-minus-extension accepted by
// validateStorageRef: letters, digits, underscore, and hyphen only (covers
// both UUIDs and the "file_<hash>" thumbnail convention).
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store writes and reads external blobs and thumbnail cache files rooted at
// two directories on disk.
type Store struct {
	fs        fs.FS
	blobRoot  string
	thumbRoot string
}

// New constructs a Store. blobRoot holds externalized clipboard payloads;
// thumbRoot holds generated thumbnail PNGs. Both are created on first use.
func New(filesystem fs.FS, blobRoot, thumbRoot string) *Store {
	return &Store{
		fs:        filesystem,
		blobRoot:  filepath.Clean(blobRoot),
		thumbRoot: filepath.Clean(thumbRoot),
	}
}

// BlobRoot returns the external blob directory.
func (s *Store) BlobRoot() string { return s.blobRoot }

// ThumbRoot returns the thumbnail cache directory.
func (s *Store) ThumbRoot() string { return s.thumbRoot }

// WriteBlob atomically writes data as the external blob for id, named
// "<id>.<ext>" (ext excludes the dot; pass "" for no extension), and
// returns the storage_ref to persist on the row.
func (s *Store) WriteBlob(id, ext string, data []byte) (string, error) {
	if err := s.fs.MkdirAll(s.blobRoot, 0o755); err != nil {
		return "", fmt.Errorf("blobstore: create blob root: %w", err)
	}

	name := id
	if ext != "" {
		name += "." + ext
	}

	path := filepath.Join(s.blobRoot, name)

	if err := s.fs.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("blobstore: write blob: %w", err)
	}

	return path, nil
}

// ReadBlob reads the external blob at ref after validating it against the
// blob root.
func (s *Store) ReadBlob(ref string) ([]byte, error) {
	if err := s.ValidateStorageRef(ref); err != nil {
		return nil, err
	}

	data, err := s.fs.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("blobstore: read blob: %w", err)
	}

	return data, nil
}

// RemoveBlob deletes the external blob at ref. A ref that fails validation
// or no longer exists is a silent no-op, matching spec §4.3's "failures are
// hard skips, never errors escalated to callers".
func (s *Store) RemoveBlob(ref string) {
	if err := s.ValidateStorageRef(ref); err != nil {
		return
	}

	_ = s.fs.Remove(ref)
}

// ThumbnailPath returns the cache path for a content hash, following the
// "<thumb_root>/<hash>.png" (non-file) or "<thumb_root>/file_<hash>.png"
// (file items) convention (spec §4.3).
func (s *Store) ThumbnailPath(contentHash string, isFile bool) string {
	name := contentHash + ".png"
	if isFile {
		name = "file_" + contentHash + ".png"
	}

	return filepath.Join(s.thumbRoot, name)
}

// HasThumbnail reports whether a cached thumbnail already exists for the
// given content hash.
func (s *Store) HasThumbnail(contentHash string, isFile bool) (bool, error) {
	ok, err := s.fs.Exists(s.ThumbnailPath(contentHash, isFile))
	if err != nil {
		return false, fmt.Errorf("blobstore: check thumbnail: %w", err)
	}

	return ok, nil
}

// WriteThumbnail atomically writes PNG bytes to the cache path for
// contentHash.
func (s *Store) WriteThumbnail(contentHash string, isFile bool, png []byte) error {
	if err := s.fs.MkdirAll(s.thumbRoot, 0o755); err != nil {
		return fmt.Errorf("blobstore: create thumb root: %w", err)
	}

	path := s.ThumbnailPath(contentHash, isFile)
	if err := s.fs.WriteFileAtomic(path, png, 0o644); err != nil {
		return fmt.Errorf("blobstore: write thumbnail: %w", err)
	}

	return nil
}

// ListBlobBasenames lists the basenames currently present under the blob
// root, for the orphan sweep (spec §4.4).
func (s *Store) ListBlobBasenames() ([]string, error) {
	entries, err := s.fs.ReadDir(s.blobRoot)
	if err != nil {
		return nil, fmt.Errorf("blobstore: list blob root: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}

	return names, nil
}

// RemoveBlobByBasename removes a file directly under the blob root by
// basename, used by the orphan sweep once a basename has been confirmed
// unreferenced.
func (s *Store) RemoveBlobByBasename(basename string) error {
	if err := s.ValidateStorageRef(filepath.Join(s.blobRoot, basename)); err != nil {
		return err
	}

	if err := s.fs.Remove(filepath.Join(s.blobRoot, basename)); err != nil {
		return fmt.Errorf("blobstore: remove orphan: %w", err)
	}

	return nil
}

// ValidateStorageRef implements validate_storage_ref (spec §4.3): the
// basename minus extension must parse as a bare identifier, the basename
// must contain no path separator, the path must contain no ".." component
// anywhere, and the cleaned path must live under the blob root.
func (s *Store) ValidateStorageRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRef)
	}

	base := filepath.Base(ref)
	if strings.ContainsRune(base, '/') {
		return fmt.Errorf("%w: basename contains separator", ErrInvalidRef)
	}

	ext := filepath.Ext(base)
	ident := strings.TrimSuffix(base, ext)

	if !identifierPattern.MatchString(ident) {
		return fmt.Errorf("%w: basename is not a bare identifier", ErrInvalidRef)
	}

	for _, part := range strings.Split(filepath.ToSlash(ref), "/") {
		if part == ".." {
			return fmt.Errorf("%w: contains \"..\"", ErrInvalidRef)
		}
	}

	clean := filepath.Clean(ref)
	root := s.blobRoot

	if !strings.HasPrefix(clean, root+string(filepath.Separator)) {
		return fmt.Errorf("%w: outside blob root", ErrInvalidRef)
	}

	return nil
}

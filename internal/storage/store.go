// Package storage persists uploaded files on local disk under the configured
// upload root, one subdirectory per file kind.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind selects the subdirectory a file is stored in.
type Kind string

const (
	// KindImage holds blog images, served under /uploads/images.
	KindImage Kind = "images"
	// KindResource holds member resource files.
	KindResource Kind = "resources"
	// KindCarousel holds landing-page carousel images.
	KindCarousel Kind = "carousel"
)

var (
	// ErrInvalidExtension is returned for disallowed file extensions.
	ErrInvalidExtension = errors.New("storage: invalid file extension")
	// ErrFileTooLarge is returned when a file exceeds the configured cap.
	ErrFileTooLarge = errors.New("storage: file too large")
	// ErrEmptyFile is returned for zero-byte uploads.
	ErrEmptyFile = errors.New("storage: file is empty")
)

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {},
}

var resourceExtensions = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".txt": {}, ".zip": {}, ".rar": {},
	".png": {}, ".jpg": {}, ".jpeg": {},
}

var mimeByExtension = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
	".zip":  "application/zip",
	".rar":  "application/x-rar-compressed",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Store saves and serves uploaded files from local disk.
type Store struct {
	root    string
	maxSize int64
}

// NewStore creates the upload directories and returns a Store.
func NewStore(root string, maxSize int64) (*Store, error) {
	for _, kind := range []Kind{KindImage, KindResource, KindCarousel} {
		if err := os.MkdirAll(filepath.Join(root, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("storage: create dir %s: %w", kind, err)
		}
	}
	return &Store{root: root, maxSize: maxSize}, nil
}

// Root returns the upload root directory.
func (s *Store) Root() string {
	return s.root
}

// SavedFile describes a stored upload.
type SavedFile struct {
	Filename string
	Path     string
	Size     int64
	FileType string
	MimeType string
}

// Save validates and writes an upload, returning its generated filename and
// metadata. The caller owns removal on downstream failure.
func (s *Store) Save(kind Kind, originalFilename string, content io.Reader) (*SavedFile, error) {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	if !allowedExtension(kind, ext) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidExtension, ext)
	}

	filename := uniqueFilename(kind, ext)
	path := filepath.Join(s.root, string(kind), filename)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: create file: %w", err)
	}

	written, err := io.Copy(f, io.LimitReader(content, s.maxSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("storage: write file: %w", err)
	}
	if written == 0 {
		_ = os.Remove(path)
		return nil, ErrEmptyFile
	}
	if written > s.maxSize {
		_ = os.Remove(path)
		return nil, ErrFileTooLarge
	}

	return &SavedFile{
		Filename: filename,
		Path:     path,
		Size:     written,
		FileType: strings.TrimPrefix(ext, "."),
		MimeType: MimeType(originalFilename),
	}, nil
}

// Open returns a reader for a stored file.
func (s *Store) Open(kind Kind, filename string) (*os.File, error) {
	return os.Open(filepath.Join(s.root, string(kind), filepath.Base(filename)))
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Store) Remove(kind Kind, filename string) error {
	if filename == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.root, string(kind), filepath.Base(filename)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MimeType maps a filename extension to its MIME type.
func MimeType(filename string) string {
	if m, ok := mimeByExtension[strings.ToLower(filepath.Ext(filename))]; ok {
		return m
	}
	return "application/octet-stream"
}

func allowedExtension(kind Kind, ext string) bool {
	switch kind {
	case KindResource:
		_, ok := resourceExtensions[ext]
		return ok
	default:
		_, ok := imageExtensions[ext]
		return ok
	}
}

// uniqueFilename keeps the original naming scheme:
// <kind>_<timestamp>_<short-uuid><ext>.
func uniqueFilename(kind Kind, ext string) string {
	prefix := strings.TrimSuffix(string(kind), "s")
	return fmt.Sprintf("%s_%s_%s%s", prefix, time.Now().Format("20060102_150405"), uuid.NewString()[:8], ext)
}

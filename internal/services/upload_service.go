package services

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

// ErrInvalidFile marks uploads rejected by validation: empty, oversized or
// of a type outside the allow-list. Storage and sniffing failures are not
// wrapped with it; those are server-side faults.
var ErrInvalidFile = errors.New("invalid file")

// StoredFile describes a file persisted by the upload service
type StoredFile struct {
	Path     string // path on disk
	Name     string // original file name
	Size     int64
	MimeType string
	URL      string // public /uploads/... URL
}

// UploadService validates and stores multipart uploads under a fixed
// directory. File names are prefixed with the upload timestamp in epoch
// millis; collisions are only avoided by timestamp granularity, which is
// acceptable for this traffic profile.
type UploadService struct {
	dir    string
	logger *logrus.Logger
}

// NewUploadService creates the upload service and ensures the directory exists
func NewUploadService(dir string, logger *logrus.Logger) (*UploadService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &UploadService{dir: dir, logger: logger}, nil
}

// allowedMime reports whether a MIME type is acceptable for uploads:
// any image type, or a PDF.
func allowedMime(mime string) bool {
	return strings.HasPrefix(mime, "image/") || mime == "application/pdf"
}

// Store validates and persists a multipart file. The declared content type
// is checked first, then the stored bytes are sniffed; a mismatch that
// falls outside the allow-list rejects the upload.
func (s *UploadService) Store(file *multipart.FileHeader, maxSize int64) (*StoredFile, error) {
	if file.Size == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidFile)
	}
	if file.Size > maxSize {
		return nil, fmt.Errorf("%w: file exceeds maximum size of %d bytes", ErrInvalidFile, maxSize)
	}

	declared := file.Header.Get("Content-Type")
	if !allowedMime(declared) {
		return nil, fmt.Errorf("%w: unsupported file type %q: only images and PDF are accepted", ErrInvalidFile, declared)
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	name := StoredFileName(time.Now(), file.Filename)
	path := filepath.Join(s.dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	// Sniff the stored bytes; declared types are trivially spoofable.
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	if !allowedMime(detected.String()) {
		os.Remove(path)
		return nil, fmt.Errorf("%w: file content %q does not match an accepted type", ErrInvalidFile, detected.String())
	}

	return &StoredFile{
		Path:     path,
		Name:     file.Filename,
		Size:     file.Size,
		MimeType: detected.String(),
		URL:      "/uploads/" + name,
	}, nil
}

// Delete removes a stored file, logging rather than failing on error.
// Deletion is best-effort: the database row is authoritative.
func (s *UploadService) Delete(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.WithField("path", path).WithError(err).Warn("Failed to delete uploaded file")
	}
}

// DeleteAll best-effort deletes a batch of stored files
func (s *UploadService) DeleteAll(paths []string) {
	for _, p := range paths {
		s.Delete(p)
	}
}

// Dir returns the upload directory
func (s *UploadService) Dir() string { return s.dir }

// PublicURL derives the public URL for a stored path
func PublicURL(path string) string {
	return "/uploads/" + filepath.Base(path)
}

// StoredFileName builds the on-disk name: epoch millis, a dash, then the
// sanitized original name.
func StoredFileName(now time.Time, original string) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), sanitizeFileName(original))
}

// sanitizeFileName strips path separators and characters unsafe in URLs
func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return "file"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}

// Package blobstore keeps uploaded attachments and resolves their references
// to public URLs.
package blobstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/penpals/internal/logging"
)

// ErrUnsupportedType is returned by Save for anything that is not an image.
var ErrUnsupportedType = errors.New("unsupported attachment type")

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// LocalStore saves blobs under a directory on disk. A reference is the
// generated file name; it never contains a path separator.
type LocalStore struct {
	basePath string
	baseURL  string
}

func NewLocalStore(basePath, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob directory %s: %w", basePath, err)
	}
	return &LocalStore{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save copies r to a new blob and returns its reference. Only image
// extensions are accepted.
func (s *LocalStore) Save(filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w %q", ErrUnsupportedType, ext)
	}

	ref := uuid.New().String() + ext
	dstPath := filepath.Join(s.basePath, ref)
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("creating blob: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		_ = os.Remove(dstPath)
		return "", fmt.Errorf("writing blob: %w", err)
	}

	logging.Debug("Blob saved", map[string]interface{}{"ref": ref, "filename": filename})
	return ref, nil
}

func (s *LocalStore) URL(ref string) string {
	if ref == "" {
		return ""
	}
	return s.baseURL + "/" + ref
}

// Path maps a reference back to its file, rejecting anything that could
// escape the base directory.
func (s *LocalStore) Path(ref string) (string, bool) {
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return "", false
	}
	return filepath.Join(s.basePath, ref), true
}

func (s *LocalStore) Delete(ref string) error {
	path, ok := s.Path(ref)
	if !ok {
		return fmt.Errorf("invalid blob reference %q", ref)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// UploadsURLPrefix is the public path under which uploaded images are served
const UploadsURLPrefix = "/uploads/"

var allowedImageExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// DiskImageStore writes uploaded images into a directory served at UploadsURLPrefix
type DiskImageStore struct {
	dir string
}

func NewDiskImageStore(dir string) (*DiskImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &DiskImageStore{dir: dir}, nil
}

// Dir returns the directory images are written to
func (s *DiskImageStore) Dir() string { return s.dir }

// Upload stores r under a fresh name keeping the original extension and returns its public path
func (s *DiskImageStore) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedImageExt[ext] {
		return "", fmt.Errorf("unsupported image type %q", ext)
	}

	name := uuid.NewString() + ext
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close image file: %w", err)
	}
	return UploadsURLPrefix + name, nil
}

// Remove deletes a previously uploaded image. Paths outside the upload prefix
// (external URLs, defaults) and already missing files are ignored.
func (s *DiskImageStore) Remove(path string) error {
	if !strings.HasPrefix(path, UploadsURLPrefix) {
		return nil
	}
	name := filepath.Base(strings.TrimPrefix(path, UploadsURLPrefix))
	if name == "." || name == "/" || name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	return nil
}

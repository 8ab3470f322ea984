// Package upload stores product images on local disk.
package upload

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

// PublicPrefix is the URL path under which saved files are served.
const PublicPrefix = "/uploads/"

var (
	// ErrTooLarge is returned when a file exceeds the configured limit.
	ErrTooLarge        = errors.New("upload: file too large")
	ErrUnsupportedType = errors.New("upload: unsupported image type")
)

var allowedExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// DiskStore writes uploaded files into a single directory.
type DiskStore struct {
	dir      string
	maxBytes int64
	now      func() time.Time
}

// NewDiskStore creates dir if needed.
func NewDiskStore(dir string, maxBytes int64) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload: create dir %s: %w", dir, err)
	}
	return &DiskStore{dir: dir, maxBytes: maxBytes, now: time.Now}, nil
}

// Dir returns the directory files are written to.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save copies r into a new file named "<unix-millis>-<uuid><ext>" and returns
// its public path. originalName only contributes the extension.
func (s *DiskStore) Save(originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExt[ext] {
		return "", fmt.Errorf("%w %q", ErrUnsupportedType, ext)
	}
	name := fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), uuid.NewString(), ext)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("upload: create %s: %w", name, err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("upload: write %s: %w", name, err)
	}
	return PublicPrefix + name, nil
}

// Remove deletes a file previously returned by Save. A missing file is not
// an error.
func (s *DiskStore) Remove(publicPath string) error {
	name := strings.TrimPrefix(publicPath, PublicPrefix)
	if name == "" || name == publicPath || name != filepath.Base(name) {
		return fmt.Errorf("upload: %q is not an uploaded file", publicPath)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("upload: remove %s: %w", name, err)
	}
	return nil
}

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskStorage keeps uploads on the local filesystem for development setups without a bucket.
type DiskStorage struct {
	dir       string
	urlPrefix string
}

// NewDiskStorage stores files under dir and addresses them beneath urlPrefix.
func NewDiskStorage(dir, urlPrefix string) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &DiskStorage{dir: dir, urlPrefix: "/" + strings.Trim(urlPrefix, "/")}, nil
}

// Dir is the directory files are published into.
func (d *DiskStorage) Dir() string { return d.dir }

// Store copies localPath into the media directory and removes the original.
func (d *DiskStorage) Store(ctx context.Context, localPath string) (string, error) {
	defer removeQuietly(localPath)

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrUploadFailed, localPath, err)
	}
	defer src.Close()

	name := objectKey("", localPath)
	dst, err := os.OpenFile(filepath.Join(d.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %w", ErrUploadFailed, name, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("%w: copy %s: %w", ErrUploadFailed, name, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("%w: close %s: %w", ErrUploadFailed, name, err)
	}

	return d.urlPrefix + "/" + name, nil
}

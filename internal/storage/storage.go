package storage

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrUploadFailed reports that an uploaded asset could not be persisted.
var ErrUploadFailed = errors.New("upload failed")

// objectKey derives a collision-free key for a local upload, keeping its extension.
func objectKey(prefix, localPath string) string {
	ext := strings.ToLower(filepath.Ext(localPath))
	return prefix + uuid.NewString() + ext
}

// sniffContentType reads the first bytes of f and rewinds it.
func sniffContentType(f *os.File) (string, error) {
	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return "", fmt.Errorf("read %s: %w", f.Name(), err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return "", fmt.Errorf("rewind %s: %w", f.Name(), err)
	}
	return http.DetectContentType(buf[:n]), nil
}

// removeQuietly deletes the temporary upload regardless of outcome.
func removeQuietly(path string) {
	_ = os.Remove(path)
}

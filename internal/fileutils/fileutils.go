// Package fileutils provides utility functions for handling files.
package fileutils

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// AtomicWrite writes data to a file of fs atomically, creating its parent directories.
// If the file already exists, then it will be overwritten.
// Not atomic on Windows.
func AtomicWrite(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("could not create parent directory: %v", err)
	}

	tmp, err := afero.TempFile(fs, dir, "tmp-*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temporary file: %v", err)
	}
	defer func() {
		_ = tmp.Close()
		if err := fs.Remove(tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to remove temporary file", "file", tmp.Name(), "error", err)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("could not write to temporary file: %v", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close temporary file: %v", err)
	}

	if err := fs.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("could not rename temporary file: %v", err)
	}
	return nil
}

// LocalPath returns name, cleaned, if it is a relative path which stays within its root.
func LocalPath(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." {
		return "", errors.New("empty path")
	}
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("path %q escapes the output directory", name)
	}
	return clean, nil
}

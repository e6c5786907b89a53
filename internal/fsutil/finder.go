// Package fsutil provides file system utility functions: finding files,
// marking generated scripts executable, and answering "does this PFN
// exist" for local paths and object storage.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FindFilesByExtension recursively searches the given root path for all files ending
// with the specified extension. It returns a slice of their full paths.
func FindFilesByExtension(rootPath string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}

// MakeExecutable adds the execute bits (for everyone who can read) to every
// file below rootPath ending in extension. It keeps going after a failure
// and returns the number of files changed plus all errors joined.
func MakeExecutable(rootPath, extension string) (int, error) {
	files, err := FindFilesByExtension(rootPath, extension)
	if err != nil {
		return 0, fmt.Errorf("scanning %s: %w", rootPath, err)
	}

	var errs []error
	changed := 0
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		mode := info.Mode().Perm()
		mode |= (mode & 0444) >> 2
		if err := os.Chmod(f, mode); err != nil {
			errs = append(errs, err)
			continue
		}
		changed++
	}
	return changed, errors.Join(errs...)
}

// EnsureDir creates dir (and parents) if needed and verifies it is a
// writable directory.
func EnsureDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("%s exists but is not a directory", dir)
		}
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	default:
		return fmt.Errorf("accessing %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := tmp.Name()
	_ = tmp.Close()
	return os.Remove(name)
}

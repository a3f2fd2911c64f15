// Package filex wraps the local-filesystem details the client cares about:
// permission-restricted state directories and modification times at the
// millisecond resolution the service records.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// EnsurePrivateDir creates dir readable only by the owner. Credentials and
// batch state live in such directories.
func EnsurePrivateDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// EnsureParentDir creates the parent directory of path so the file itself
// can be written next.
func EnsureParentDir(path string) error {
	return EnsureDir(filepath.Dir(path))
}

// ModTimeMillis returns the file's modification time in milliseconds since
// the epoch.
func ModTimeMillis(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return fi.ModTime().UnixMilli(), nil
}

// SetModTimeMillis stamps the file with a modification time in milliseconds
// since the epoch. Zero and negative values mean "unknown" and leave the
// file untouched.
func SetModTimeMillis(path string, ms int64) error {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms)
	if err := os.Chtimes(path, t, t); err != nil {
		return fmt.Errorf("chtimes %s: %w", path, err)
	}
	return nil
}

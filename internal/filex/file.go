// Package filex holds small filesystem helpers shared by the engine.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates dir, and any missing parents, with owner-only
// permissions. A relative dir is resolved against the working directory.
// The absolute path is returned.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}
	return abs, nil
}

// EnsureParentDir makes sure the directory holding file exists.
func EnsureParentDir(file string) error {
	_, err := EnsureDir(filepath.Dir(file))
	return err
}

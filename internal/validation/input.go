// Package validation holds the path-safety checks config loading relies on.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidPath indicates an invalid or unsafe path.
	ErrInvalidPath = fmt.Errorf("invalid or unsafe path")

	// ErrPathTraversal indicates a path traversal attempt.
	ErrPathTraversal = fmt.Errorf("path traversal attempt detected")

	// ErrAbsolutePathRequired indicates an absolute path was required but not provided.
	ErrAbsolutePathRequired = fmt.Errorf("absolute path required")
)

// IsPathSafe rejects an empty path, a null byte, or the substring ".."
// anywhere in the path, not only as a whole segment (checked
// both before and after filepath.Clean, since cleaning alone can resolve a
// traversal without eliminating it from the original string's intent).
func IsPathSafe(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("%w: contains null byte", ErrInvalidPath)
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("%w: contains parent directory reference", ErrPathTraversal)
	}
	if strings.Contains(filepath.Clean(path), "..") {
		return fmt.Errorf("%w: cleaned path contains ..", ErrPathTraversal)
	}
	return nil
}

// ValidateConfigPath validates a configuration file path. Config files must
// be absolute to prevent ambiguity about which working directory they were
// resolved against.
func ValidateConfigPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty config path", ErrInvalidPath)
	}
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: config path must be absolute", ErrAbsolutePathRequired)
	}
	if err := IsPathSafe(path); err != nil {
		return "", err
	}
	return filepath.Clean(path), nil
}

// Package security validates client-supplied file names and paths
// before they touch the filesystem.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory checks that a candidate path stays inside
// the given directory. The check is lexical, so it works against
// abstracted filesystems; callers must build the path from trusted
// components plus sanitized client input.
func ValidatePathWithinDirectory(path, dir string) error {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", path, dir)
	}
	return nil
}

// SafeExt extracts the extension of a client-supplied filename, reduced
// to something safe to embed in a stored filename. Anything that is not
// a plain alphanumeric extension falls back to fallback.
func SafeExt(filename, fallback string) string {
	ext := filepath.Ext(filepath.Base(filename))
	if ext == "" || ext == "." {
		return fallback
	}
	for _, r := range ext[1:] {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return fallback
		}
	}
	return ext
}

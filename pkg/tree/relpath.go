package tree

import (
	"fmt"
	"path/filepath"
	"strings"
)

// relativePath expresses path relative to root. It never touches the file
// system, since the directory may already be gone. "." is the root itself.
func relativePath(root, path string) (string, error) {
	if rel, err := filepath.Rel(root, path); err == nil && !escapes(rel) {
		return rel, nil
	}

	if path == root {
		return ".", nil
	}
	if prefix := withSeparator(root); strings.HasPrefix(path, prefix) {
		return path[len(prefix):], nil
	}

	return "", fmt.Errorf("%w: %q is not below %q", ErrDiverged, path, root)
}

// within reports whether path is base or lies below it.
func within(path, base string) bool {
	return path == base || strings.HasPrefix(path, withSeparator(base))
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel)
}

func withSeparator(dir string) string {
	if strings.HasSuffix(dir, string(filepath.Separator)) {
		return dir
	}
	return dir + string(filepath.Separator)
}

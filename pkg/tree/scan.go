package tree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// scan enumerates dir and registers a watch for it and every directory
// below it that the skip list allows. The walk completes before the first
// watch is registered, so directories created in between are not seen
// until their own creation event arrives, if at all.
//
// Only a failure to enumerate dir itself is returned. Registration
// failures are logged and the directory is skipped.
func (t *Tree) scan(dir string) (int, error) {
	var dirs []string

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && d == nil {
				return err
			}
			t.logger.Debug("skipping unreadable directory", "path", path, "error", err)
			return nil
		}

		if !d.IsDir() {
			return nil
		}
		if path != t.root && t.skipped(path) {
			t.logger.Debug("skipping directory", "path", path)
			return fs.SkipDir
		}

		t.logger.Trace("visiting directory", "path", path)
		dirs = append(dirs, path)
		return nil
	})
	if walkErr != nil {
		return 0, fmt.Errorf("failed to enumerate %s: %w", dir, walkErr)
	}

	registered := 0
	for _, path := range dirs {
		if _, err := t.register(path); err != nil {
			if path == t.root {
				return registered, err
			}
			t.logger.Warn("failed to watch directory, skipping",
				"path", path,
				"error", err)
			continue
		}
		registered++
	}

	t.logger.Debug("scanned directory", "path", dir, "registered", registered)
	return registered, nil
}

// register watches path and records it. A handle the tree already knows
// means the inode was already watched under another path (a directory
// moved within the tree); the existing node takes the new path.
func (t *Tree) register(path string) (*node, error) {
	h, err := t.src.Watch(path)
	if err != nil {
		return nil, err
	}

	t.gen++
	n, ok := t.byHandle[h]
	if ok {
		t.logger.Debug("watch handle reused",
			"wd", h,
			"old_path", n.path,
			"new_path", path)
		if t.byPath[n.path] == n {
			delete(t.byPath, n.path)
		}
		delete(t.pending, h)
		if n.state == statePendingUnmount {
			t.unmounting--
		}
		n.state = stateActive
		n.deletedAt = 0
	} else {
		n = &node{handle: h}
		t.byHandle[h] = n
	}
	n.path = path
	n.gen = t.gen
	t.byPath[path] = n

	t.logger.Trace("monitoring directory", "path", path, "wd", h)
	return n, nil
}

// skipped reports whether path contains any skip pattern.
func (t *Tree) skipped(path string) bool {
	for _, pattern := range t.skip {
		if pattern != "" && strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}

// resolveRoot expands a leading ~ or ~/ and makes root absolute. Other
// users' homes (~name) are not expanded.
func resolveRoot(root string) (string, error) {
	if root == "" {
		return "", errors.New("root directory is empty")
	}

	if root == "~" || strings.HasPrefix(root, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			root = filepath.Join(home, root[1:])
		}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

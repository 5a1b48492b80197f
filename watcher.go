package main

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// newFSWatcher watches the given directories. Files are watched through
// their directory so that atomic replacements are seen.
func newFSWatcher(dirs ...string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, d := range dirs {
		d = filepath.Clean(d)
		if seen[d] {
			continue
		}
		seen[d] = true
		if err := watcher.Add(d); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	return watcher, nil
}

// isCreate reports whether ev created path.
func isCreate(ev fsnotify.Event, path string) bool {
	return filepath.Clean(ev.Name) == filepath.Clean(path) && ev.Op&fsnotify.Create == fsnotify.Create
}

// configMapData is the symlink a Kubernetes ConfigMap volume swaps on
// update. The files it mounts are links through it and never change
// themselves.
const configMapData = "..data"

// isChange reports whether ev modified or replaced path, either directly or
// through the ConfigMap data link in its directory.
func isChange(ev fsnotify.Event, path string) bool {
	path = filepath.Clean(path)
	name := filepath.Clean(ev.Name)
	switch name {
	case path:
		return ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
	case filepath.Join(filepath.Dir(path), configMapData):
		return ev.Op&(fsnotify.Create|fsnotify.Rename) != 0
	}
	return false
}

package verify

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates cache entries when their backing file changes on
// disk. Directory watches are created on demand and deduplicated per
// directory.
type Watcher struct {
	cache *Cache
	fsw   *fsnotify.Watcher

	mu      sync.Mutex
	watched map[string]bool

	done chan struct{}
}

// NewWatcher starts a Watcher backed by an OS-level fsnotify watcher. The
// caller must call Close to release the underlying file descriptor.
func NewWatcher(cache *Cache) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		cache:   cache,
		fsw:     fsw,
		watched: make(map[string]bool),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// WatchFile ensures the directory containing path is watched. Safe to call
// repeatedly; a directory is only ever added to the underlying watcher once.
func (w *Watcher) WatchFile(path string) error {
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.watched[dir] = true
	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.cache.RemoveByPath(event.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// File-watcher failures are logged and absorbed, never propagated.
			slog.Warn("verification cache watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher and releases its file descriptor.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

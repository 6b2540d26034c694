package runner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher monitors one script file and invokes a callback whenever the
// underlying file is modified. Its lifecycle is tied to the Runner that
// owns it.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func()
}

// NewFileWatcher creates a watcher for the file at path. fsnotify watches
// directories more reliably than single files (editors often replace the
// file on save), so the parent directory is watched and events are
// filtered down to the file itself.
func NewFileWatcher(path string, onChange func()) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file system watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	return &FileWatcher{
		watcher:  watcher,
		path:     filepath.Clean(path),
		onChange: onChange,
	}, nil
}

// Start begins delivering change callbacks until the context is cancelled
// or the watcher is closed.
func (fw *FileWatcher) Start(ctx context.Context) {
	go fw.watch(ctx)
}

func (fw *FileWatcher) watch(ctx context.Context) {
	defer slog.Debug("File watcher stopped", "path", fw.path)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", "path", fw.path, "error", err)
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != fw.path {
		return
	}

	// Write covers in-place saves; Create and Rename cover editors that
	// write a temp file and move it over the original.
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	slog.Debug("Script file changed", "path", fw.path, "op", event.Op.String())
	fw.onChange()
}

// Close stops the watcher.
func (fw *FileWatcher) Close() error {
	return fw.watcher.Close()
}

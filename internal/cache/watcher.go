package cache

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Invalidator drops cached data for a source file.
type Invalidator interface {
	Invalidate(path string) int
}

// Watcher invalidates cached audio when a watched source file is written,
// replaced or removed.
type Watcher struct {
	fs       *fsnotify.Watcher
	target   Invalidator
	log      *log.Logger
	onChange func(path string)
}

// NewWatcher creates a watcher that invalidates entries in target. onChange,
// when non-nil, is called with the cleaned path of every changed file.
func NewWatcher(target Invalidator, logger *log.Logger, onChange func(path string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Watcher{fs: fw, target: target, log: logger, onChange: onChange}, nil
}

// Add starts watching dir.
func (w *Watcher) Add(dir string) error {
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("error adding dir to fsnotify watcher: %w", err)
	}
	w.log.Debug("fsnotify watching dir", "dir", dir)
	return nil
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			path := filepath.Clean(event.Name)
			w.log.Debug("fsnotify event", "file", path, "event", event.Op)
			w.target.Invalidate(path)
			if w.onChange != nil {
				w.onChange(path)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Debug("fsnotify error", "error", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

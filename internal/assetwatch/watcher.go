// Package assetwatch reloads the installed model when its file changes on disk.
package assetwatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gyroview/internal/logger"
)

// DefaultDebounce is how long the file must stay quiet before a change is reported.
// Exporters typically write a model in several bursts.
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches one file at a time. It watches the file's directory rather than the file
// itself so editors that save by rename are still seen.
type Watcher struct {
	fs       *fsnotify.Watcher
	log      *logger.Logger
	debounce time.Duration
	onChange func(path string)

	mu   sync.Mutex
	dir  string
	file string
}

// New creates a watcher. onChange runs on the Run goroutine; callers hand work to the event loop from there.
func New(log *logger.Logger, debounce time.Duration, onChange func(path string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("assetwatch: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{fs: fw, log: log, debounce: debounce, onChange: onChange}, nil
}

// Watch switches the watched file to path. Watching the same file again is a no-op.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if abs == w.file {
		return nil
	}
	if dir != w.dir {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("assetwatch: %w", err)
		}
		if w.dir != "" {
			_ = w.fs.Remove(w.dir)
		}
		w.dir = dir
	}
	w.file = abs
	w.log.Logf("Watching %s for changes", abs)
	return nil
}

// Current returns the watched file, or "".
func (w *Watcher) Current() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file
}

func (w *Watcher) matches(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return abs == w.file
}

// Run delivers debounced change notifications until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !w.matches(ev.Name) {
				continue
			}
			timer.Reset(w.debounce)
		case <-timer.C:
			if file := w.Current(); file != "" && w.onChange != nil {
				w.log.Logf("%s changed, reloading", filepath.Base(file))
				w.onChange(file)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warnf("assetwatch: %v", err)
		}
	}
}

// Package watcher watches drop directories for PDF files and feeds them to
// the ingestion pipeline.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches directories for PDF files. onIngest fires (debounced) for
// new or changed files, onRemove for deleted ones.
type Watcher struct {
	roots     []string
	recursive bool
	onIngest  func(path string)
	onRemove  func(path string)
	debounce  time.Duration
	logger    *zap.Logger

	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timers   map[string]*time.Timer
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher over the given root directories.
func NewWatcher(roots []string, recursive bool, onIngest, onRemove func(path string), opts ...Option) *Watcher {
	w := &Watcher{
		roots:     roots,
		recursive: recursive,
		onIngest:  onIngest,
		onRemove:  onRemove,
		debounce:  defaultDebounce,
		logger:    zap.NewNop(),
		timers:    make(map[string]*time.Timer),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. Existing PDF files under the roots are ingested once
// at startup so a restart picks up files dropped while the process was down.
// Runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	for _, root := range w.roots {
		if err := w.addRootLocked(root); err != nil {
			_ = w.watcher.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()

	w.logger.Info("Watching directories",
		zap.Strings("roots", w.roots),
		zap.Bool("recursive", w.recursive))
	for _, root := range w.roots {
		w.syncExisting(root)
	}
	go w.run(ctx)
	return nil
}

// Stop stops the watcher and cancels pending debounce timers.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		for path, t := range w.timers {
			t.Stop()
			delete(w.timers, path)
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		w.mu.Unlock()
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watch error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if w.recursive {
				w.watchSubtree(path)
				w.syncExisting(path)
			}
			return
		}
		if isPDF(path) {
			w.scheduleIngest(path)
		}
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancelPending(path)
		if isPDF(path) && w.onRemove != nil {
			w.onRemove(path)
		}
	}
}

// scheduleIngest coalesces rapid write events into a single callback per path.
func (w *Watcher) scheduleIngest(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.logger.Debug("ingesting watched file", zap.String("path", path))
		if w.onIngest != nil {
			w.onIngest(path)
		}
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

// addRootLocked registers a root (creating it if missing) and, when
// recursive, every directory beneath it.
func (w *Watcher) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	}
	if !w.recursive {
		return w.watcher.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

// watchSubtree adds a directory created after startup, with its children.
func (w *Watcher) watchSubtree(dir string) {
	w.mu.Lock()
	watcher := w.watcher
	w.mu.Unlock()
	if watcher == nil {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := watcher.Add(path); err != nil {
				w.logger.Debug("failed to watch directory", zap.String("path", path), zap.Error(err))
			}
		}
		return nil
	})
}

// syncExisting schedules ingestion for PDF files already on disk.
func (w *Watcher) syncExisting(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if !w.recursive && filepath.Clean(path) != filepath.Clean(root) {
				return fs.SkipDir
			}
			return nil
		}
		if isPDF(path) {
			w.scheduleIngest(path)
		}
		return nil
	})
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"recast/internal/shared/observability"
	"recast/internal/shared/util"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher batches file system changes under a root and hands them to a
// callback once the debounce window has passed without new events.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	root       string
	debounce   time.Duration
	exclude    *util.GlobSet
	accept     func(path string) bool
	limiter    *util.Limiter
	onChange   func([]string)
	callbackMu sync.Mutex

	pending   map[string]time.Time
	pendingMu sync.Mutex
	timer     *time.Timer
	closed    bool
}

// NewWatcher creates a watcher. exclude patterns are matched against paths
// relative to root.
func NewWatcher(root string, debounce time.Duration, exclude *util.GlobSet, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsw,
		root:      abs,
		debounce:  debounce,
		exclude:   exclude,
		onChange:  onChange,
		pending:   make(map[string]time.Time),
	}, nil
}

// SetFilter restricts reported files to those accept returns true for.
func (w *Watcher) SetFilter(accept func(path string) bool) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.accept = accept
}

// SetLimiter throttles callbacks. A batch that is not allowed stays pending
// and is retried once the limiter has a token again.
func (w *Watcher) SetLimiter(l *util.Limiter) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.limiter = l
}

func (w *Watcher) SetDebounce(debounce time.Duration) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.debounce = debounce
}

func (w *Watcher) Watch(paths []string) error {
	if len(paths) == 0 {
		paths = []string{w.root}
	}
	for _, path := range paths {
		if err := w.watchRecursive(path); err != nil {
			return err
		}
	}

	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if w.excluded(path) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}

		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.excluded(event.Name) {
						if err := w.watchRecursive(event.Name); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						} else {
							w.enqueueExistingFiles(event.Name)
						}
					}
					continue
				}
			}

			if !w.wanted(event.Name) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = time.Now()
	w.resetTimerLocked()
}

func (w *Watcher) resetTimerLocked() {
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	if !w.limiter.Allow(1) {
		wait := max(w.limiter.Delay(), w.debounce)
		slog.Debug("watch batch throttled", "pending", len(w.pending), "retry_in", wait)
		if !w.closed {
			w.timer = time.AfterFunc(wait, w.flushChanges)
		}
		w.pendingMu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	slices.Sort(paths)
	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

func (w *Watcher) excluded(path string) bool {
	rel := util.RelSlash(w.root, path)
	if rel == "." {
		return false
	}
	return w.exclude.Match(rel)
}

func (w *Watcher) wanted(path string) bool {
	if w.excluded(path) {
		return false
	}
	w.pendingMu.Lock()
	accept := w.accept
	w.pendingMu.Unlock()
	return accept == nil || accept(path)
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if !w.wanted(path) {
			return nil
		}
		w.scheduleChange(path)
		return nil
	})
}

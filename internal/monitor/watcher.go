package monitor

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"fleetsync/pkg/logging"
)

// ConfigWatcher signals when the fleet document changes on disk.
//
// The parent directory is watched rather than the file, so editors and
// stores that replace the file by rename keep being observed. Bursts of
// events within the debounce interval produce one signal.
type ConfigWatcher struct {
	mu sync.Mutex

	path     string
	debounce time.Duration

	watcher *fsnotify.Watcher
	timer   *time.Timer
	changes chan struct{}
	stopCh  chan struct{}
	running bool
}

// NewConfigWatcher creates a watcher for the document at path.
func NewConfigWatcher(path string, debounce time.Duration) *ConfigWatcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &ConfigWatcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		changes:  make(chan struct{}, 1),
	}
}

// Changes returns the signal channel. It is never closed.
func (w *ConfigWatcher) Changes() <-chan struct{} {
	return w.changes
}

// Start begins watching until ctx is cancelled or Stop is called.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return err
	}

	w.watcher = watcher
	w.stopCh = make(chan struct{})
	w.running = true
	go w.processEvents(ctx, watcher, w.stopCh)

	logging.Info("ConfigWatcher", "Watching %s for changes", w.path)
	return nil
}

func (w *ConfigWatcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher, stopCh <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-stopCh:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.schedule()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("ConfigWatcher", err, "Filesystem watcher error")
		}
	}
}

// schedule restarts the debounce timer.
func (w *ConfigWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.emit)
}

func (w *ConfigWatcher) emit() {
	select {
	case w.changes <- struct{}{}:
		logging.Debug("ConfigWatcher", "%s changed", w.path)
	default:
		// A signal is already pending.
	}
}

// Stop ends watching. It is safe to call more than once.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if err := w.watcher.Close(); err != nil {
		logging.Error("ConfigWatcher", err, "Error closing filesystem watcher")
	}
	w.watcher = nil
	logging.Debug("ConfigWatcher", "Stopped watching %s", w.path)
}

package session

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"dlshell/internal/logging"
	"dlshell/internal/workspace"

	"github.com/fsnotify/fsnotify"
)

// WatcherStats counts watcher activity.
type WatcherStats struct {
	Created     int
	Modified    int
	Removed     int
	Referenced  int
	Errors      int
	LastEvent   time.Time
	LastPath    string
	LastEventOp string
}

// IncludeWatcher follows the include area. A new include artifact is
// referenced from the cache include file, and every change drops the
// registry's cached scan of the changed file.
type IncludeWatcher struct {
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	layout   workspace.Layout
	registry *Registry
	ext      string
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	stats    WatcherStats

	// OnChange, when set, is called after each handled event.
	OnChange func(path string, op fsnotify.Op)
}

// NewIncludeWatcher creates a watcher over layout's include area.
func NewIncludeWatcher(layout workspace.Layout, registry *Registry, ext string) (*IncludeWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if ext == "" {
		ext = ".dl"
	}
	return &IncludeWatcher{
		watcher:  w,
		layout:   layout,
		registry: registry,
		ext:      ext,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It does not block.
func (iw *IncludeWatcher) Start(ctx context.Context) error {
	iw.mu.Lock()
	if iw.running {
		iw.mu.Unlock()
		return nil
	}
	if err := iw.watcher.Add(iw.layout.Include); err != nil {
		iw.mu.Unlock()
		return err
	}
	iw.running = true
	iw.mu.Unlock()

	logging.Watch("watching %s", iw.layout.Include)
	go iw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit. A watcher
// that never started only releases its fsnotify handle.
func (iw *IncludeWatcher) Stop() {
	iw.mu.Lock()
	wasRunning := iw.running
	iw.running = false
	iw.mu.Unlock()

	if wasRunning {
		close(iw.stopCh)
		<-iw.doneCh
	}
	if err := iw.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("error closing watcher: %v", err)
	}
	logging.Watch("stopped")
}

// Stats returns a snapshot of the watcher's counters.
func (iw *IncludeWatcher) Stats() WatcherStats {
	iw.mu.RLock()
	defer iw.mu.RUnlock()
	return iw.stats
}

func (iw *IncludeWatcher) run(ctx context.Context) {
	defer close(iw.doneCh)

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("context cancelled")
			return

		case <-iw.stopCh:
			return

		case event, ok := <-iw.watcher.Events:
			if !ok {
				return
			}
			iw.handleEvent(event)

		case err, ok := <-iw.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchWarn("watch error: %v", err)
			iw.mu.Lock()
			iw.stats.Errors++
			iw.mu.Unlock()
		}
	}
}

func (iw *IncludeWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Ext(event.Name) != iw.ext {
		return
	}

	var op string
	switch {
	case event.Has(fsnotify.Create):
		op = "create"
	case event.Has(fsnotify.Write):
		op = "modify"
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		op = "remove"
	default:
		return
	}
	logging.WatchDebug("%s event for %s", op, event.Name)

	if iw.registry != nil {
		iw.registry.Invalidate(event.Name)
	}

	referenced := false
	if op == "create" {
		added, err := AddInclude(iw.layout, filepath.Base(event.Name))
		if err != nil {
			logging.WatchWarn("failed to reference %s: %v", event.Name, err)
		}
		referenced = added
	}

	iw.mu.Lock()
	iw.stats.LastEvent = time.Now()
	iw.stats.LastPath = event.Name
	iw.stats.LastEventOp = op
	switch op {
	case "create":
		iw.stats.Created++
	case "modify":
		iw.stats.Modified++
	case "remove":
		iw.stats.Removed++
	}
	if referenced {
		iw.stats.Referenced++
	}
	cb := iw.OnChange
	iw.mu.Unlock()

	if cb != nil {
		cb(event.Name, event.Op)
	}
}

package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadFunc is invoked after definition files settle following a change.
type ReloadFunc func() error

// DefinitionsWatcher watches the action definitions directory and triggers
// a reload when YAML files change. Events are debounced since editors and
// deploy tools write files in several bursts.
type DefinitionsWatcher struct {
	dir      string
	reload   ReloadFunc
	watcher  *fsnotify.Watcher
	debounce time.Duration
	stopCh   chan struct{}
	logger   *zap.Logger

	mu      sync.Mutex
	started bool
}

// NewDefinitionsWatcher creates a watcher for dir. Start must be called to
// begin delivery.
func NewDefinitionsWatcher(dir string, reload ReloadFunc, logger *zap.Logger) (*DefinitionsWatcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("definitions directory cannot be empty")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	return &DefinitionsWatcher{
		dir:      dir,
		reload:   reload,
		watcher:  watcher,
		debounce: 2 * time.Second,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}, nil
}

// Start begins watching for definition changes.
func (w *DefinitionsWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.started = true
	go w.loop()

	w.logger.Info("Watching action definitions", zap.String("dir", w.dir))
	return nil
}

// Stop halts the watcher.
func (w *DefinitionsWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return nil
	}
	close(w.stopCh)
	w.started = false
	return w.watcher.Close()
}

func isDefinitionFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func (w *DefinitionsWatcher) loop() {
	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isDefinitionFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("Definition file changed",
				zap.String("file", event.Name),
				zap.String("op", event.Op.String()),
			)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerCh:
			timer = nil
			timerCh = nil
			if err := w.reload(); err != nil {
				w.logger.Error("Definition reload failed", zap.Error(err))
			} else {
				w.logger.Info("Definitions reloaded")
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Definitions watcher error", zap.Error(err))
		}
	}
}

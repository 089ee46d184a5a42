package vocabulary

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Registry when files in its lexicon directory change.
// Bursts of events (editors write, rename and chmod in quick succession) are
// collapsed into one reload.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	timer     *time.Timer
	callbacks []func(*Vocabulary)
}

// NewWatcher watches the registry's directory.
func NewWatcher(reg *Registry, debounce time.Duration) (*Watcher, error) {
	if reg.Dir() == "" {
		return nil, fmt.Errorf("vocabulary registry has no directory to watch")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if err := fw.Add(reg.Dir()); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", reg.Dir(), err)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		registry: reg,
		watcher:  fw,
		debounce: debounce,
		logger:   slog.Default().With("component", "vocabulary-watcher", "dir", reg.Dir()),
	}, nil
}

// OnReload registers fn to run after every successful reload.
func (w *Watcher) OnReload(fn func(*Vocabulary)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Run processes file events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("vocabulary watcher started")
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !isLexiconFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.logger.Debug("lexicon change detected", "file", event.Name, "op", event.Op.String())
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	if err := w.registry.Reload(); err != nil {
		w.logger.Error("vocabulary reload failed, keeping previous snapshot", "error", err)
		return
	}
	v := w.registry.Current()
	w.mu.Lock()
	callbacks := append([]func(*Vocabulary){}, w.callbacks...)
	w.mu.Unlock()
	for _, fn := range callbacks {
		fn(v)
	}
}

func isLexiconFile(name string) bool {
	switch filepath.Base(name) {
	case skillsFile, citiesFile, titlesFile, lexiconFile:
		return true
	}
	return false
}

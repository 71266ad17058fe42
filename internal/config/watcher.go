package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a config file must stay quiet before it is reloaded
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a config file when it changes on disk.
// Valid configs arrive on Configs, load or validation failures on Errors.
type Watcher struct {
	watcher  *fsnotify.Watcher
	manager  *ConfigManager
	path     string
	debounce time.Duration

	Configs chan *Config
	Errors  chan error

	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewWatcher watches path through its parent directory, so editors that replace the file are seen too
func NewWatcher(manager *ConfigManager, path string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	path = filepath.Clean(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}

	watcher := &Watcher{
		watcher:  w,
		manager:  manager,
		path:     path,
		debounce: debounce,
		Configs:  make(chan *Config, 1),
		Errors:   make(chan error, 1),
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go watcher.run()

	slog.Debug("watching config file", "path", path, "debounce_ms", debounce.Milliseconds())
	return watcher, nil
}

// Path returns the watched config file
func (w *Watcher) Path() string {
	return w.path
}

// Close stops watching. Configs and Errors are closed once the watcher has exited.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer func() {
		close(w.Configs)
		close(w.Errors)
		close(w.done)
	}()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
			w.sendError(err)
		case <-timer.C:
			w.reload()
		case <-w.closeCh:
			return
		}
	}
}

func (w *Watcher) reload() {
	config, err := w.manager.LoadFromFile(w.path)
	if err != nil {
		slog.Warn("ignoring config change", "path", w.path, "error", err)
		w.sendError(err)
		return
	}

	slog.Info("config reloaded", "path", w.path)

	// Only the newest config matters
	select {
	case <-w.Configs:
	default:
	}
	select {
	case w.Configs <- config:
	case <-w.closeCh:
	}
}

func (w *Watcher) sendError(err error) {
	select {
	case w.Errors <- err:
	default:
		slog.Debug("dropping config watcher error, receiver is behind", "error", err)
	}
}

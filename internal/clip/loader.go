package clip

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// Loader decodes clips from a filesystem and caches them by path
type Loader struct {
	fs       afero.Fs
	registry *DecoderRegistry
	mu       sync.Mutex
	cache    map[string]*Clip
}

// NewLoader creates a loader on the real OS filesystem with the default decoders
func NewLoader() *Loader {
	return NewLoaderWithFilesystem(afero.NewOsFs(), NewDefaultRegistry())
}

// NewLoaderWithFilesystem creates a loader with injected dependencies for testing
func NewLoaderWithFilesystem(fs afero.Fs, registry *DecoderRegistry) *Loader {
	if registry == nil {
		registry = NewDefaultRegistry()
	}
	return &Loader{
		fs:       fs,
		registry: registry,
		cache:    make(map[string]*Clip),
	}
}

// Load returns the clip at path, decoding it on first use
func (l *Loader) Load(path string) (*Clip, error) {
	key := filepath.Clean(path)

	l.mu.Lock()
	if c, ok := l.cache[key]; ok {
		l.mu.Unlock()
		slog.Debug("clip cache hit", "path", key)
		return c, nil
	}
	l.mu.Unlock()

	file, err := l.fs.Open(key)
	if err != nil {
		slog.Error("failed to open clip", "path", key, "error", err)
		return nil, fmt.Errorf("failed to open clip: %w", err)
	}
	defer file.Close()

	data, err := l.registry.DecodeFile(key, file)
	if err != nil {
		return nil, err
	}

	c, err := NewClip(key, data)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// A concurrent load may have won; keep the first so clips stay shared
	if existing, ok := l.cache[key]; ok {
		return existing, nil
	}
	l.cache[key] = c

	slog.Info("clip loaded", "path", key, "duration_ms", c.Duration().Milliseconds())
	return c, nil
}

// Evict drops a cached clip; instances already playing keep their reference
func (l *Loader) Evict(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, filepath.Clean(path))
}

// Cached reports how many clips are held in the cache
func (l *Loader) Cached() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cache)
}

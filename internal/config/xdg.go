package config

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"
)

const appDir = "soundstage"

// XDGDirs provides XDG Base Directory compliant paths for soundstage
type XDGDirs struct {
	fs afero.Fs
}

// NewXDGDirs creates a new XDG directory manager on the OS filesystem
func NewXDGDirs() *XDGDirs {
	return NewXDGDirsWithFilesystem(afero.NewOsFs())
}

// NewXDGDirsWithFilesystem creates a new XDG directory manager on fs
func NewXDGDirsWithFilesystem(fs afero.Fs) *XDGDirs {
	slog.Debug("creating new XDG directory manager")
	return &XDGDirs{fs: fs}
}

// GetDataPaths returns prioritized data directories: user data dir, then system data dirs
func (x *XDGDirs) GetDataPaths() []string {
	paths := []string{filepath.Join(xdg.DataHome, appDir)}
	for _, dataDir := range xdg.DataDirs {
		paths = append(paths, filepath.Join(dataDir, appDir))
	}

	slog.Debug("generated data paths",
		"total_paths", len(paths),
		"system_paths", len(xdg.DataDirs))

	return paths
}

// GetCachePath returns the cache directory path for a specific purpose
func (x *XDGDirs) GetCachePath(purpose string) string {
	baseDir := appDir
	if purpose != "" {
		baseDir = filepath.Join(baseDir, purpose)
	}

	cachePath := filepath.Join(xdg.CacheHome, baseDir)
	slog.Debug("generated cache path", "purpose", purpose, "cache_path", cachePath)
	return cachePath
}

// GetConfigPaths returns prioritized paths where config files can be found
// Returns paths in search order: user config dir, then system config dirs
func (x *XDGDirs) GetConfigPaths(filename string) []string {
	var paths []string

	for _, configDir := range append([]string{xdg.ConfigHome}, xdg.ConfigDirs...) {
		configPath := filepath.Join(configDir, appDir)
		if filename != "" {
			configPath = filepath.Join(configPath, filename)
		}
		paths = append(paths, configPath)
	}

	slog.Debug("generated config paths",
		"filename", filename,
		"total_paths", len(paths),
		"system_paths", len(xdg.ConfigDirs))

	return paths
}

// CreateCacheDir creates the cache directory for a specific purpose
func (x *XDGDirs) CreateCacheDir(purpose string) error {
	cachePath := x.GetCachePath(purpose)

	if err := x.fs.MkdirAll(cachePath, 0755); err != nil {
		slog.Error("failed to create cache directory", "path", cachePath, "error", err)
		return err
	}

	slog.Debug("cache directory ready", "path", cachePath)
	return nil
}

// FindDataFile searches the data directories for relativePath.
// Returns the full path to the first existing file, or empty string if not found.
func (x *XDGDirs) FindDataFile(relativePath string) string {
	relativePath = sanitizePath(relativePath)
	if relativePath == "" {
		return ""
	}

	for i, basePath := range x.GetDataPaths() {
		fullPath := filepath.Join(basePath, relativePath)
		if _, err := x.fs.Stat(fullPath); err == nil {
			slog.Debug("data file found", "relative_path", relativePath, "full_path", fullPath, "path_index", i)
			return fullPath
		}
	}

	slog.Debug("data file not found in any path", "relative_path", relativePath)
	return ""
}

// sanitizePath removes dangerous path components and normalizes the path
func sanitizePath(path string) string {
	path = strings.ReplaceAll(path, "\x00", "")
	path = strings.ReplaceAll(path, "\n", "")
	path = strings.ReplaceAll(path, "\r", "")
	if path == "" {
		return ""
	}

	path = filepath.Clean(path)

	// Relative paths only, and never above the base directory
	if strings.HasPrefix(path, "/") || path == ".." || strings.HasPrefix(path, "../") || strings.Contains(path, "/../") {
		slog.Warn("rejecting potentially dangerous path", "path", path)
		return ""
	}

	return path
}

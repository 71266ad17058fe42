package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// TrackingConfig represents playback journal configuration
type TrackingConfig struct {
	Enabled      bool   `json:"enabled"`  // Whether playback events are journaled
	DatabasePath string `json:"database"` // Custom database path (empty = XDG cache path)
}

// GetDefaultTrackingConfig returns the default tracking configuration
func GetDefaultTrackingConfig() *TrackingConfig {
	return &TrackingConfig{
		Enabled:      true,
		DatabasePath: "",
	}
}

// ApplyTrackingEnvironmentOverrides applies SOUNDSTAGE_TRACKING to a copy of config
func ApplyTrackingEnvironmentOverrides(config *TrackingConfig) *TrackingConfig {
	result := *config

	if trackingStr := os.Getenv("SOUNDSTAGE_TRACKING"); trackingStr != "" {
		if enabled, err := strconv.ParseBool(trackingStr); err == nil {
			result.Enabled = enabled
			slog.Debug("applied tracking override from environment", "value", enabled)
		} else {
			slog.Warn("invalid SOUNDSTAGE_TRACKING environment variable", "value", trackingStr, "error", err)
		}
	}

	return &result
}

// ResolveTrackingDatabasePath returns the journal path, defaulting to the XDG cache directory
func (cm *ConfigManager) ResolveTrackingDatabasePath(tracking *TrackingConfig) string {
	if tracking != nil && tracking.DatabasePath != "" {
		return tracking.DatabasePath
	}
	return filepath.Join(cm.xdg.GetCachePath(""), "journal.db")
}

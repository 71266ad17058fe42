package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// MinBufferFrames is the smallest output buffer accepted: one mixing block
const MinBufferFrames = 512

// FileLoggingConfig represents file-based logging configuration
type FileLoggingConfig struct {
	Enabled    bool   `json:"enabled"`      // Whether file logging is enabled
	Filename   string `json:"filename"`     // Log file path (empty = XDG cache path)
	MaxSizeMB  int    `json:"max_size_mb"`  // Max file size in MB before rotation
	MaxBackups int    `json:"max_backups"`  // Max number of backup files to keep
	MaxAgeDays int    `json:"max_age_days"` // Max age in days before deletion
	Compress   bool   `json:"compress"`     // Whether to compress rotated files
}

// Config represents soundstage configuration
type Config struct {
	MasterVolume     float64            `json:"master_volume"`           // Master gain (0.0 to 1.0)
	AudioBackend     string             `json:"audio_backend"`           // auto, malgo, oto, headless, wav
	Device           int                `json:"device"`                  // Output device index, -1 = backend default
	SampleRate       int                `json:"sample_rate"`             // Mixing rate in Hz
	BufferMS         int                `json:"buffer_ms"`               // Output buffer length
	MusicCrossfadeMS int                `json:"music_crossfade_ms"`      // Fade-out of a displaced music track
	GroupVolumes     map[string]float64 `json:"group_volumes,omitempty"` // Initial gain per group
	BankPath         string             `json:"bank_path,omitempty"`     // YAML cue bank
	RecordPath       string             `json:"record_path,omitempty"`   // Output file for the wav backend
	LogLevel         string             `json:"log_level"`               // debug, info, warn, error
	FileLogging      *FileLoggingConfig `json:"file_logging,omitempty"`
	Tracking         *TrackingConfig    `json:"tracking,omitempty"`
}

// XDGInterface defines the XDG directory operations the config layer needs
type XDGInterface interface {
	GetConfigPaths(filename string) []string
	GetCachePath(purpose string) string
	CreateCacheDir(purpose string) error
	FindDataFile(relativePath string) string
}

// ConfigManager handles loading, saving, and validating configuration
type ConfigManager struct {
	xdg         XDGInterface
	fs          afero.Fs
	lockTimeout time.Duration
}

// NewConfigManager creates a configuration manager on the OS filesystem
func NewConfigManager() *ConfigManager {
	return NewConfigManagerWithFilesystem(afero.NewOsFs())
}

// NewConfigManagerWithFilesystem creates a configuration manager on fs
func NewConfigManagerWithFilesystem(fs afero.Fs) *ConfigManager {
	slog.Debug("creating new config manager")
	return &ConfigManager{
		xdg: NewXDGDirsWithFilesystem(fs),
		fs:  fs,
	}
}

// NewConfigManagerWithDependencies creates a configuration manager with injected XDG paths for testing
func NewConfigManagerWithDependencies(fs afero.Fs, xdg XDGInterface) *ConfigManager {
	return &ConfigManager{xdg: xdg, fs: fs}
}

// GetDefaultConfig returns the default configuration
func (cm *ConfigManager) GetDefaultConfig() *Config {
	defaultConfig := &Config{
		MasterVolume:     1.0,
		AudioBackend:     "auto",
		Device:           -1,
		SampleRate:       48000,
		BufferMS:         50,
		MusicCrossfadeMS: 500,
		GroupVolumes:     map[string]float64{},
		LogLevel:         "warn",
		FileLogging: &FileLoggingConfig{
			Enabled:    false,
			Filename:   "", // Empty = XDG cache path
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Tracking: GetDefaultTrackingConfig(),
	}

	slog.Debug("generated default config",
		"master_volume", defaultConfig.MasterVolume,
		"audio_backend", defaultConfig.AudioBackend,
		"sample_rate", defaultConfig.SampleRate,
		"log_level", defaultConfig.LogLevel)

	return defaultConfig
}

// LoadFromFile loads configuration from a specific file. Missing fields keep their defaults.
func (cm *ConfigManager) LoadFromFile(filePath string) (*Config, error) {
	slog.Debug("loading config from file", "file_path", filePath)

	data, err := afero.ReadFile(cm.fs, filePath)
	if err != nil {
		slog.Error("failed to read config file", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := cm.GetDefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		slog.Error("failed to parse config JSON", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cm.ValidateConfig(config); err != nil {
		return nil, err
	}

	slog.Debug("config loaded successfully",
		"file_path", filePath,
		"master_volume", config.MasterVolume,
		"audio_backend", config.AudioBackend)

	return config, nil
}

// SaveToFile saves configuration to a specific file
func (cm *ConfigManager) SaveToFile(config *Config, filePath string) error {
	slog.Debug("saving config to file", "file_path", filePath)

	if err := cm.ValidateConfig(config); err != nil {
		slog.Error("cannot save invalid config", "error", err)
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	dir := filepath.Dir(filePath)
	if err := cm.fs.MkdirAll(dir, 0755); err != nil {
		slog.Error("failed to create config directory", "directory", dir, "error", err)
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		slog.Error("failed to marshal config", "error", err)
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	lock, err := cm.acquireLock(filePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("failed to release config lock", "file_path", filePath, "error", err)
		}
	}()

	if err := cm.writeAtomic(filePath, data); err != nil {
		slog.Error("failed to write config file", "file_path", filePath, "error", err)
		return err
	}

	slog.Info("config saved successfully", "file_path", filePath)
	return nil
}

// FindConfigFile returns the first existing config.json in XDG search order, or ""
func (cm *ConfigManager) FindConfigFile() string {
	for i, configPath := range cm.xdg.GetConfigPaths("config.json") {
		if _, err := cm.fs.Stat(configPath); err == nil {
			slog.Debug("found config file", "path", configPath, "path_index", i)
			return configPath
		}
	}
	return ""
}

// DefaultConfigPath is where a new user config file is written
func (cm *ConfigManager) DefaultConfigPath() string {
	paths := cm.xdg.GetConfigPaths("config.json")
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

// LoadConfig loads configuration using XDG path discovery, falling back to defaults
func (cm *ConfigManager) LoadConfig() (*Config, error) {
	slog.Debug("loading config using XDG path discovery")

	if configPath := cm.FindConfigFile(); configPath != "" {
		return cm.LoadFromFile(configPath)
	}

	slog.Debug("no config file found, using defaults")
	return cm.GetDefaultConfig(), nil
}

// ValidateConfig validates configuration values and reports every problem at once
func (cm *ConfigManager) ValidateConfig(config *Config) error {
	var errors []string

	if config.MasterVolume < 0.0 || config.MasterVolume > 1.0 {
		errors = append(errors, fmt.Sprintf("master_volume must be between 0.0 and 1.0, got %f", config.MasterVolume))
	}

	if !cm.IsValidAudioBackend(config.AudioBackend) {
		errors = append(errors, fmt.Sprintf("invalid audio backend '%s', must be one of: %s",
			config.AudioBackend, strings.Join(cm.GetSupportedAudioBackends(), ", ")))
	}

	if config.AudioBackend == "wav" && config.RecordPath == "" {
		errors = append(errors, "audio backend 'wav' requires record_path")
	}

	if config.Device < -1 {
		errors = append(errors, fmt.Sprintf("device must be -1 (default) or a device index, got %d", config.Device))
	}

	if config.SampleRate < 8000 || config.SampleRate > 192000 {
		errors = append(errors, fmt.Sprintf("sample_rate must be between 8000 and 192000, got %d", config.SampleRate))
	}

	if config.BufferMS < 1 || config.BufferMS > 1000 {
		errors = append(errors, fmt.Sprintf("buffer_ms must be between 1 and 1000, got %d", config.BufferMS))
	} else if config.SampleRate >= 8000 && config.SampleRate <= 192000 {
		if frames := config.SampleRate * config.BufferMS / 1000; frames < MinBufferFrames {
			errors = append(errors, fmt.Sprintf("buffer_ms %d holds %d frames at %d Hz, need at least %d",
				config.BufferMS, frames, config.SampleRate, MinBufferFrames))
		}
	}

	if config.MusicCrossfadeMS < 0 {
		errors = append(errors, fmt.Sprintf("music_crossfade_ms must be >= 0, got %d", config.MusicCrossfadeMS))
	}

	groups := make([]string, 0, len(config.GroupVolumes))
	for group := range config.GroupVolumes {
		groups = append(groups, group)
	}
	slices.Sort(groups)
	for _, group := range groups {
		if gain := config.GroupVolumes[group]; gain < 0.0 || gain > 1.0 {
			errors = append(errors, fmt.Sprintf("group volume '%s' must be between 0.0 and 1.0, got %f", group, gain))
		}
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if config.LogLevel != "" && !slices.Contains(validLogLevels, config.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s', must be one of: %s",
			config.LogLevel, strings.Join(validLogLevels, ", ")))
	}

	if fileLogging := config.FileLogging; fileLogging != nil {
		if fileLogging.MaxSizeMB < 0 {
			errors = append(errors, fmt.Sprintf("file logging max_size_mb must be >= 0, got %d", fileLogging.MaxSizeMB))
		}
		if fileLogging.MaxBackups < 0 {
			errors = append(errors, fmt.Sprintf("file logging max_backups must be >= 0, got %d", fileLogging.MaxBackups))
		}
		if fileLogging.MaxAgeDays < 0 {
			errors = append(errors, fmt.Sprintf("file logging max_age_days must be >= 0, got %d", fileLogging.MaxAgeDays))
		}
	}

	if len(errors) > 0 {
		errMsg := strings.Join(errors, "; ")
		slog.Error("config validation failed", "errors", errMsg)
		return fmt.Errorf("config validation failed: %s", errMsg)
	}

	slog.Debug("config validation passed")
	return nil
}

// MergeConfigs merges two configurations, with override's non-zero fields taking precedence
func (cm *ConfigManager) MergeConfigs(base, override *Config) *Config {
	slog.Debug("merging configurations")

	merged := *base
	merged.GroupVolumes = make(map[string]float64, len(base.GroupVolumes))
	for group, gain := range base.GroupVolumes {
		merged.GroupVolumes[group] = gain
	}

	if override.MasterVolume != 0.0 {
		merged.MasterVolume = override.MasterVolume
	}
	if override.AudioBackend != "" {
		merged.AudioBackend = override.AudioBackend
	}
	if override.Device != 0 {
		merged.Device = override.Device
	}
	if override.SampleRate != 0 {
		merged.SampleRate = override.SampleRate
	}
	if override.BufferMS != 0 {
		merged.BufferMS = override.BufferMS
	}
	if override.MusicCrossfadeMS != 0 {
		merged.MusicCrossfadeMS = override.MusicCrossfadeMS
	}
	for group, gain := range override.GroupVolumes {
		merged.GroupVolumes[group] = gain
	}
	if override.BankPath != "" {
		merged.BankPath = override.BankPath
	}
	if override.RecordPath != "" {
		merged.RecordPath = override.RecordPath
	}
	if override.LogLevel != "" {
		merged.LogLevel = override.LogLevel
	}
	if override.FileLogging != nil {
		merged.FileLogging = override.FileLogging
	}
	if override.Tracking != nil {
		merged.Tracking = override.Tracking
	}

	slog.Debug("configurations merged successfully")
	return &merged
}

// ApplyEnvironmentOverrides applies SOUNDSTAGE_* environment variables to a copy of config
func (cm *ConfigManager) ApplyEnvironmentOverrides(config *Config) *Config {
	slog.Debug("applying environment variable overrides")

	result := *config

	if volStr := os.Getenv("SOUNDSTAGE_VOLUME"); volStr != "" {
		if vol, err := strconv.ParseFloat(volStr, 64); err == nil {
			result.MasterVolume = vol
			slog.Debug("applied volume override from environment", "value", vol)
		} else {
			slog.Warn("invalid SOUNDSTAGE_VOLUME environment variable", "value", volStr, "error", err)
		}
	}

	if backend := os.Getenv("SOUNDSTAGE_BACKEND"); backend != "" {
		if cm.IsValidAudioBackend(backend) {
			result.AudioBackend = backend
			slog.Debug("applied audio backend override from environment", "value", backend)
		} else {
			slog.Warn("invalid SOUNDSTAGE_BACKEND environment variable", "value", backend)
		}
	}

	if deviceStr := os.Getenv("SOUNDSTAGE_DEVICE"); deviceStr != "" {
		if device, err := strconv.Atoi(deviceStr); err == nil {
			result.Device = device
			slog.Debug("applied device override from environment", "value", device)
		} else {
			slog.Warn("invalid SOUNDSTAGE_DEVICE environment variable", "value", deviceStr, "error", err)
		}
	}

	if logLevel := os.Getenv("SOUNDSTAGE_LOG_LEVEL"); logLevel != "" {
		result.LogLevel = logLevel
		slog.Debug("applied log level override from environment", "value", logLevel)
	}

	if result.Tracking != nil {
		result.Tracking = ApplyTrackingEnvironmentOverrides(result.Tracking)
	}

	slog.Debug("environment overrides applied")
	return &result
}

// ParseLogLevel converts a config log level to a slog.Level
func ParseLogLevel(logLevel string) (slog.Level, error) {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", logLevel)
	}
}

// ApplyLogLevel configures the default slog logger on stderr at logLevel
func (cm *ConfigManager) ApplyLogLevel(logLevel string) error {
	return cm.ApplyLogLevelWithWriter(logLevel, os.Stderr)
}

// ApplyLogLevelWithWriter configures the default slog logger on writer at logLevel
func (cm *ConfigManager) ApplyLogLevelWithWriter(logLevel string, writer io.Writer) error {
	if logLevel == "" {
		slog.Debug("no log level specified, keeping current slog configuration")
		return nil
	}

	level, err := ParseLogLevel(logLevel)
	if err != nil {
		slog.Error("invalid log level for slog configuration", "log_level", logLevel, "error", err)
		return err
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	slog.Debug("slog configured successfully", "log_level", logLevel)
	return nil
}

// ResolveLogFilePath resolves the log file path, using the XDG cache directory when filename is empty
func (cm *ConfigManager) ResolveLogFilePath(filename string) string {
	if filename != "" {
		return filename
	}
	return filepath.Join(cm.xdg.GetCachePath("logs"), "soundstage.log")
}

// ResolveBankPath resolves a relative bank path against the XDG data directories
func (cm *ConfigManager) ResolveBankPath(bankPath string) string {
	if bankPath == "" || filepath.IsAbs(bankPath) {
		return bankPath
	}
	if _, err := cm.fs.Stat(bankPath); err == nil {
		return bankPath
	}
	if found := cm.xdg.FindDataFile(bankPath); found != "" {
		return found
	}
	return bankPath
}

// GetSupportedAudioBackends returns all supported audio backend types
func (cm *ConfigManager) GetSupportedAudioBackends() []string {
	return []string{"auto", "malgo", "oto", "headless", "wav"}
}

// IsValidAudioBackend checks if an audio backend type is supported; empty defaults to auto
func (cm *ConfigManager) IsValidAudioBackend(backend string) bool {
	return backend == "" || slices.Contains(cm.GetSupportedAudioBackends(), backend)
}

package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"soundstage.dev/internal/config"
	"soundstage.dev/internal/fs"
	"soundstage.dev/internal/output"
	"soundstage.dev/internal/tracking"
)

const Version = "0.4.0"

// CLI represents the command-line interface
type CLI struct {
	rootCmd          *cobra.Command
	fsFactory        fs.Factory
	configManager    *config.ConfigManager
	newOutputFactory func(output.FactoryOptions) output.Factory
	terminalDetector TerminalDetector
	trackingDB       *sql.DB // nil when tracking is disabled or unavailable
	now              func() time.Time
}

// NewCLI creates a CLI on the real filesystem and audio backends
func NewCLI() *CLI {
	return NewCLIWithDependencies(fs.NewDefaultFactory(), func(opts output.FactoryOptions) output.Factory {
		return output.NewFactory(opts)
	})
}

// NewCLIWithDependencies creates a CLI with injected filesystem and output backends for testing
func NewCLIWithDependencies(fsFactory fs.Factory, newOutputFactory func(output.FactoryOptions) output.Factory) *CLI {
	slog.Debug("creating new CLI instance")

	rootCmd := &cobra.Command{
		Use:           "soundstage",
		Short:         "Play sounds and music through the soundstage audio engine",
		Long:          "soundstage drives a background audio engine from the command line: one-shot sounds, music tracks with crossfades and an interactive console.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if version, _ := cmd.Flags().GetBool("version"); version {
				printVersion(cmd.OutOrStdout())
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("backend", "", "Audio backend (auto, malgo, oto, headless, wav)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("volume", "", "Master volume (0.0 to 1.0)")
	rootCmd.PersistentFlags().String("record", "", "Output file for the wav backend")
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	rootCmd.AddCommand(newDevicesCommand())
	rootCmd.AddCommand(newPlayCommand())
	rootCmd.AddCommand(newMusicCommand())
	rootCmd.AddCommand(newConsoleCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newConfigCommand())

	return &CLI{
		rootCmd:          rootCmd,
		fsFactory:        fsFactory,
		configManager:    config.NewConfigManagerWithFilesystem(fsFactory.Production()),
		newOutputFactory: newOutputFactory,
		now:              time.Now,
	}
}

type cliContextKey struct{}

// contextWithCLI stores the CLI instance in ctx for command handlers
func contextWithCLI(ctx context.Context, cli *CLI) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cli)
}

// cliFromContext extracts the CLI instance from ctx
func cliFromContext(ctx context.Context) (*CLI, error) {
	if ctx != nil {
		if cli, ok := ctx.Value(cliContextKey{}).(*CLI); ok {
			return cli, nil
		}
	}
	slog.Error("CLI instance not found in context")
	return nil, fmt.Errorf("CLI instance not found in context")
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "soundstage version %s\n", Version)
}

// Run executes the CLI with the given arguments and I/O streams and returns the exit code
func (c *CLI) Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return c.RunContext(context.Background(), args, stdin, stdout, stderr)
}

// RunContext is Run with a caller-supplied context; cancelling it stops playback commands
func (c *CLI) RunContext(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	slog.Debug("CLI run started", "args", args)

	if len(args) > 1 && (args[1] == "--version" || args[1] == "-v") {
		printVersion(stdout)
		return 0
	}

	defer c.closeTracking()

	if len(args) > 0 {
		args = args[1:]
	}
	c.rootCmd.SetArgs(args)
	c.rootCmd.SetIn(stdin)
	c.rootCmd.SetOut(stdout)
	c.rootCmd.SetErr(stderr)

	if err := c.rootCmd.ExecuteContext(contextWithCLI(ctx, c)); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		slog.Error("command failed", "error", err)
		return 1
	}

	return 0
}

// prepare loads configuration and configures logging; every command that touches audio starts here
func (c *CLI) prepare(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := c.loadAndValidateConfig(cmd)
	if err != nil {
		return nil, err
	}
	setupLogging(c.configManager, cfg, cmd.ErrOrStderr())
	return cfg, nil
}

// loadAndValidateConfig loads configuration from flags and files, applies overrides, and validates
func (c *CLI) loadAndValidateConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	backend, _ := cmd.Flags().GetString("backend")
	logLevel, _ := cmd.Flags().GetString("log-level")
	volumeStr, _ := cmd.Flags().GetString("volume")
	recordPath, _ := cmd.Flags().GetString("record")

	var volume float64
	if volumeStr != "" {
		vol, err := strconv.ParseFloat(volumeStr, 64)
		if err != nil {
			slog.Error("invalid volume value", "value", volumeStr, "error", err)
			return nil, fmt.Errorf("invalid volume value '%s': %w", volumeStr, err)
		}
		if vol < 0.0 || vol > 1.0 {
			slog.Error("volume out of range", "value", vol)
			return nil, fmt.Errorf("volume must be between 0.0 and 1.0, got %f", vol)
		}
		volume = vol
	}

	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = c.configManager.LoadFromFile(configFile)
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("config file not found, using defaults", "file", configFile)
			cfg, err = c.configManager.GetDefaultConfig(), nil
		}
	} else {
		cfg, err = c.configManager.LoadConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	cfg = c.configManager.ApplyEnvironmentOverrides(cfg)

	if volumeStr != "" {
		cfg.MasterVolume = volume
		slog.Debug("volume override applied", "value", volume)
	}
	if backend != "" {
		cfg.AudioBackend = backend
		slog.Debug("backend override applied", "value", backend)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if recordPath != "" {
		cfg.RecordPath = recordPath
		if backend == "" {
			cfg.AudioBackend = "wav"
		}
	}

	if err := c.configManager.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// configPath returns the file a console should watch, or "" when running on defaults
func (c *CLI) configPath(cmd *cobra.Command) string {
	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		return configFile
	}
	return c.configManager.FindConfigFile()
}

// setupLogging installs the process logger: stderr at the configured level plus,
// when enabled, a rotating debug log file
func setupLogging(cm *config.ConfigManager, cfg *config.Config, stderr io.Writer) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelWarn
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}),
	}

	if cfg.FileLogging != nil && cfg.FileLogging.Enabled {
		logFilePath := cm.ResolveLogFilePath(cfg.FileLogging.Filename)
		logDir := filepath.Dir(logFilePath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			slog.Error("failed to create log directory", "path", logDir, "error", err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   logFilePath,
				MaxSize:    cfg.FileLogging.MaxSizeMB,
				MaxBackups: cfg.FileLogging.MaxBackups,
				MaxAge:     cfg.FileLogging.MaxAgeDays,
				Compress:   cfg.FileLogging.Compress,
			}
			handlers = append(handlers, slog.NewTextHandler(fileWriter, &slog.HandlerOptions{Level: slog.LevelDebug}))
		}
	}

	slog.SetDefault(slog.New(NewMultiLevelHandler(handlers...)))

	slog.Debug("logging setup completed",
		"level", level.String(),
		"handlers", len(handlers),
		"file_enabled", len(handlers) > 1)
}

// initializeTracking opens the playback journal database when tracking is enabled.
// Failures are logged and playback continues without a journal.
func (c *CLI) initializeTracking(cfg *config.Config) {
	if c.trackingDB != nil {
		return
	}

	if cfg.Tracking == nil || !cfg.Tracking.Enabled {
		slog.Debug("playback tracking disabled")
		return
	}

	dbPath := c.configManager.ResolveTrackingDatabasePath(cfg.Tracking)
	db, err := tracking.NewDatabase(dbPath)
	if err != nil {
		slog.Error("failed to initialize tracking database, continuing without tracking",
			"path", dbPath, "error", err)
		return
	}

	c.trackingDB = db
	slog.Debug("tracking database initialized", "path", dbPath)
}

func (c *CLI) closeTracking() {
	if c.trackingDB == nil {
		return
	}
	if err := c.trackingDB.Close(); err != nil {
		slog.Error("error closing tracking database", "error", err)
	}
	c.trackingDB = nil
}

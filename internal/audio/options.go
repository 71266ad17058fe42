package audio

import (
	"time"

	"soundstage.dev/internal/output"
)

// Default group names used by the Play variants
const (
	GroupSFX    = "sfx"
	GroupUI     = "ui"
	GroupMusic  = "music"
	GroupMaster = "master"
)

// Config tunes a Facade
type Config struct {
	Format         output.Format
	BlockFrames    int           // frames mixed per write
	MaxBlocks      int           // upper bound on blocks mixed per loop cycle
	MusicCrossfade time.Duration // fade-out of a displaced track when the new one has no fade-in
}

// DefaultConfig returns 48kHz stereo with 512-frame blocks and a 500ms crossfade
func DefaultConfig() Config {
	return Config{
		Format:         output.DefaultFormat(),
		BlockFrames:    512,
		MaxBlocks:      8,
		MusicCrossfade: DefaultMusicCrossfade,
	}
}

// Option configures a Facade
type Option func(*Facade)

// WithConfig replaces the default configuration; zero fields keep their defaults
func WithConfig(cfg Config) Option {
	return func(f *Facade) {
		if cfg.Format.SampleRate > 0 {
			f.config.Format.SampleRate = cfg.Format.SampleRate
		}
		if cfg.Format.Channels > 0 {
			f.config.Format.Channels = cfg.Format.Channels
		}
		if cfg.BlockFrames > 0 {
			f.config.BlockFrames = cfg.BlockFrames
		}
		if cfg.MaxBlocks > 0 {
			f.config.MaxBlocks = cfg.MaxBlocks
		}
		if cfg.MusicCrossfade > 0 {
			f.config.MusicCrossfade = cfg.MusicCrossfade
		}
	}
}

// WithEngineFactory substitutes the engine created on Init
func WithEngineFactory(factory EngineFactory) Option {
	return func(f *Facade) {
		f.newEngine = factory
	}
}

// WithClock substitutes the time source used for music fades and events
func WithClock(now func() time.Time) Option {
	return func(f *Facade) {
		f.now = now
	}
}

// WithHook registers a hook for facade events
func WithHook(hook Hook) Option {
	return func(f *Facade) {
		f.hooks = append(f.hooks, hook)
	}
}

// WithLoopInterval sets how long the audio goroutine sleeps when there is nothing to do
func WithLoopInterval(d time.Duration) Option {
	return func(f *Facade) {
		if d > 0 {
			f.loopInterval = d
		}
	}
}

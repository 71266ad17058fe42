package tracking

import (
	"log/slog"

	"soundstage.dev/internal/audio"
)

// SlogHook logs every facade event at debug level
type SlogHook struct {
	logger *slog.Logger
}

// NewSlogHook creates a new SlogHook with the given logger.
// If logger is nil, uses the default logger.
func NewSlogHook(logger *slog.Logger) *SlogHook {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogHook{logger: logger}
}

// Hook returns the facade hook
func (s *SlogHook) Hook() audio.Hook {
	return func(ev audio.Event) {
		switch ev.Type {
		case audio.EventSoundRequested, audio.EventSoundEnded:
			s.logger.Debug("sound event",
				"event", ev.Type.String(),
				"sound_id", ev.Entry.ID,
				"clip", ev.Entry.Clip,
				"group", ev.Entry.Group,
				"kind", ev.Entry.Kind.String(),
				"track", ev.Entry.Track)
		case audio.EventPlaybackStarted:
			s.logger.Debug("facade event", "event", ev.Type.String(), "device", ev.Device)
		default:
			s.logger.Debug("facade event", "event", ev.Type.String())
		}
	}
}

// NopHook ignores every event
func NopHook() audio.Hook {
	return func(audio.Event) {}
}

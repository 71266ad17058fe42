package audio

import (
	"time"
)

// EventType classifies facade events
type EventType int

const (
	EventInit EventType = iota
	EventDeInit
	EventPlaybackStarted
	EventPlaybackStopped
	EventSoundRequested
	EventSoundEnded
)

func (t EventType) String() string {
	switch t {
	case EventInit:
		return "init"
	case EventDeInit:
		return "deinit"
	case EventPlaybackStarted:
		return "playback_started"
	case EventPlaybackStopped:
		return "playback_stopped"
	case EventSoundRequested:
		return "requested"
	case EventSoundEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is delivered to hooks on the goroutine that called the facade
type Event struct {
	Type   EventType
	Time   time.Time
	Entry  PlayingSoundEntry // sound events only
	Device int               // EventPlaybackStarted only
}

// Hook observes facade events. Hooks must not call back into the facade.
type Hook func(Event)

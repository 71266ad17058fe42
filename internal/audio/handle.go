package audio

import (
	"time"

	"soundstage.dev/internal/spatial"
)

// CommandSink accepts commands for the audio goroutine and answers liveness queries
type CommandSink interface {
	Enqueue(cmd Command)
	IsPlaying(id SoundInstanceID) bool
}

// Handle addresses a playing instance from the control side. It owns nothing:
// every operation becomes a command, and operations on the empty handle or on an
// instance that already ended have no effect.
type Handle struct {
	id   SoundInstanceID
	sink CommandSink
}

func newHandle(id SoundInstanceID, sink CommandSink) Handle {
	return Handle{id: id, sink: sink}
}

// ID returns the instance id, InvalidID for the empty handle
func (h Handle) ID() SoundInstanceID {
	return h.id
}

// Valid reports whether the handle refers to an instance at all
func (h Handle) Valid() bool {
	return h.id != InvalidID && h.sink != nil
}

// IsPlaying reports whether the instance is pending or still mixing
func (h Handle) IsPlaying() bool {
	return h.Valid() && h.sink.IsPlaying(h.id)
}

// SetGain changes the instance volume
func (h Handle) SetGain(gain float64) {
	h.send(SetGain{ID: h.id, Gain: gain})
}

// SetPan moves the instance in the stereo field (-1 left, 1 right)
func (h Handle) SetPan(pan float64) {
	h.send(SetPan{ID: h.id, Pan: pan})
}

// SetPosition replaces the instance's placement
func (h Handle) SetPosition(pos spatial.SourcePosition) {
	h.send(SetPosition{ID: h.id, Position: pos})
}

// Fade ramps the instance level to target over d
func (h Handle) Fade(target float64, d time.Duration) {
	h.send(FadeInstance{ID: h.id, Target: target, Duration: d})
}

// Stop ends the instance, fading out first when fade is positive
func (h Handle) Stop(fade time.Duration) {
	if fade > 0 {
		h.send(FadeInstance{ID: h.id, Target: 0, Duration: fade, StopAtEnd: true})
		return
	}
	h.send(StopInstance{ID: h.id})
}

func (h Handle) send(cmd Command) {
	if !h.Valid() {
		return
	}
	h.sink.Enqueue(cmd)
}

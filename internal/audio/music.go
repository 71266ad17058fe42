package audio

import (
	"log/slog"
	"slices"
	"time"
)

// DefaultMusicCrossfade is how long a displaced track fades out when the new one has no fade-in
const DefaultMusicCrossfade = 500 * time.Millisecond

// SlotState is the observable state of a music track
type SlotState int

const (
	SlotEmpty SlotState = iota
	SlotFadingIn
	SlotSteady
	SlotFadingOut
)

func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotFadingIn:
		return "fading_in"
	case SlotSteady:
		return "steady"
	case SlotFadingOut:
		return "fading_out"
	default:
		return "unknown"
	}
}

// retiringHandle is a former occupant still fading out
type retiringHandle struct {
	handle   Handle
	deadline time.Time
}

// MusicSlot is a copy of one track's bookkeeping
type MusicSlot struct {
	Track        int
	Occupant     Handle
	State        SlotState
	FadeStart    time.Time
	FadeDuration time.Duration
	Retiring     []Handle
	// RetiringUntil is when the last retiring fade is due to finish
	RetiringUntil time.Time
}

type musicSlot struct {
	occupant     Handle
	fadeStart    time.Time
	fadeDuration time.Duration
	retiring     []retiringHandle
}

func (s *musicSlot) state(now time.Time) SlotState {
	switch {
	case s.occupant.Valid():
		if s.fadeDuration > 0 && now.Before(s.fadeStart.Add(s.fadeDuration)) {
			return SlotFadingIn
		}
		return SlotSteady
	case len(s.retiring) > 0:
		return SlotFadingOut
	default:
		return SlotEmpty
	}
}

// MusicTable maps track numbers to the handle occupying them. It is used from
// the control goroutine only; occupancy changes as soon as a call returns,
// independent of when the audio goroutine runs the resulting commands.
type MusicTable struct {
	slots     map[int]*musicSlot
	crossfade time.Duration
}

// NewMusicTable creates a table; crossfade <= 0 selects DefaultMusicCrossfade
func NewMusicTable(crossfade time.Duration) *MusicTable {
	if crossfade <= 0 {
		crossfade = DefaultMusicCrossfade
	}
	return &MusicTable{
		slots:     make(map[int]*musicSlot),
		crossfade: crossfade,
	}
}

func (t *MusicTable) slot(track int) *musicSlot {
	s, ok := t.slots[track]
	if !ok {
		s = &musicSlot{}
		t.slots[track] = s
	}
	return s
}

// Replace installs h as the occupant of track. A live previous occupant is
// retired with a stopping fade of fadeIn, or the table's crossfade when fadeIn is zero.
func (t *MusicTable) Replace(track int, h Handle, fadeIn time.Duration, now time.Time) {
	s := t.slot(track)

	if old := s.occupant; old.IsPlaying() {
		fadeOut := fadeIn
		if fadeOut <= 0 {
			fadeOut = t.crossfade
		}
		old.Stop(fadeOut)
		s.retiring = append(s.retiring, retiringHandle{handle: old, deadline: now.Add(fadeOut)})
		slog.Debug("music track crossfade",
			"track", track,
			"old_sound_id", old.ID(),
			"new_sound_id", h.ID(),
			"fade_out_ms", fadeOut.Milliseconds())
	}

	s.occupant = h
	s.fadeStart = now
	s.fadeDuration = max(fadeIn, 0)
}

// Stop fades out and clears the occupant of track. On a slot that is only fading
// out, the retiring handles are re-faded over fadeOut from their current level.
// It reports whether any command was sent.
func (t *MusicTable) Stop(track int, fadeOut time.Duration, now time.Time) bool {
	s, ok := t.slots[track]
	if !ok {
		return false
	}

	touched := false
	if len(s.retiring) > 0 {
		for i := range s.retiring {
			s.retiring[i].handle.Stop(fadeOut)
			s.retiring[i].deadline = now.Add(max(fadeOut, 0))
		}
		if fadeOut <= 0 {
			s.retiring = nil
		}
		touched = true
	}

	if occupant := s.occupant; occupant.Valid() {
		occupant.Stop(fadeOut)
		if fadeOut > 0 {
			s.retiring = append(s.retiring, retiringHandle{handle: occupant, deadline: now.Add(fadeOut)})
		}
		s.occupant = Handle{}
		s.fadeDuration = 0
		touched = true
	}

	if touched {
		slog.Debug("music track stopped", "track", track, "fade_ms", fadeOut.Milliseconds())
	}
	return touched
}

// StopAll applies Stop to every track that is occupied or fading out
func (t *MusicTable) StopAll(fadeOut time.Duration, now time.Time) int {
	stopped := 0
	for _, track := range t.Tracks() {
		if t.Stop(track, fadeOut, now) {
			stopped++
		}
	}
	return stopped
}

// Advance drops retiring handles and occupants that are no longer playing
// and forgets slots that became empty.
func (t *MusicTable) Advance(now time.Time) {
	for track, s := range t.slots {
		s.retiring = slices.DeleteFunc(s.retiring, func(r retiringHandle) bool {
			return !r.handle.IsPlaying()
		})

		if s.occupant.Valid() && !s.occupant.IsPlaying() {
			slog.Debug("music track ended", "track", track, "sound_id", s.occupant.ID())
			s.occupant = Handle{}
			s.fadeDuration = 0
		}

		if s.state(now) == SlotEmpty {
			delete(t.slots, track)
		}
	}
}

// Occupant returns the handle on track, or the empty handle
func (t *MusicTable) Occupant(track int) Handle {
	if s, ok := t.slots[track]; ok {
		return s.occupant
	}
	return Handle{}
}

// State returns the track's state at now
func (t *MusicTable) State(track int, now time.Time) SlotState {
	if s, ok := t.slots[track]; ok {
		return s.state(now)
	}
	return SlotEmpty
}

// Slot returns a copy of the track's bookkeeping
func (t *MusicTable) Slot(track int, now time.Time) MusicSlot {
	out := MusicSlot{Track: track}
	s, ok := t.slots[track]
	if !ok {
		return out
	}
	out.Occupant = s.occupant
	out.State = s.state(now)
	out.FadeStart = s.fadeStart
	out.FadeDuration = s.fadeDuration
	for _, r := range s.retiring {
		out.Retiring = append(out.Retiring, r.handle)
		if r.deadline.After(out.RetiringUntil) {
			out.RetiringUntil = r.deadline
		}
	}
	return out
}

// Tracks returns the tracks that are not empty, ascending
func (t *MusicTable) Tracks() []int {
	tracks := make([]int, 0, len(t.slots))
	for track, s := range t.slots {
		if s.occupant.Valid() || len(s.retiring) > 0 {
			tracks = append(tracks, track)
		}
	}
	slices.Sort(tracks)
	return tracks
}

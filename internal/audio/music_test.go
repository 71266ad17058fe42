package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMusicTableFadeInBecomesSteady(t *testing.T) {
	sink := newRecordingSink()
	table := NewMusicTable(0)
	clock := newManualClock()

	h := sink.handle(1)
	table.Replace(0, h, time.Second, clock.Now())

	assert.Equal(t, h, table.Occupant(0))
	assert.Equal(t, SlotFadingIn, table.State(0, clock.Now()))

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, SlotFadingIn, table.State(0, clock.Now()))

	clock.Advance(time.Millisecond)
	assert.Equal(t, SlotSteady, table.State(0, clock.Now()))
	assert.Empty(t, sink.take(), "installing into an empty slot sends nothing")
}

func TestMusicTableReplaceRetiresOldOccupant(t *testing.T) {
	sink := newRecordingSink()
	table := NewMusicTable(0)
	clock := newManualClock()

	h1 := sink.handle(1)
	table.Replace(0, h1, 0, clock.Now())
	assert.Equal(t, SlotSteady, table.State(0, clock.Now()))

	h2 := sink.handle(2)
	table.Replace(0, h2, 2*time.Second, clock.Now())

	assert.Equal(t, h2, table.Occupant(0), "occupant changes as soon as Replace returns")
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, []Command{
		FadeInstance{ID: 1, Target: 0, Duration: 2 * time.Second, StopAtEnd: true},
	}, sink.take())

	slot := table.Slot(0, clock.Now())
	assert.Equal(t, []Handle{h1}, slot.Retiring)
	assert.Equal(t, clock.Now().Add(2*time.Second), slot.RetiringUntil)

	// H1 finishes independently
	sink.playing[1] = false
	table.Advance(clock.Now())
	assert.Empty(t, table.Slot(0, clock.Now()).Retiring)
	assert.Equal(t, h2, table.Occupant(0))
}

func TestMusicTableReplaceUsesDefaultCrossfade(t *testing.T) {
	sink := newRecordingSink()
	table := NewMusicTable(0)
	now := newManualClock().Now()

	table.Replace(3, sink.handle(1), 0, now)
	table.Replace(3, sink.handle(2), 0, now)

	assert.Equal(t, []Command{
		FadeInstance{ID: 1, Target: 0, Duration: DefaultMusicCrossfade, StopAtEnd: true},
	}, sink.take())
}

func TestMusicTableReplaceSkipsFinishedOccupant(t *testing.T) {
	sink := newRecordingSink()
	table := NewMusicTable(time.Second)
	now := newManualClock().Now()

	table.Replace(0, sink.handle(1), 0, now)
	sink.playing[1] = false
	table.Replace(0, sink.handle(2), 0, now)

	assert.Empty(t, sink.take())
	assert.Empty(t, table.Slot(0, now).Retiring)
}

func TestMusicTableStopWithoutFade(t *testing.T) {
	sink := newRecordingSink()
	table := NewMusicTable(0)
	now := newManualClock().Now()

	table.Replace(0, sink.handle(1), 0, now)
	require.True(t, table.Stop(0, 0, now))

	cmds := sink.take()
	assert.Equal(t, []Command{StopInstance{ID: 1}}, cmds)
	for _, cmd := range cmds {
		if fade, ok := cmd.(FadeInstance); ok {
			assert.Zero(t, fade.Duration, "no fade with a nonzero duration may be sent")
		}
	}
	assert.Equal(t, SlotEmpty, table.State(0, now))
	assert.False(t, table.Occupant(0).Valid())
}

func TestMusicTableStopWithFade(t *testing.T) {
	sink := newRecordingSink()
	table := NewMusicTable(0)
	clock := newManualClock()

	table.Replace(0, sink.handle(1), 0, clock.Now())
	require.True(t, table.Stop(0, time.Second, clock.Now()))

	assert.Equal(t, []Command{
		FadeInstance{ID: 1, Target: 0, Duration: time.Second, StopAtEnd: true},
	}, sink.take())
	assert.False(t, table.Occupant(0).Valid(), "occupant cleared once the fade is sent")
	assert.Equal(t, SlotFadingOut, table.State(0, clock.Now()))

	sink.playing[1] = false
	table.Advance(clock.Now())
	assert.Equal(t, SlotEmpty, table.State(0, clock.Now()))
	assert.Empty(t, table.Tracks())
}

func TestMusicTableStopWhileFadingOutLastWriteWins(t *testing.T) {
	sink := newRecordingSink()
	table := NewMusicTable(0)
	clock := newManualClock()

	table.Replace(0, sink.handle(1), 0, clock.Now())
	table.Stop(0, 4*time.Second, clock.Now())
	sink.take()

	clock.Advance(time.Second)
	require.True(t, table.Stop(0, 500*time.Millisecond, clock.Now()))

	assert.Equal(t, []Command{
		FadeInstance{ID: 1, Target: 0, Duration: 500 * time.Millisecond, StopAtEnd: true},
	}, sink.take(), "the newer duration replaces the old fade instead of adding to it")
	assert.Equal(t, clock.Now().Add(500*time.Millisecond), table.Slot(0, clock.Now()).RetiringUntil)

	require.True(t, table.Stop(0, 0, clock.Now()))
	assert.Equal(t, []Command{StopInstance{ID: 1}}, sink.take())
	assert.Equal(t, SlotEmpty, table.State(0, clock.Now()))
}

func TestMusicTableStopAllTouchesOnlyOccupiedTracks(t *testing.T) {
	sink := newRecordingSink()
	table := NewMusicTable(0)
	now := newManualClock().Now()

	table.Replace(0, sink.handle(10), 0, now)
	table.Replace(2, sink.handle(20), 0, now)
	assert.Equal(t, []int{0, 2}, table.Tracks())

	fade := 750 * time.Millisecond
	assert.Equal(t, 2, table.StopAll(fade, now))

	assert.ElementsMatch(t, []Command{
		FadeInstance{ID: 10, Target: 0, Duration: fade, StopAtEnd: true},
		FadeInstance{ID: 20, Target: 0, Duration: fade, StopAtEnd: true},
	}, sink.take())
	assert.False(t, table.Stop(1, fade, now), "empty track receives nothing")
	assert.Empty(t, sink.take())
}

func TestMusicTableAdvanceClearsEndedOccupant(t *testing.T) {
	sink := newRecordingSink()
	table := NewMusicTable(0)
	now := newManualClock().Now()

	table.Replace(1, sink.handle(5), 0, now)
	sink.playing[5] = false
	table.Advance(now)

	assert.Equal(t, SlotEmpty, table.State(1, now))
	assert.Equal(t, 0, table.StopAll(time.Second, now))
	assert.Empty(t, sink.take())
}

func TestSlotStateString(t *testing.T) {
	assert.Equal(t, "empty", SlotEmpty.String())
	assert.Equal(t, "fading_in", SlotFadingIn.String())
	assert.Equal(t, "steady", SlotSteady.String())
	assert.Equal(t, "fading_out", SlotFadingOut.String())
}

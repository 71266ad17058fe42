package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"soundstage.dev/internal/spatial"
)

func TestEmptyHandleIsNoOp(t *testing.T) {
	var h Handle
	assert.False(t, h.Valid())
	assert.False(t, h.IsPlaying())
	assert.Equal(t, InvalidID, h.ID())

	// must not panic without a sink
	h.SetGain(0.5)
	h.SetPan(1)
	h.SetPosition(spatial.MakeFixed())
	h.Fade(0, time.Second)
	h.Stop(time.Second)
	h.Stop(0)

	assert.Equal(t, Handle{}, h)
}

func TestHandleSendsCommands(t *testing.T) {
	sink := newRecordingSink()
	h := sink.handle(7)

	h.SetGain(0.5)
	h.SetPan(-1)
	h.Fade(0.2, time.Second)
	h.Stop(0)
	h.Stop(250 * time.Millisecond)

	assert.Equal(t, []Command{
		SetGain{ID: 7, Gain: 0.5},
		SetPan{ID: 7, Pan: -1},
		FadeInstance{ID: 7, Target: 0.2, Duration: time.Second},
		StopInstance{ID: 7},
		FadeInstance{ID: 7, Target: 0, Duration: 250 * time.Millisecond, StopAtEnd: true},
	}, sink.take())
}

func TestHandleIsPlayingAsksSink(t *testing.T) {
	sink := newRecordingSink()
	h := sink.handle(3)
	assert.True(t, h.IsPlaying())

	sink.playing[3] = false
	assert.False(t, h.IsPlaying())
}

func TestHandlesAreComparable(t *testing.T) {
	sink := newRecordingSink()
	a := sink.handle(1)
	b := newHandle(1, sink)
	c := sink.handle(2)

	assert.True(t, a == b)
	assert.False(t, a == c)
}

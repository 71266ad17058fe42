package output

import (
	"time"
)

// pacer emulates a device clock for outputs that have none (headless, file recorders).
// With realtime off it accepts whatever is offered up to the buffer size.
type pacer struct {
	rate     int
	buffer   int
	realtime bool
	now      func() time.Time
	start    time.Time
	written  int64
}

func newPacer(rate, bufferFrames int, realtime bool, now func() time.Time) *pacer {
	if now == nil {
		now = time.Now
	}
	return &pacer{
		rate:     rate,
		buffer:   bufferFrames,
		realtime: realtime,
		now:      now,
		start:    now(),
	}
}

// free returns the frames the emulated device can take right now
func (p *pacer) free() int {
	if !p.realtime {
		return p.buffer
	}
	consumed := int64(p.now().Sub(p.start).Seconds() * float64(p.rate))
	free := consumed + int64(p.buffer) - p.written
	if free < 0 {
		return 0
	}
	if free > int64(p.buffer) {
		// Catch up after a stall instead of bursting
		p.written = consumed
		return p.buffer
	}
	return int(free)
}

func (p *pacer) advance(frames int) {
	p.written += int64(frames)
}

package clip

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gopxl/beep"
)

// bufferPrecision is the byte width beep uses to store clip samples
const bufferPrecision = 3

// Clip is decoded audio shared by every instance that plays it.
// A Clip is immutable after construction and safe to share across goroutines.
type Clip struct {
	name   string
	buffer *beep.Buffer
}

// NewClip stores decoded audio in a beep buffer
func NewClip(name string, data *AudioData) (*Clip, error) {
	if data == nil || len(data.Frames) == 0 {
		return nil, fmt.Errorf("%w: clip %q has no frames", ErrInvalidData, name)
	}
	if data.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: clip %q has sample rate %d", ErrInvalidData, name, data.SampleRate)
	}

	format := beep.Format{
		SampleRate:  beep.SampleRate(data.SampleRate),
		NumChannels: 2,
		Precision:   bufferPrecision,
	}
	buffer := beep.NewBuffer(format)
	buffer.Append(&frameStreamer{frames: data.Frames})

	slog.Debug("clip created",
		"clip", name,
		"frames", buffer.Len(),
		"sample_rate", data.SampleRate)

	return &Clip{name: name, buffer: buffer}, nil
}

// Name returns the clip's identifier (usually its path or cue name)
func (c *Clip) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Format returns the sample format the clip is stored in
func (c *Clip) Format() beep.Format {
	return c.buffer.Format()
}

// Len returns the clip length in frames
func (c *Clip) Len() int {
	return c.buffer.Len()
}

// Duration returns the clip length at its native sample rate
func (c *Clip) Duration() time.Duration {
	return c.buffer.Format().SampleRate.D(c.buffer.Len())
}

// Streamer returns a fresh, independent reader over the whole clip
func (c *Clip) Streamer() beep.StreamSeeker {
	return c.buffer.Streamer(0, c.buffer.Len())
}

// frameStreamer feeds pre-decoded frames into a beep.Buffer
type frameStreamer struct {
	frames [][2]float64
	pos    int
}

func (s *frameStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= len(s.frames) {
		return 0, false
	}
	n := copy(samples, s.frames[s.pos:])
	s.pos += n
	return n, true
}

func (s *frameStreamer) Err() error {
	return nil
}

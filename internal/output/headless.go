package output

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// HeadlessConfig configures the headless device
type HeadlessConfig struct {
	Realtime     bool // pace consumption by the wall clock
	BufferFrames int  // frames the emulated device buffers
	Now          func() time.Time
}

// HeadlessDevice discards audio. It is used on machines without an audio device and in tests.
type HeadlessDevice struct {
	config HeadlessConfig
	mu     sync.Mutex
	closed bool
	opened int
}

// NewHeadlessDevice creates a headless device
func NewHeadlessDevice(config HeadlessConfig) *HeadlessDevice {
	if config.BufferFrames <= 0 {
		config.BufferFrames = 2048
	}
	slog.Debug("creating headless output device",
		"realtime", config.Realtime,
		"buffer_frames", config.BufferFrames)
	return &HeadlessDevice{config: config}
}

// Name identifies the backend
func (d *HeadlessDevice) Name() string {
	return "headless"
}

// Devices returns the single null output
func (d *HeadlessDevice) Devices() ([]DeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}
	return []DeviceInfo{{Index: 0, Name: "Null Output", IsDefault: true}}, nil
}

// Open starts a discarding stream
func (d *HeadlessDevice) Open(index int, format Format) (Stream, error) {
	devices, err := d.Devices()
	if err != nil {
		return nil, err
	}
	if err := checkIndex(index, devices); err != nil {
		return nil, fmt.Errorf("%w: %d", err, index)
	}

	d.mu.Lock()
	d.opened++
	d.mu.Unlock()

	slog.Info("headless stream opened", "sample_rate", format.SampleRate, "channels", format.Channels)
	return &HeadlessStream{
		format: format,
		pacer:  newPacer(format.SampleRate, d.config.BufferFrames, d.config.Realtime, d.config.Now),
	}, nil
}

// Opened reports how many streams were opened over the device's lifetime
func (d *HeadlessDevice) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// Close shuts down the device
func (d *HeadlessDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// HeadlessStream counts and meters what it is given
type HeadlessStream struct {
	format Format
	pacer  *pacer

	mu     sync.Mutex
	closed bool
	frames int64
	peak   float64
}

// Format returns the negotiated format
func (s *HeadlessStream) Format() Format {
	return s.format
}

// Free returns how many frames the emulated device accepts now
func (s *HeadlessStream) Free() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	return s.pacer.free()
}

// Write meters and drops frames
func (s *HeadlessStream) Write(frames [][2]float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStreamClosed
	}
	for _, f := range frames {
		s.peak = math.Max(s.peak, math.Max(math.Abs(f[0]), math.Abs(f[1])))
	}
	s.frames += int64(len(frames))
	s.pacer.advance(len(frames))
	return len(frames), nil
}

// Frames returns the total frames written
func (s *HeadlessStream) Frames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Peak returns the largest absolute sample written
func (s *HeadlessStream) Peak() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

// Close stops the stream
func (s *HeadlessStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		slog.Debug("headless stream closed", "frames", s.frames)
	}
	return nil
}

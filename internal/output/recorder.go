package output

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// recorderBitDepth is the PCM depth written by the WAV recorder
const recorderBitDepth = 16

// WavRecorder is an output device that renders the mix into a WAV file
type WavRecorder struct {
	fs       afero.Fs
	path     string
	realtime bool
	now      func() time.Time
	mu       sync.Mutex
	closed   bool
}

// NewWavRecorder creates a recorder writing to path on the OS filesystem
func NewWavRecorder(path string, realtime bool) *WavRecorder {
	return NewWavRecorderWithFilesystem(afero.NewOsFs(), path, realtime, nil)
}

// NewWavRecorderWithFilesystem creates a recorder with injected dependencies for testing
func NewWavRecorderWithFilesystem(fs afero.Fs, path string, realtime bool, now func() time.Time) *WavRecorder {
	slog.Debug("creating WAV recorder", "path", path, "realtime", realtime)
	return &WavRecorder{fs: fs, path: path, realtime: realtime, now: now}
}

// Name identifies the backend
func (r *WavRecorder) Name() string {
	return "wav"
}

// Devices returns the single file output
func (r *WavRecorder) Devices() ([]DeviceInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrDeviceClosed
	}
	if r.path == "" {
		return nil, fmt.Errorf("%w: no output path configured", ErrBackendNotAvailable)
	}
	return []DeviceInfo{{Index: 0, Name: "WAV file: " + r.path, IsDefault: true}}, nil
}

// Open creates the file and starts a recording stream
func (r *WavRecorder) Open(index int, format Format) (Stream, error) {
	devices, err := r.Devices()
	if err != nil {
		return nil, err
	}
	if err := checkIndex(index, devices); err != nil {
		return nil, fmt.Errorf("%w: %d", err, index)
	}

	file, err := r.fs.Create(r.path)
	if err != nil {
		slog.Error("failed to create recording file", "path", r.path, "error", err)
		return nil, fmt.Errorf("failed to create recording file: %w", err)
	}

	channels := format.Channels
	if channels <= 0 {
		channels = 2
	}
	format.Channels = channels

	encoder := wav.NewEncoder(file, format.SampleRate, recorderBitDepth, channels, 1)

	slog.Info("WAV recording started", "path", r.path, "sample_rate", format.SampleRate, "channels", channels)
	return &recorderStream{
		format:  format,
		file:    file,
		encoder: encoder,
		pacer:   newPacer(format.SampleRate, format.SampleRate/10, r.realtime, r.now),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: format.SampleRate},
			SourceBitDepth: recorderBitDepth,
		},
	}, nil
}

// Close shuts down the device
func (r *WavRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

type recorderStream struct {
	format  Format
	file    afero.File
	encoder *wav.Encoder
	pacer   *pacer
	buf     *audio.IntBuffer
	scratch []float32
	frames  int
	closed  bool
}

func (s *recorderStream) Format() Format {
	return s.format
}

func (s *recorderStream) Free() int {
	if s.closed {
		return 0
	}
	return s.pacer.free()
}

func (s *recorderStream) Write(frames [][2]float64) (int, error) {
	if s.closed {
		return 0, ErrStreamClosed
	}

	s.scratch = interleave(s.scratch, frames, s.format.Channels)
	s.buf.Data = s.buf.Data[:0]
	for _, v := range s.scratch {
		clamped := math.Max(-1, math.Min(1, float64(v)))
		s.buf.Data = append(s.buf.Data, int(clamped*math.MaxInt16))
	}

	if err := s.encoder.Write(s.buf); err != nil {
		slog.Error("failed to write WAV frames", "error", err)
		return 0, fmt.Errorf("failed to write WAV frames: %w", err)
	}

	s.frames += len(frames)
	s.pacer.advance(len(frames))
	return len(frames), nil
}

func (s *recorderStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.encoder.Close(); err != nil {
		s.file.Close()
		slog.Error("failed to finalise WAV file", "error", err)
		return fmt.Errorf("failed to finalise WAV file: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("failed to close WAV file: %w", err)
	}

	slog.Info("WAV recording finished", "frames", s.frames)
	return nil
}

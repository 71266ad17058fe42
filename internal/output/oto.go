//go:build cgo

package output

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process
var (
	otoOnce    sync.Once
	otoContext *oto.Context
	otoFormat  Format
	otoErr     error
)

func sharedOtoContext(format Format) (*oto.Context, Format, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       oto.FormatFloat32LE,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoContext = ctx
		otoFormat = format
		slog.Info("oto context initialized", "sample_rate", format.SampleRate, "channels", format.Channels)
	})
	return otoContext, otoFormat, otoErr
}

// OtoDevice plays through ebitengine/oto. It exposes the system default output only.
type OtoDevice struct {
	bufferFrames int
	mu           sync.Mutex
	closed       bool
}

// NewOtoDevice creates an oto-backed device
func NewOtoDevice(bufferFrames int) *OtoDevice {
	if bufferFrames <= 0 {
		bufferFrames = 4096
	}
	slog.Debug("creating oto output device", "buffer_frames", bufferFrames)
	return &OtoDevice{bufferFrames: bufferFrames}
}

// Name identifies the backend
func (d *OtoDevice) Name() string {
	return "oto"
}

// Devices returns the single default output
func (d *OtoDevice) Devices() ([]DeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}
	return []DeviceInfo{{Index: 0, Name: "System Default", IsDefault: true}}, nil
}

// Open creates a player fed from a ring buffer. The first format requested
// fixes the process-wide oto context; later opens reuse it.
func (d *OtoDevice) Open(index int, format Format) (Stream, error) {
	devices, err := d.Devices()
	if err != nil {
		return nil, err
	}
	if err := checkIndex(index, devices); err != nil {
		return nil, fmt.Errorf("%w: %d", err, index)
	}

	ctx, actual, err := sharedOtoContext(format)
	if err != nil {
		slog.Error("failed to initialize oto context", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrBackendNotAvailable, err)
	}
	if actual != format {
		slog.Warn("oto context already running with a different format",
			"requested_rate", format.SampleRate, "actual_rate", actual.SampleRate)
	}

	var player *oto.Player
	stream := newRingStream(actual, d.bufferFrames, func() error {
		err := player.Close()
		slog.Info("oto stream closed")
		return err
	})
	player = ctx.NewPlayer(otoReader{stream})
	player.Play()

	slog.Info("oto stream opened", "sample_rate", actual.SampleRate)
	return stream, nil
}

// Close marks the device closed. The shared oto context lives for the process.
func (d *OtoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// otoReader adapts a ringStream to the io.Reader oto pulls from
type otoReader struct {
	stream *ringStream
}

func (r otoReader) Read(p []byte) (int, error) {
	n := len(p) - len(p)%4
	r.stream.fill(p[:n])
	return n, nil
}

//go:build cgo

package output

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoDevice plays through miniaudio. Enumeration and stream opening are synchronous;
// the device callback drains a ring buffer filled by the mixer.
type MalgoDevice struct {
	bufferFrames int

	mu      sync.Mutex
	context *Context
	infos   []malgo.DeviceInfo
	closed  bool
}

// NewMalgoDevice creates a malgo-backed device. The context is created lazily.
func NewMalgoDevice(bufferFrames int) *MalgoDevice {
	if bufferFrames <= 0 {
		bufferFrames = 4096
	}
	slog.Debug("creating malgo output device", "buffer_frames", bufferFrames)
	return &MalgoDevice{bufferFrames: bufferFrames}
}

// Name identifies the backend
func (d *MalgoDevice) Name() string {
	return "malgo"
}

func (d *MalgoDevice) ensureContext() error {
	if d.closed {
		return ErrDeviceClosed
	}
	if d.context != nil {
		return nil
	}
	ctx, err := NewContext()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendNotAvailable, err)
	}
	d.context = ctx
	return nil
}

// Devices enumerates playback devices
func (d *MalgoDevice) Devices() ([]DeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureContext(); err != nil {
		return nil, err
	}

	infos, err := d.context.ctx.Devices(malgo.Playback)
	if err != nil {
		slog.Error("failed to enumerate playback devices", "error", err)
		return nil, fmt.Errorf("failed to enumerate playback devices: %w", err)
	}
	d.infos = infos

	devices := make([]DeviceInfo, len(infos))
	for i, info := range infos {
		devices[i] = DeviceInfo{
			Index:     i,
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		}
	}

	slog.Debug("playback devices enumerated", "count", len(devices))
	return devices, nil
}

// Open starts a playback device at index. The enumeration is refreshed first.
func (d *MalgoDevice) Open(index int, format Format) (Stream, error) {
	devices, err := d.Devices()
	if err != nil {
		return nil, err
	}
	if err := checkIndex(index, devices); err != nil {
		return nil, fmt.Errorf("%w: %d", err, index)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.Playback.DeviceID = d.infos[index].ID.Pointer()
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	slog.Debug("malgo device configuration",
		"device", devices[index].Name,
		"sample_rate", format.SampleRate,
		"channels", format.Channels,
		"buffer_frames", d.bufferFrames)

	var device *malgo.Device
	stream := newRingStream(format, d.bufferFrames, func() error {
		device.Uninit()
		slog.Info("malgo stream closed")
		return nil
	})

	callbacks := malgo.DeviceCallbacks{
		Data: func(output, _ []byte, _ uint32) {
			stream.fill(output)
		},
	}

	device, err = malgo.InitDevice(d.context.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		slog.Error("failed to initialize playback device", "error", err)
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		slog.Error("failed to start playback device", "error", err)
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	slog.Info("malgo stream opened", "device", devices[index].Name)
	return stream, nil
}

// Close releases the malgo context
func (d *MalgoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if d.context != nil {
		return d.context.Close()
	}
	return nil
}

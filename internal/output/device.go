package output

import (
	"errors"
)

// Common errors for Device and Stream implementations
var (
	ErrBackendNotAvailable = errors.New("audio backend not available")
	ErrDeviceClosed        = errors.New("audio device is closed")
	ErrDeviceIndex         = errors.New("device index out of range")
	ErrStreamClosed        = errors.New("audio stream is closed")
)

// Format describes the PCM layout a stream accepts
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat is 48kHz stereo
func DefaultFormat() Format {
	return Format{SampleRate: 48000, Channels: 2}
}

// DeviceInfo describes one selectable output
type DeviceInfo struct {
	Index     int
	Name      string
	IsDefault bool
}

// Device is the output-device capability: it enumerates outputs and opens streams on them.
// Implementations handle the actual playback mechanism (malgo, oto, headless, file).
type Device interface {
	// Name identifies the backend
	Name() string

	// Devices enumerates selectable outputs
	Devices() ([]DeviceInfo, error)

	// Open starts a playback session on the output at index
	Open(index int, format Format) (Stream, error)

	// Close releases backend resources; open streams must be closed first
	Close() error
}

// Stream is an open playback session. Streams are written from a single goroutine.
type Stream interface {
	// Format returns the negotiated format
	Format() Format

	// Free returns how many frames can be written without overrunning the device buffer
	Free() int

	// Write queues stereo frames and returns how many were accepted
	Write(frames [][2]float64) (int, error)

	// Close stops playback; closing twice is not an error
	Close() error
}

// checkIndex validates a device index against an enumeration result
func checkIndex(index int, devices []DeviceInfo) error {
	if index < 0 || index >= len(devices) {
		return ErrDeviceIndex
	}
	return nil
}

//go:build !cgo

package output

import (
	"errors"
)

var errCGORequired = errors.New(`the malgo and oto backends require CGO support.

Rebuild with CGO_ENABLED=1 and a C compiler installed:
  - Linux: sudo apt-get install build-essential libasound2-dev
  - macOS: xcode-select --install
  - Windows: Install MinGW or Visual Studio Build Tools

The headless and wav backends work without CGO.`)

type unavailableDevice struct {
	name string
}

// NewMalgoDevice returns a device that reports the missing CGO toolchain
func NewMalgoDevice(bufferFrames int) Device {
	return unavailableDevice{name: "malgo"}
}

// NewOtoDevice returns a device that reports the missing CGO toolchain
func NewOtoDevice(bufferFrames int) Device {
	return unavailableDevice{name: "oto"}
}

func (d unavailableDevice) Name() string {
	return d.name
}

func (d unavailableDevice) Devices() ([]DeviceInfo, error) {
	return nil, errors.Join(ErrBackendNotAvailable, errCGORequired)
}

func (d unavailableDevice) Open(int, Format) (Stream, error) {
	return nil, errors.Join(ErrBackendNotAvailable, errCGORequired)
}

func (d unavailableDevice) Close() error {
	return nil
}

func cgoEnabled() bool {
	return false
}

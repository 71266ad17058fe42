package output

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrInvalidBackendType is returned for unknown backend names
var ErrInvalidBackendType = errors.New("invalid backend type")

// Factory creates Device instances from a configured backend name
type Factory interface {
	CreateDevice(backendType string) (Device, error)
	GetSupportedBackends() []string
	IsValidBackendType(backendType string) bool
}

// FactoryOptions carries backend tuning passed to every created device
type FactoryOptions struct {
	BufferFrames int
	RecordPath   string // output file for the wav backend
	Realtime     bool   // pace headless/wav output by the wall clock
}

// DefaultFactory implements Factory with platform detection
type DefaultFactory struct {
	options   FactoryOptions
	isWSLFunc func() bool
	cgoFunc   func() bool
}

// NewFactory creates a DefaultFactory with real platform detection
func NewFactory(options FactoryOptions) *DefaultFactory {
	return NewFactoryWithDependencies(options, IsWSL, cgoEnabled)
}

// NewFactoryWithDependencies creates a factory with injected platform checks for testing
func NewFactoryWithDependencies(options FactoryOptions, isWSLFunc, cgoFunc func() bool) *DefaultFactory {
	return &DefaultFactory{
		options:   options,
		isWSLFunc: isWSLFunc,
		cgoFunc:   cgoFunc,
	}
}

// CreateDevice creates a Device for the backend type; empty means auto
func (f *DefaultFactory) CreateDevice(backendType string) (Device, error) {
	if backendType == "" {
		backendType = "auto"
	}

	slog.Debug("creating output device", "type", backendType)

	if backendType == "auto" {
		backendType = detectOptimalBackend(f.isWSLFunc(), f.cgoFunc())
		slog.Debug("auto-detection result", "selected_type", backendType)
	}

	switch backendType {
	case "malgo":
		return NewMalgoDevice(f.options.BufferFrames), nil
	case "oto":
		return NewOtoDevice(f.options.BufferFrames), nil
	case "headless":
		return NewHeadlessDevice(HeadlessConfig{
			Realtime:     f.options.Realtime,
			BufferFrames: f.options.BufferFrames,
		}), nil
	case "wav":
		if f.options.RecordPath == "" {
			slog.Error("wav backend requested without an output path")
			return nil, fmt.Errorf("%w: wav backend needs an output path", ErrBackendNotAvailable)
		}
		return NewWavRecorder(f.options.RecordPath, f.options.Realtime), nil
	default:
		slog.Error("invalid backend type requested", "type", backendType)
		return nil, fmt.Errorf("%w: %s", ErrInvalidBackendType, backendType)
	}
}

// GetSupportedBackends returns all supported backend types
func (f *DefaultFactory) GetSupportedBackends() []string {
	return []string{"auto", "malgo", "oto", "headless", "wav"}
}

// IsValidBackendType checks if a backend type is supported; empty defaults to auto
func (f *DefaultFactory) IsValidBackendType(backendType string) bool {
	if backendType == "" {
		return true
	}
	for _, supported := range f.GetSupportedBackends() {
		if backendType == supported {
			return true
		}
	}
	return false
}

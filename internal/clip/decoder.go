package clip

import (
	"errors"
	"io"
	"time"

	"github.com/go-audio/audio"
)

// Common decoder errors
var (
	ErrInvalidData       = errors.New("invalid audio data")
	ErrReadFailure       = errors.New("failed to read audio data")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// AudioData represents decoded audio as normalised stereo frames
type AudioData struct {
	Frames     [][2]float64 // Samples in [-1, 1]; mono sources are duplicated to both channels
	Channels   int          // Channel count of the source material
	SampleRate int          // Sample rate in Hz
	BitDepth   int          // Bit depth of the source material
}

// Duration returns the playback length at the native sample rate
func (d *AudioData) Duration() time.Duration {
	if d == nil || d.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(d.Frames)) * time.Second / time.Duration(d.SampleRate)
}

// Decoder interface for audio format decoding
type Decoder interface {
	// Decode reads audio data from reader and returns decoded PCM frames
	Decode(reader io.Reader) (*AudioData, error)

	// CanDecode checks if this decoder can handle the given filename
	CanDecode(filename string) bool

	// FormatName returns the name of the format this decoder handles
	FormatName() string
}

// framesFromIntBuffer normalises interleaved integer PCM into stereo frames.
// Channels beyond the second are ignored.
func framesFromIntBuffer(buf *audio.IntBuffer, bitDepth int) ([][2]float64, error) {
	if buf == nil || buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, ErrInvalidData
	}

	channels := buf.Format.NumChannels
	scale, offset := sampleScale(bitDepth)
	if scale == 0 {
		return nil, ErrUnsupportedFormat
	}

	frames := make([][2]float64, len(buf.Data)/channels)
	for i := range frames {
		base := i * channels
		left := (float64(buf.Data[base]) - offset) / scale
		right := left
		if channels > 1 {
			right = (float64(buf.Data[base+1]) - offset) / scale
		}
		frames[i] = [2]float64{left, right}
	}
	return frames, nil
}

// sampleScale returns the divisor and DC offset for a bit depth (8-bit PCM is unsigned)
func sampleScale(bitDepth int) (scale, offset float64) {
	switch bitDepth {
	case 8:
		return 128, 128
	case 16, 24, 32:
		return float64(int64(1) << (bitDepth - 1)), 0
	default:
		return 0, 0
	}
}

package output

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestDeviceInterface(t *testing.T) {
	var _ Device = (*HeadlessDevice)(nil)
	var _ Device = (*WavRecorder)(nil)
	var _ Stream = (*HeadlessStream)(nil)
	var _ Stream = (*recorderStream)(nil)
	var _ Stream = (*ringStream)(nil)
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(4)

	assert.Equal(t, 3, rb.Write([]float32{1, 2, 3}))
	assert.Equal(t, 1, rb.Free())
	assert.Equal(t, 1, rb.Write([]float32{4, 5}), "write beyond capacity should be truncated")

	out := make([]float32, 6)
	assert.Equal(t, 4, rb.Read(out))
	assert.Equal(t, []float32{1, 2, 3, 4, 0, 0}, out, "underrun should be zero-filled")
	assert.Equal(t, 0, rb.Available())

	// wrap around
	rb.Write([]float32{6, 7, 8})
	got := make([]float32, 3)
	rb.Read(got)
	assert.Equal(t, []float32{6, 7, 8}, got)
}

func TestInterleave(t *testing.T) {
	frames := [][2]float64{{0.5, -0.5}, {1, 0}}

	assert.Equal(t, []float32{0.5, -0.5, 1, 0}, interleave(nil, frames, 2))
	assert.Equal(t, []float32{0, 0.5}, interleave(nil, frames, 1))
	assert.Equal(t, []float32{0.5, -0.5, 0, 1, 0, 0}, interleave(nil, frames, 3))
}

func TestPacer(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}

	t.Run("unthrottled always offers the buffer", func(t *testing.T) {
		p := newPacer(1000, 100, false, clock.Now)
		assert.Equal(t, 100, p.free())
		p.advance(100)
		assert.Equal(t, 100, p.free())
	})

	t.Run("realtime follows the clock", func(t *testing.T) {
		p := newPacer(1000, 100, true, clock.Now)
		assert.Equal(t, 100, p.free())
		p.advance(100)
		assert.Equal(t, 0, p.free())

		clock.Advance(50 * time.Millisecond)
		assert.Equal(t, 50, p.free())
	})

	t.Run("realtime catches up after a stall", func(t *testing.T) {
		p := newPacer(1000, 100, true, clock.Now)
		clock.Advance(10 * time.Second)
		assert.Equal(t, 100, p.free())
		p.advance(100)
		assert.Equal(t, 0, p.free())
	})
}

func TestHeadlessDevice(t *testing.T) {
	device := NewHeadlessDevice(HeadlessConfig{BufferFrames: 256})
	assert.Equal(t, "headless", device.Name())

	devices, err := device.Devices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.True(t, devices[0].IsDefault)

	_, err = device.Open(1, DefaultFormat())
	assert.True(t, errors.Is(err, ErrDeviceIndex))

	stream, err := device.Open(0, DefaultFormat())
	require.NoError(t, err)
	assert.Equal(t, 1, device.Opened())
	assert.Equal(t, 256, stream.Free())

	n, err := stream.Write([][2]float64{{0.25, -0.75}, {0.1, 0.1}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hs := stream.(*HeadlessStream)
	assert.Equal(t, int64(2), hs.Frames())
	assert.InDelta(t, 0.75, hs.Peak(), 1e-9)

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close(), "closing twice should not fail")
	assert.Equal(t, 0, stream.Free())
	_, err = stream.Write([][2]float64{{0, 0}})
	assert.True(t, errors.Is(err, ErrStreamClosed))

	require.NoError(t, device.Close())
	_, err = device.Devices()
	assert.True(t, errors.Is(err, ErrDeviceClosed))
}

func TestHeadlessDeviceRealtime(t *testing.T) {
	clock := &fakeClock{now: time.Unix(100, 0)}
	device := NewHeadlessDevice(HeadlessConfig{Realtime: true, BufferFrames: 480, Now: clock.Now})

	stream, err := device.Open(0, DefaultFormat())
	require.NoError(t, err)

	_, err = stream.Write(make([][2]float64, 480))
	require.NoError(t, err)
	assert.Equal(t, 0, stream.Free())

	clock.Advance(5 * time.Millisecond)
	assert.Equal(t, 240, stream.Free())
}

func TestWavRecorder(t *testing.T) {
	fs := afero.NewMemMapFs()
	recorder := NewWavRecorderWithFilesystem(fs, "/out/mix.wav", false, nil)
	require.NoError(t, fs.MkdirAll("/out", 0755))

	devices, err := recorder.Devices()
	require.NoError(t, err)
	require.Len(t, devices, 1)

	stream, err := recorder.Open(0, Format{SampleRate: 22050, Channels: 2})
	require.NoError(t, err)
	assert.Greater(t, stream.Free(), 0)

	frames := make([][2]float64, 100)
	for i := range frames {
		frames[i] = [2]float64{0.5, -2} // right channel clips
	}
	n, err := stream.Write(frames)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	require.NoError(t, stream.Close())

	file, err := fs.Open("/out/mix.wav")
	require.NoError(t, err)
	defer file.Close()

	decoder := wav.NewDecoder(file)
	require.True(t, decoder.IsValidFile())
	buf, err := decoder.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, 2, buf.Format.NumChannels)
	assert.Equal(t, 22050, buf.Format.SampleRate)
	require.Len(t, buf.Data, 200)
	half := 0.5
	assert.Equal(t, int(half*float64(math.MaxInt16)), buf.Data[0])
	assert.Equal(t, -math.MaxInt16, buf.Data[1])
}

func TestWavRecorderWithoutPath(t *testing.T) {
	recorder := NewWavRecorderWithFilesystem(afero.NewMemMapFs(), "", false, nil)
	_, err := recorder.Devices()
	assert.True(t, errors.Is(err, ErrBackendNotAvailable))
}

func TestRingStreamFill(t *testing.T) {
	closed := false
	stream := newRingStream(Format{SampleRate: 48000, Channels: 2}, 4, func() error {
		closed = true
		return nil
	})

	assert.Equal(t, 4, stream.Free())
	n, err := stream.Write([][2]float64{{0.5, -0.5}, {1, 1}, {0, 0}, {0, 0}, {0, 0}})
	require.NoError(t, err)
	assert.Equal(t, 4, n, "ring holds four frames")

	out := make([]byte, 8)
	stream.fill(out)
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(out[0:])))
	assert.Equal(t, float32(-0.5), math.Float32frombits(binary.LittleEndian.Uint32(out[4:])))
	assert.Equal(t, 1, stream.Free())

	require.NoError(t, stream.Close())
	assert.True(t, closed)
	_, err = stream.Write([][2]float64{{0, 0}})
	assert.True(t, errors.Is(err, ErrStreamClosed))
}

func TestDetectWSLFromData(t *testing.T) {
	tests := []struct {
		name        string
		procVersion string
		wslEnv      string
		expected    bool
	}{
		{"WSL2 kernel", "Linux version 5.15.74.2-microsoft-standard-WSL2", "", true},
		{"distro env var", "", "Ubuntu", true},
		{"native linux", "Linux version 5.15.0-56-generic (buildd@lcy02-amd64-044)", "", false},
		{"nothing", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectWSLFromData(tt.procVersion, tt.wslEnv); got != tt.expected {
				t.Errorf("detectWSLFromData() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFactoryCreateDevice(t *testing.T) {
	tests := []struct {
		name        string
		backendType string
		isWSL       bool
		cgo         bool
		options     FactoryOptions
		wantName    string
		wantErr     error
	}{
		{name: "empty means auto, native", backendType: "", cgo: true, wantName: "malgo"},
		{name: "auto on WSL", backendType: "auto", isWSL: true, cgo: true, wantName: "oto"},
		{name: "auto without cgo", backendType: "auto", isWSL: true, cgo: false, wantName: "headless"},
		{name: "explicit headless", backendType: "headless", wantName: "headless"},
		{name: "explicit oto", backendType: "oto", wantName: "oto"},
		{name: "wav with path", backendType: "wav", options: FactoryOptions{RecordPath: "/tmp/x.wav"}, wantName: "wav"},
		{name: "wav without path", backendType: "wav", wantErr: ErrBackendNotAvailable},
		{name: "unknown", backendType: "pulse", wantErr: ErrInvalidBackendType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewFactoryWithDependencies(tt.options,
				func() bool { return tt.isWSL },
				func() bool { return tt.cgo })

			device, err := factory.CreateDevice(tt.backendType)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, device.Name())
		})
	}
}

func TestFactoryIsValidBackendType(t *testing.T) {
	factory := NewFactory(FactoryOptions{})
	for _, backend := range []string{"", "auto", "malgo", "oto", "headless", "wav"} {
		assert.True(t, factory.IsValidBackendType(backend), backend)
	}
	assert.False(t, factory.IsValidBackendType("system_command"))
}

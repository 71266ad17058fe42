package audio

import (
	"errors"
	"slices"
	"sync"
	"time"

	"soundstage.dev/internal/clip"
	"soundstage.dev/internal/output"
	"soundstage.dev/internal/spatial"
)

// recordingEngine records every call and lets tests end voices by hand
type recordingEngine struct {
	mu      sync.Mutex
	gate    chan struct{}
	calls   []Command
	playing []SoundInstanceID
	stopAll int
	mixed   int
}

func newRecordingEngine() *recordingEngine {
	return &recordingEngine{}
}

func (e *recordingEngine) factory() EngineFactory {
	return func(output.Format) Engine { return e }
}

func (e *recordingEngine) record(cmd Command) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, cmd)
}

func (e *recordingEngine) Start(cmd StartInstance) error {
	if e.gate != nil {
		<-e.gate
	}
	e.record(cmd)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = append(e.playing, cmd.ID)
	return nil
}

func (e *recordingEngine) Stop(id SoundInstanceID) {
	e.record(StopInstance{ID: id})
	e.finish(id)
}

func (e *recordingEngine) SetGain(id SoundInstanceID, gain float64) {
	e.record(SetGain{ID: id, Gain: gain})
}

func (e *recordingEngine) SetPan(id SoundInstanceID, pan float64) {
	e.record(SetPan{ID: id, Pan: pan})
}

func (e *recordingEngine) SetPosition(id SoundInstanceID, pos spatial.SourcePosition) {
	e.record(SetPosition{ID: id, Position: pos})
}

func (e *recordingEngine) Fade(id SoundInstanceID, target float64, d time.Duration, stopAtEnd bool) {
	e.record(FadeInstance{ID: id, Target: target, Duration: d, StopAtEnd: stopAtEnd})
}

func (e *recordingEngine) SetGroupVolume(group string, gain float64) {
	e.record(SetGroupVolume{Group: group, Gain: gain})
}

func (e *recordingEngine) SetListener(listener spatial.ListenerData) {
	e.record(SetListener{Listener: listener})
}

func (e *recordingEngine) Mix(dst [][2]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mixed += len(dst)
}

func (e *recordingEngine) Playing() []SoundInstanceID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.playing)
}

func (e *recordingEngine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopAll++
	e.playing = nil
}

// finish simulates a voice running out of samples
func (e *recordingEngine) finish(id SoundInstanceID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = slices.DeleteFunc(e.playing, func(other SoundInstanceID) bool { return other == id })
}

func (e *recordingEngine) Calls() []Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.calls)
}

func (e *recordingEngine) StopAllCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopAll
}

func (e *recordingEngine) Mixed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mixed
}

// fakeDevice is an output.Device with scripted failures
type fakeDevice struct {
	mu      sync.Mutex
	names   []string
	openErr error
	streams []*fakeStream
	// gate, when set, blocks Devices until it is closed
	gate chan struct{}
}

func newFakeDevice(names ...string) *fakeDevice {
	return &fakeDevice{names: names}
}

func (d *fakeDevice) Name() string { return "fake" }

func (d *fakeDevice) Devices() ([]output.DeviceInfo, error) {
	d.mu.Lock()
	gate := d.gate
	d.mu.Unlock()
	if gate != nil {
		<-gate
	}

	infos := make([]output.DeviceInfo, len(d.names))
	for i, name := range d.names {
		infos[i] = output.DeviceInfo{Index: i, Name: name, IsDefault: i == 0}
	}
	return infos, nil
}

func (d *fakeDevice) Open(index int, format output.Format) (output.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	s := &fakeStream{format: format, free: 1 << 20}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDevice) Close() error { return nil }

func (d *fakeDevice) Streams() []*fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.streams)
}

var errOpenFailed = errors.New("device busy")

type fakeStream struct {
	mu      sync.Mutex
	format  output.Format
	free    int
	written int
	closed  bool
}

func (s *fakeStream) Format() output.Format { return s.format }

func (s *fakeStream) Free() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.free
}

func (s *fakeStream) Write(frames [][2]float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, output.ErrStreamClosed
	}
	s.written += len(frames)
	return len(frames), nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeStream) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// recordingSink captures handle commands and answers IsPlaying from a set
type recordingSink struct {
	commands []Command
	playing  map[SoundInstanceID]bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{playing: make(map[SoundInstanceID]bool)}
}

func (s *recordingSink) Enqueue(cmd Command) {
	s.commands = append(s.commands, cmd)
}

func (s *recordingSink) IsPlaying(id SoundInstanceID) bool {
	return s.playing[id]
}

func (s *recordingSink) handle(id SoundInstanceID) Handle {
	s.playing[id] = true
	return newHandle(id, s)
}

func (s *recordingSink) take() []Command {
	cmds := s.commands
	s.commands = nil
	return cmds
}

// manualClock is a settable time source
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testClip(name string) *clip.Clip {
	data := &clip.AudioData{
		Frames:     make([][2]float64, 64),
		Channels:   2,
		SampleRate: 48000,
		BitDepth:   16,
	}
	c, err := clip.NewClip(name, data)
	if err != nil {
		panic(err)
	}
	return c
}

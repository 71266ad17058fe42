package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"soundstage.dev/internal/clip"
	"soundstage.dev/internal/output"
	"soundstage.dev/internal/spatial"
)

// Facade errors
var (
	ErrNotInitialized     = errors.New("audio facade not initialized")
	ErrAlreadyInitialized = errors.New("audio facade already initialized")
	ErrDeviceUnavailable  = errors.New("audio device unavailable")
	ErrNilClip            = errors.New("clip is nil")
	ErrIDsExhausted       = errors.New("sound instance ids exhausted")
)

// LifecycleState is the facade's position in its lifecycle
type LifecycleState int32

const (
	StateUninitialized LifecycleState = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s LifecycleState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Facade is the control-side entry point of the audio system. It owns a
// goroutine that executes queued commands against the engine and mixes into the
// attached output stream. Facade methods never wait for the audio goroutine;
// their effects are applied asynchronously, in call order.
type Facade struct {
	device       output.Device
	config       Config
	newEngine    EngineFactory
	now          func() time.Time
	hooks        []Hook
	loopInterval time.Duration

	state    atomic.Int32
	queue    atomic.Pointer[CommandQueue]
	registry atomic.Pointer[Registry]
	wg       sync.WaitGroup

	// control side, guarded by mu
	mu       sync.Mutex
	music    *MusicTable
	lastID   SoundInstanceID
	attached bool // an AttachOutput was queued and no DetachOutput since

	// audio side, owned by the audio goroutine while running
	engine Engine
	stream output.Stream
	acked  SoundInstanceID
	block  [][2]float64
}

// New creates an uninitialized facade that plays through device
func New(device output.Device, opts ...Option) *Facade {
	f := &Facade{
		device:       device,
		config:       DefaultConfig(),
		newEngine:    NewMixerEngine,
		now:          time.Now,
		loopInterval: 5 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State returns the current lifecycle state
func (f *Facade) State() LifecycleState {
	return LifecycleState(f.state.Load())
}

func (f *Facade) running() bool {
	return f.State() == StateRunning
}

// Init creates the engine and starts the audio goroutine. A stopped facade may be
// initialized again; ids keep increasing across sessions.
func (f *Facade) Init() error {
	f.mu.Lock()

	if state := f.State(); state == StateRunning || state == StateStopping {
		f.mu.Unlock()
		slog.Warn("audio facade init called twice", "state", state.String())
		return ErrAlreadyInitialized
	}

	f.engine = f.newEngine(f.config.Format)
	f.stream = nil
	f.attached = false
	f.acked = f.lastID
	f.block = make([][2]float64, f.config.BlockFrames)
	f.music = NewMusicTable(f.config.MusicCrossfade)

	queue := NewCommandQueue()
	registry := NewRegistry()
	f.queue.Store(queue)
	f.registry.Store(registry)
	f.state.Store(int32(StateRunning))

	f.wg.Add(1)
	go f.run(queue, registry)

	f.mu.Unlock()

	slog.Info("audio facade initialized",
		"sample_rate", f.config.Format.SampleRate,
		"block_frames", f.config.BlockFrames)
	f.emit(Event{Type: EventInit})
	return nil
}

// DeInit stops the audio goroutine and releases the engine. Commands queued
// before the call are executed, not discarded, before voices are stopped.
// Calling DeInit on a facade that is not running does nothing.
func (f *Facade) DeInit() {
	f.mu.Lock()

	if !f.running() {
		f.mu.Unlock()
		slog.Debug("audio facade deinit skipped", "state", f.State().String())
		return
	}

	slog.Info("audio facade shutting down")
	f.state.Store(int32(StateStopping))

	queue := f.queue.Load()
	queue.Close()
	f.wg.Wait()

	drained := queue.Drain(f.execute)
	f.engine.StopAll()
	f.closeStream()
	f.engine = nil
	f.block = nil

	registry := f.registry.Load()
	registry.Publish(Snapshot{Acked: f.acked})
	ended := registry.Reconcile()
	f.music = NewMusicTable(f.config.MusicCrossfade)
	f.attached = false

	f.state.Store(int32(StateStopped))
	f.mu.Unlock()

	slog.Info("audio facade stopped", "drained_commands", drained, "ended_sounds", len(ended))
	for _, entry := range ended {
		f.emit(Event{Type: EventSoundEnded, Entry: entry})
	}
	f.emit(Event{Type: EventDeInit})
}

// Pump reconciles the registry with the audio goroutine's latest report and
// advances music track states. Call it once per frame from the control goroutine.
func (f *Facade) Pump() {
	f.mu.Lock()
	if !f.running() {
		f.mu.Unlock()
		return
	}
	ended := f.registry.Load().Reconcile()
	f.music.Advance(f.now())
	f.mu.Unlock()

	for _, entry := range ended {
		slog.Debug("sound ended", "sound_id", entry.ID, "clip", entry.Clip)
		f.emit(Event{Type: EventSoundEnded, Entry: entry})
	}
}

// Enqueue implements CommandSink. Commands sent while the facade is not running are dropped.
func (f *Facade) Enqueue(cmd Command) {
	f.enqueue(cmd)
}

// enqueue reports whether cmd reached the queue
func (f *Facade) enqueue(cmd Command) bool {
	if !f.running() {
		slog.Debug("command dropped, facade not running", "command", cmd.Kind().String())
		return false
	}
	if err := f.queue.Load().Enqueue(cmd); err != nil {
		slog.Debug("command dropped", "command", cmd.Kind().String(), "error", err)
		return false
	}
	return true
}

// IsPlaying implements CommandSink
func (f *Facade) IsPlaying(id SoundInstanceID) bool {
	registry := f.registry.Load()
	return registry != nil && registry.IsPlaying(id)
}

// Playing returns the registry's live entries
func (f *Facade) Playing() []PlayingSoundEntry {
	registry := f.registry.Load()
	if registry == nil {
		return nil
	}
	return registry.Entries()
}

// GetAudioDevices enumerates the outputs of the device backend
func (f *Facade) GetAudioDevices() ([]output.DeviceInfo, error) {
	devices, err := f.device.Devices()
	if err != nil {
		slog.Error("failed to enumerate audio devices", "backend", f.device.Name(), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return devices, nil
}

// StartPlayback opens output deviceNumber and hands it to the audio goroutine.
// On failure the current output, if any, keeps playing.
func (f *Facade) StartPlayback(deviceNumber int) error {
	if !f.running() {
		return ErrNotInitialized
	}

	// Enumeration can be slow; it must not hold up Pump or other control calls
	devices, err := f.GetAudioDevices()
	if err != nil {
		return err
	}
	if deviceNumber < 0 || deviceNumber >= len(devices) {
		slog.Error("audio device out of range", "device", deviceNumber, "count", len(devices))
		return fmt.Errorf("%w: device %d out of range (%d available)", ErrDeviceUnavailable, deviceNumber, len(devices))
	}

	f.mu.Lock()
	err = f.openOutput(deviceNumber)
	f.mu.Unlock()
	if err != nil {
		return err
	}

	slog.Info("playback starting", "device", deviceNumber, "name", devices[deviceNumber].Name)
	f.emit(Event{Type: EventPlaybackStarted, Device: deviceNumber})
	return nil
}

// openOutput opens the stream and queues it for the audio goroutine. Called with mu held.
func (f *Facade) openOutput(deviceNumber int) error {
	// DeInit may have run while devices were enumerated
	if !f.running() {
		return ErrNotInitialized
	}

	stream, err := f.device.Open(deviceNumber, f.config.Format)
	if err != nil {
		slog.Error("failed to open audio device", "device", deviceNumber, "error", err)
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	if !f.enqueue(AttachOutput{Device: deviceNumber, Stream: stream}) {
		if cerr := stream.Close(); cerr != nil {
			slog.Warn("failed to close unused output stream", "error", cerr)
		}
		return ErrNotInitialized
	}
	f.attached = true
	return nil
}

// StopPlayback detaches and closes the current output. Without an attached
// output it does nothing and emits no event.
func (f *Facade) StopPlayback() error {
	f.mu.Lock()
	if !f.running() {
		f.mu.Unlock()
		return ErrNotInitialized
	}
	if !f.attached {
		f.mu.Unlock()
		slog.Debug("stop playback skipped, no output attached")
		return nil
	}
	if !f.enqueue(DetachOutput{}) {
		f.mu.Unlock()
		return ErrNotInitialized
	}
	f.attached = false
	f.mu.Unlock()

	f.emit(Event{Type: EventPlaybackStopped})
	return nil
}

// Play starts a world sound in the sfx group
func (f *Facade) Play(c *clip.Clip, pos spatial.SourcePosition, volume float64, loop bool) (Handle, error) {
	return f.PlayInGroup(c, GroupSFX, pos, volume, loop)
}

// PlayInGroup starts a world sound in the named group
func (f *Facade) PlayInGroup(c *clip.Clip, group string, pos spatial.SourcePosition, volume float64, loop bool) (Handle, error) {
	return f.start(StartInstance{
		Clip:     c,
		Sound:    SoundWorld,
		Group:    group,
		Position: pos,
		Gain:     volume,
		Level:    1,
		Loop:     loop,
	}, -1, 0)
}

// PlayUI starts a non-spatial sound in the ui group with an explicit pan
func (f *Facade) PlayUI(c *clip.Clip, volume, pan float64, loop bool) (Handle, error) {
	return f.start(StartInstance{
		Clip:     c,
		Sound:    SoundUI,
		Group:    GroupUI,
		Position: spatial.MakeUI(pan),
		Gain:     volume,
		Level:    1,
		Loop:     loop,
	}, -1, 0)
}

// PlayMusic starts c on track, fading in over fadeIn. A track that is already
// playing is displaced at once: GetMusic returns the new handle when this returns,
// while the old instance fades out on its own.
func (f *Facade) PlayMusic(c *clip.Clip, track int, fadeIn time.Duration, loop bool) (Handle, error) {
	level := 1.0
	if fadeIn > 0 {
		level = 0
	}
	return f.start(StartInstance{
		Clip:     c,
		Sound:    SoundMusic,
		Group:    GroupMusic,
		Position: spatial.MakeFixed(),
		Gain:     1,
		Level:    level,
		Loop:     loop,
	}, track, fadeIn)
}

func (f *Facade) start(cmd StartInstance, track int, fadeIn time.Duration) (Handle, error) {
	f.mu.Lock()

	if !f.running() {
		f.mu.Unlock()
		return Handle{}, ErrNotInitialized
	}
	if cmd.Clip == nil {
		f.mu.Unlock()
		return Handle{}, ErrNilClip
	}
	if f.lastID == math.MaxUint64 {
		f.mu.Unlock()
		slog.Error("cannot start sound, instance ids exhausted", "clip", cmd.Clip.Name())
		return Handle{}, ErrIDsExhausted
	}

	f.lastID++
	cmd.ID = f.lastID
	now := f.now()
	entry := PlayingSoundEntry{
		ID:          cmd.ID,
		Clip:        cmd.Clip.Name(),
		Group:       cmd.Group,
		Kind:        cmd.Sound,
		Track:       track,
		RequestedAt: now,
	}
	f.registry.Load().Track(entry)

	h := newHandle(cmd.ID, f)
	f.Enqueue(cmd)
	if cmd.Sound == SoundMusic {
		if fadeIn > 0 {
			h.Fade(1, fadeIn)
		}
		f.music.Replace(track, h, fadeIn, now)
	}
	f.mu.Unlock()

	slog.Debug("sound requested",
		"sound_id", cmd.ID,
		"clip", entry.Clip,
		"kind", cmd.Sound.String(),
		"group", cmd.Group,
		"loop", cmd.Loop)
	f.emit(Event{Type: EventSoundRequested, Entry: entry})
	return h, nil
}

// GetMusic returns the handle occupying track, or the empty handle
func (f *Facade) GetMusic(track int) Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.music == nil {
		return Handle{}
	}
	return f.music.Occupant(track)
}

// MusicState returns the state of track
func (f *Facade) MusicState(track int) SlotState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.music == nil {
		return SlotEmpty
	}
	return f.music.State(track, f.now())
}

// MusicTracks returns the tracks currently occupied or fading out
func (f *Facade) MusicTracks() []MusicSlot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.music == nil {
		return nil
	}
	now := f.now()
	var slots []MusicSlot
	for _, track := range f.music.Tracks() {
		slots = append(slots, f.music.Slot(track, now))
	}
	return slots
}

// StopMusic fades out track over fadeOut and clears it immediately.
// A zero fadeOut stops without a fade.
func (f *Facade) StopMusic(track int, fadeOut time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running() {
		return ErrNotInitialized
	}
	f.music.Stop(track, fadeOut, f.now())
	return nil
}

// StopAllMusic applies StopMusic to every track that is playing or fading out
func (f *Facade) StopAllMusic(fadeOut time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running() {
		return ErrNotInitialized
	}
	stopped := f.music.StopAll(fadeOut, f.now())
	slog.Debug("all music stopped", "tracks", stopped, "fade_ms", fadeOut.Milliseconds())
	return nil
}

// SetGroupVolume changes the gain of a named group; groups default to 1.0
func (f *Facade) SetGroupVolume(group string, gain float64) error {
	if !f.running() {
		return ErrNotInitialized
	}
	f.Enqueue(SetGroupVolume{Group: group, Gain: gain})
	return nil
}

// SetListener moves the listener used for positional sounds
func (f *Facade) SetListener(listener spatial.ListenerData) error {
	if !f.running() {
		return ErrNotInitialized
	}
	f.Enqueue(SetListener{Listener: listener})
	return nil
}

func (f *Facade) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = f.now()
	}
	for _, hook := range f.hooks {
		hook(ev)
	}
}

package audio

import (
	"log/slog"
	"time"

	"soundstage.dev/internal/engine"
	"soundstage.dev/internal/output"
	"soundstage.dev/internal/spatial"
)

// Engine is what the audio goroutine drives. Implementations are used from that
// goroutine only and ignore ids they do not know.
type Engine interface {
	Start(cmd StartInstance) error
	Stop(id SoundInstanceID)
	SetGain(id SoundInstanceID, gain float64)
	SetPan(id SoundInstanceID, pan float64)
	SetPosition(id SoundInstanceID, pos spatial.SourcePosition)
	Fade(id SoundInstanceID, target float64, d time.Duration, stopAtEnd bool)
	SetGroupVolume(group string, gain float64)
	SetListener(listener spatial.ListenerData)
	Mix(dst [][2]float64)
	Playing() []SoundInstanceID
	StopAll()
}

// EngineFactory creates the engine for a session at the given format
type EngineFactory func(format output.Format) Engine

// NewMixerEngine returns the beep-based software mixer
func NewMixerEngine(format output.Format) Engine {
	return &mixerEngine{mixer: engine.New(format.SampleRate)}
}

type mixerEngine struct {
	mixer *engine.Engine
}

func (m *mixerEngine) Start(cmd StartInstance) error {
	return m.mixer.Start(uint64(cmd.ID), engine.Params{
		Clip:     cmd.Clip,
		Group:    cmd.Group,
		Gain:     cmd.Gain,
		Level:    cmd.Level,
		Position: cmd.Position,
		Loop:     cmd.Loop,
	})
}

func (m *mixerEngine) Stop(id SoundInstanceID) {
	ignored(m.mixer.Stop(uint64(id)), id, KindStopInstance)
}

func (m *mixerEngine) SetGain(id SoundInstanceID, gain float64) {
	ignored(m.mixer.SetGain(uint64(id), gain), id, KindSetGain)
}

func (m *mixerEngine) SetPan(id SoundInstanceID, pan float64) {
	ignored(m.mixer.SetPan(uint64(id), pan), id, KindSetPan)
}

func (m *mixerEngine) SetPosition(id SoundInstanceID, pos spatial.SourcePosition) {
	ignored(m.mixer.SetPosition(uint64(id), pos), id, KindSetPosition)
}

func (m *mixerEngine) Fade(id SoundInstanceID, target float64, d time.Duration, stopAtEnd bool) {
	ignored(m.mixer.Fade(uint64(id), target, d, stopAtEnd), id, KindFadeInstance)
}

func (m *mixerEngine) SetGroupVolume(group string, gain float64) {
	m.mixer.SetGroupVolume(group, gain)
}

func (m *mixerEngine) SetListener(listener spatial.ListenerData) {
	m.mixer.SetListener(listener)
}

func (m *mixerEngine) Mix(dst [][2]float64) {
	m.mixer.Mix(dst)
}

func (m *mixerEngine) Playing() []SoundInstanceID {
	raw := m.mixer.Playing()
	ids := make([]SoundInstanceID, len(raw))
	for i, id := range raw {
		ids[i] = SoundInstanceID(id)
	}
	return ids
}

func (m *mixerEngine) StopAll() {
	m.mixer.StopAll()
}

func ignored(found bool, id SoundInstanceID, kind CommandKind) {
	if !found {
		slog.Debug("command for unknown instance ignored", "sound_id", id, "command", kind.String())
	}
}

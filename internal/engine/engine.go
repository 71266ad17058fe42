// Package engine mixes playing voices into stereo blocks.
//
// An Engine is owned by the audio goroutine and is not safe for concurrent use.
// Every control operation addresses a voice by id; unknown ids are ignored so that
// commands for instances that already finished are harmless.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gopxl/beep"

	"soundstage.dev/internal/clip"
	"soundstage.dev/internal/spatial"
)

// resampleQuality is passed to beep.Resample for clips not at the engine rate
const resampleQuality = 3

// DefaultDeclick is the ramp applied to group volume changes
const DefaultDeclick = 10 * time.Millisecond

// MasterGroup scales every voice regardless of its own group
const MasterGroup = "master"

var (
	ErrNilClip     = errors.New("voice has no clip")
	ErrDuplicateID = errors.New("voice id already playing")
)

// Params describes a voice to start
type Params struct {
	Clip     *clip.Clip
	Group    string
	Gain     float64 // instance volume
	Level    float64 // initial fade level, 0 for fade-ins
	Position spatial.SourcePosition
	Loop     bool
}

type fade struct {
	from, to  float64
	total     int
	done      int
	stopAtEnd bool
}

type voice struct {
	id       uint64
	name     string
	group    string
	streamer beep.Streamer
	gain     float64
	level    float64
	fade     *fade
	position spatial.SourcePosition
	left     float64
	right    float64
	ended    bool
}

// step advances the voice's fade by one frame and returns the level to apply
func (v *voice) step() float64 {
	f := v.fade
	if f == nil {
		return v.level
	}
	f.done++
	if f.done >= f.total {
		v.level = f.to
		v.fade = nil
		if f.stopAtEnd {
			v.ended = true
		}
		return v.level
	}
	v.level = f.from + (f.to-f.from)*float64(f.done)/float64(f.total)
	return v.level
}

type group struct {
	current float64
	target  float64
	step    float64
}

// Engine is a software mixer of clip voices
type Engine struct {
	rate     beep.SampleRate
	declick  int
	voices   map[uint64]*voice
	order    []uint64
	groups   map[string]*group
	listener spatial.ListenerData
	scratch  [][2]float64
}

// New creates an engine mixing at sampleRate
func New(sampleRate int) *Engine {
	rate := beep.SampleRate(sampleRate)
	slog.Debug("creating mixing engine", "sample_rate", sampleRate)
	return &Engine{
		rate:     rate,
		declick:  max(1, rate.N(DefaultDeclick)),
		voices:   make(map[uint64]*voice),
		groups:   make(map[string]*group),
		listener: spatial.DefaultListener(),
	}
}

// SampleRate returns the mixing rate
func (e *Engine) SampleRate() int {
	return int(e.rate)
}

// Start begins a voice. The clip is resampled when its rate differs from the engine's.
func (e *Engine) Start(id uint64, p Params) error {
	if p.Clip == nil {
		return ErrNilClip
	}
	if _, exists := e.voices[id]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}

	var streamer beep.Streamer = p.Clip.Streamer()
	if p.Loop {
		streamer = beep.Loop(-1, p.Clip.Streamer())
	}
	if clipRate := p.Clip.Format().SampleRate; clipRate != e.rate {
		streamer = beep.Resample(resampleQuality, clipRate, e.rate, streamer)
	}

	v := &voice{
		id:       id,
		name:     p.Clip.Name(),
		group:    p.Group,
		streamer: streamer,
		gain:     p.Gain,
		level:    p.Level,
		position: p.Position,
	}
	v.left, v.right = spatial.Gains(v.position, e.listener)

	e.voices[id] = v
	e.order = append(e.order, id)

	slog.Debug("voice started",
		"sound_id", id,
		"clip", v.name,
		"group", v.group,
		"loop", p.Loop,
		"mode", p.Position.Mode.String())
	return nil
}

// Stop removes a voice immediately
func (e *Engine) Stop(id uint64) bool {
	if _, ok := e.voices[id]; !ok {
		return false
	}
	e.remove(id)
	slog.Debug("voice stopped", "sound_id", id)
	return true
}

// SetGain changes the instance volume
func (e *Engine) SetGain(id uint64, gain float64) bool {
	v, ok := e.voices[id]
	if !ok {
		return false
	}
	v.gain = gain
	return true
}

// SetPan places the voice in the stereo field, switching fixed voices to UI mode
func (e *Engine) SetPan(id uint64, pan float64) bool {
	v, ok := e.voices[id]
	if !ok {
		return false
	}
	if v.position.Mode == spatial.Positional {
		slog.Warn("pan ignored on positional voice", "sound_id", id)
		return true
	}
	v.position = spatial.MakeUI(pan)
	v.left, v.right = spatial.Gains(v.position, e.listener)
	return true
}

// SetPosition replaces the voice's placement
func (e *Engine) SetPosition(id uint64, pos spatial.SourcePosition) bool {
	v, ok := e.voices[id]
	if !ok {
		return false
	}
	v.position = pos
	v.left, v.right = spatial.Gains(v.position, e.listener)
	return true
}

// Fade ramps the voice's level to target over d, replacing any running fade.
// With stopAtEnd the voice is removed when the ramp completes.
func (e *Engine) Fade(id uint64, target float64, d time.Duration, stopAtEnd bool) bool {
	v, ok := e.voices[id]
	if !ok {
		return false
	}

	frames := e.rate.N(d)
	if frames <= 0 {
		v.fade = nil
		v.level = target
		if stopAtEnd {
			e.remove(id)
		}
		return true
	}

	v.fade = &fade{from: v.level, to: target, total: frames, stopAtEnd: stopAtEnd}
	slog.Debug("voice fade",
		"sound_id", id,
		"from", v.level,
		"to", target,
		"fade_ms", d.Milliseconds(),
		"stop_at_end", stopAtEnd)
	return true
}

// Level returns the current fade level of a voice
func (e *Engine) Level(id uint64) (float64, bool) {
	v, ok := e.voices[id]
	if !ok {
		return 0, false
	}
	return v.level, true
}

// SetGroupVolume ramps a group's gain to gain over the declick window
func (e *Engine) SetGroupVolume(name string, gain float64) {
	g, ok := e.groups[name]
	if !ok {
		g = &group{current: 1, target: 1}
		e.groups[name] = g
	}
	g.target = gain
	g.step = (g.target - g.current) / float64(e.declick)
	slog.Debug("group volume set", "group", name, "gain", gain)
}

// GroupVolume returns the target gain of a group; unknown groups are at 1.0
func (e *Engine) GroupVolume(name string) float64 {
	if g, ok := e.groups[name]; ok {
		return g.target
	}
	return 1
}

// SetListener moves the listener and re-pans every positional voice
func (e *Engine) SetListener(listener spatial.ListenerData) {
	e.listener = listener
	for _, v := range e.voices {
		v.left, v.right = spatial.Gains(v.position, e.listener)
	}
}

// Playing returns the ids of live voices in start order
func (e *Engine) Playing() []uint64 {
	ids := make([]uint64, len(e.order))
	copy(ids, e.order)
	return ids
}

// Len returns the number of live voices
func (e *Engine) Len() int {
	return len(e.voices)
}

// StopAll removes every voice
func (e *Engine) StopAll() {
	if len(e.voices) > 0 {
		slog.Debug("stopping all voices", "count", len(e.voices))
	}
	clear(e.voices)
	e.order = e.order[:0]
}

// Mix renders len(dst) frames of every voice into dst, overwriting it.
// Voices that run out of samples or finish a stopping fade are removed.
func (e *Engine) Mix(dst [][2]float64) {
	clear(dst)
	n := len(dst)
	if n == 0 {
		return
	}
	if cap(e.scratch) < n {
		e.scratch = make([][2]float64, n)
	}
	buf := e.scratch[:n]

	ramps := e.advanceGroups(n)

	var finished []uint64
	for _, id := range e.order {
		v := e.voices[id]

		got, ok := v.streamer.Stream(buf)
		groupRamp, groupRamping := ramps[v.group]
		masterRamp, masterRamping := ramps[MasterGroup]
		groupSteady := e.groupGain(v.group)
		masterSteady := e.groupGain(MasterGroup)

		for i := 0; i < got; i++ {
			g, m := groupSteady, masterSteady
			if groupRamping {
				g = groupRamp[i]
			}
			if masterRamping {
				m = masterRamp[i]
			}
			if v.group == MasterGroup {
				m = 1
			}
			gain := v.gain * v.step() * g * m
			dst[i][0] += buf[i][0] * gain * v.left
			dst[i][1] += buf[i][1] * gain * v.right
		}

		if !ok || got < n || v.ended {
			finished = append(finished, id)
		}
	}

	for _, id := range finished {
		slog.Debug("voice finished", "sound_id", id, "clip", e.voices[id].name)
		e.remove(id)
	}
}

func (e *Engine) groupGain(name string) float64 {
	if g, ok := e.groups[name]; ok {
		return g.current
	}
	return 1
}

// advanceGroups moves ramping groups forward by n frames and returns their per-frame gains
func (e *Engine) advanceGroups(n int) map[string][]float64 {
	var ramps map[string][]float64
	for name, g := range e.groups {
		if g.current == g.target {
			continue
		}
		if ramps == nil {
			ramps = make(map[string][]float64)
		}
		ramp := make([]float64, n)
		for i := range ramp {
			g.current += g.step
			if (g.step > 0 && g.current > g.target) || (g.step < 0 && g.current < g.target) || g.step == 0 {
				g.current = g.target
			}
			ramp[i] = g.current
		}
		ramps[name] = ramp
	}
	return ramps
}

func (e *Engine) remove(id uint64) {
	delete(e.voices, id)
	for i, other := range e.order {
		if other == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

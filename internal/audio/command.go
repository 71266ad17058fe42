package audio

import (
	"time"

	"soundstage.dev/internal/clip"
	"soundstage.dev/internal/output"
	"soundstage.dev/internal/spatial"
)

// SoundInstanceID identifies one playing instance. Zero is never assigned.
type SoundInstanceID uint64

// InvalidID is the id carried by the empty handle
const InvalidID SoundInstanceID = 0

// CommandKind names a Command variant
type CommandKind int

const (
	KindStartInstance CommandKind = iota
	KindStopInstance
	KindSetGain
	KindSetPan
	KindSetPosition
	KindFadeInstance
	KindSetGroupVolume
	KindSetListener
	KindAttachOutput
	KindDetachOutput
)

var commandKindNames = [...]string{
	KindStartInstance:  "start_instance",
	KindStopInstance:   "stop_instance",
	KindSetGain:        "set_gain",
	KindSetPan:         "set_pan",
	KindSetPosition:    "set_position",
	KindFadeInstance:   "fade_instance",
	KindSetGroupVolume: "set_group_volume",
	KindSetListener:    "set_listener",
	KindAttachOutput:   "attach_output",
	KindDetachOutput:   "detach_output",
}

func (k CommandKind) String() string {
	if k < 0 || int(k) >= len(commandKindNames) {
		return "unknown"
	}
	return commandKindNames[k]
}

// Command is a deferred request executed on the audio goroutine.
// The set of commands is closed; every variant is declared in this file.
type Command interface {
	Kind() CommandKind
	command()
}

// StartInstance begins playback of a clip as instance ID
type StartInstance struct {
	ID       SoundInstanceID
	Clip     *clip.Clip
	Sound    SoundKind
	Group    string
	Position spatial.SourcePosition
	Gain     float64
	Level    float64 // initial fade level
	Loop     bool
}

// StopInstance removes an instance immediately
type StopInstance struct {
	ID SoundInstanceID
}

// SetGain changes an instance's volume
type SetGain struct {
	ID   SoundInstanceID
	Gain float64
}

// SetPan changes an instance's stereo placement
type SetPan struct {
	ID  SoundInstanceID
	Pan float64
}

// SetPosition moves an instance
type SetPosition struct {
	ID       SoundInstanceID
	Position spatial.SourcePosition
}

// FadeInstance ramps an instance's level, optionally stopping it at the end
type FadeInstance struct {
	ID        SoundInstanceID
	Target    float64
	Duration  time.Duration
	StopAtEnd bool
}

// SetGroupVolume changes the gain of a named group
type SetGroupVolume struct {
	Group string
	Gain  float64
}

// SetListener moves the global listener
type SetListener struct {
	Listener spatial.ListenerData
}

// AttachOutput hands an opened stream to the audio goroutine, replacing any previous one
type AttachOutput struct {
	Device int
	Stream output.Stream
}

// DetachOutput closes the current stream
type DetachOutput struct{}

func (StartInstance) Kind() CommandKind  { return KindStartInstance }
func (StopInstance) Kind() CommandKind   { return KindStopInstance }
func (SetGain) Kind() CommandKind        { return KindSetGain }
func (SetPan) Kind() CommandKind         { return KindSetPan }
func (SetPosition) Kind() CommandKind    { return KindSetPosition }
func (FadeInstance) Kind() CommandKind   { return KindFadeInstance }
func (SetGroupVolume) Kind() CommandKind { return KindSetGroupVolume }
func (SetListener) Kind() CommandKind    { return KindSetListener }
func (AttachOutput) Kind() CommandKind   { return KindAttachOutput }
func (DetachOutput) Kind() CommandKind   { return KindDetachOutput }

func (StartInstance) command()  {}
func (StopInstance) command()   {}
func (SetGain) command()        {}
func (SetPan) command()         {}
func (SetPosition) command()    {}
func (FadeInstance) command()   {}
func (SetGroupVolume) command() {}
func (SetListener) command()    {}
func (AttachOutput) command()   {}
func (DetachOutput) command()   {}

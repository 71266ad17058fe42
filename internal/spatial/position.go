package spatial

import "math"

// Mode selects how a source is placed in the stereo field
type Mode int

const (
	// Fixed sources ignore the listener and play centred at full gain
	Fixed Mode = iota
	// UI sources use an explicit pan and ignore the listener
	UI
	// Positional sources are panned and attenuated relative to the listener
	Positional
)

func (m Mode) String() string {
	switch m {
	case Fixed:
		return "fixed"
	case UI:
		return "ui"
	case Positional:
		return "positional"
	default:
		return "unknown"
	}
}

// Vec3 is a plain 3D vector
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// SourcePosition carries the per-sound placement parameters
type SourcePosition struct {
	Mode     Mode
	Pan      float64 // -1 (left) to 1 (right), used by UI sources
	Position Vec3    // world position, used by Positional sources
	Range    float64 // distance at which a positional source becomes silent (0 = no falloff)
}

// MakeFixed returns a centred, non-spatial position
func MakeFixed() SourcePosition {
	return SourcePosition{Mode: Fixed}
}

// MakeUI returns a UI position with the given pan, clamped to [-1, 1]
func MakeUI(pan float64) SourcePosition {
	return SourcePosition{Mode: UI, Pan: clamp(pan, -1, 1)}
}

// MakePositional returns a world-space position with the given falloff range
func MakePositional(pos Vec3, rangeDist float64) SourcePosition {
	return SourcePosition{Mode: Positional, Position: pos, Range: rangeDist}
}

// ListenerData is the single global listener pose
type ListenerData struct {
	Position          Vec3
	Forward           Vec3
	Up                Vec3
	ReferenceDistance float64
}

// DefaultListener faces -Z with +Y up at the origin
func DefaultListener() ListenerData {
	return ListenerData{
		Forward:           Vec3{0, 0, -1},
		Up:                Vec3{0, 1, 0},
		ReferenceDistance: 1,
	}
}

// Gains returns left/right channel gains for a source heard by listener.
// Constant-power panning; positional sources attenuate linearly to zero at Range.
func Gains(src SourcePosition, listener ListenerData) (left, right float64) {
	switch src.Mode {
	case UI:
		return panGains(src.Pan)
	case Positional:
		rel := src.Position.Sub(listener.Position)
		dist := rel.Length()

		attenuation := 1.0
		if src.Range > 0 {
			ref := listener.ReferenceDistance
			if dist > ref {
				attenuation = clamp(1-(dist-ref)/math.Max(src.Range-ref, 1e-6), 0, 1)
			}
		}

		pan := 0.0
		if dist > 1e-6 {
			rightAxis := listener.Forward.Cross(listener.Up)
			if l := rightAxis.Length(); l > 1e-6 {
				pan = clamp(rel.Dot(rightAxis)/(l*dist), -1, 1)
			}
		}

		l, r := panGains(pan)
		return l * attenuation, r * attenuation
	default:
		return 1, 1
	}
}

func panGains(pan float64) (float64, float64) {
	angle := (clamp(pan, -1, 1) + 1) * math.Pi / 4
	return math.Cos(angle) * math.Sqrt2, math.Sin(angle) * math.Sqrt2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package audio

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/soundstage/soundstage/internal/sound"
)

// Rolloff describes inverse-distance attenuation.
type Rolloff struct {
	MinDistance    float32 // full volume inside this distance
	MaxDistance    float32 // attenuation stops growing beyond this distance
	DistanceFactor float32 // world units per meter
}

// DefaultRolloff returns a rolloff of 1 to 10000 units at one unit per meter.
func DefaultRolloff() Rolloff {
	return Rolloff{MinDistance: 1, MaxDistance: 10000, DistanceFactor: 1}
}

// Attenuation returns the gain of a source at pos heard from listener.
func (r Rolloff) Attenuation(listener sound.ListenerState, pos sound.Vec3) float32 {
	d := pos.Sub(listener.Position).Len() * r.DistanceFactor
	switch {
	case d <= r.MinDistance:
		return 1
	case d >= r.MaxDistance:
		return r.MinDistance / r.MaxDistance
	default:
		return r.MinDistance / d
	}
}

// Pan returns the stereo position of pos in [-1, 1], negative to the left.
func Pan(listener sound.ListenerState, pos sound.Vec3) float32 {
	dir := pos.Sub(listener.Position)
	if dir.Len() < mgl32.Epsilon {
		return 0
	}
	right := listener.Forward.Cross(listener.Up)
	if right.Len() < mgl32.Epsilon {
		return 0
	}
	return mgl32.Clamp(dir.Normalize().Dot(right.Normalize()), -1, 1)
}

// PanGains splits a pan position into equal-power left and right gains.
func PanGains(pan float32) (left, right float32) {
	angle := float64(pan+1) * math.Pi / 4
	return float32(math.Cos(angle)), float32(math.Sin(angle))
}

// ZoneWeight returns how strongly the reverb zone applies at the listener
// position: 1 within MinDistance of the origin, fading linearly to 0 at
// MaxDistance.
func ZoneWeight(r sound.Reverb, listener sound.Vec3) float32 {
	if r.Preset == sound.ReverbOff {
		return 0
	}
	d := listener.Sub(r.Origin).Len()
	switch {
	case d <= r.MinDistance:
		return 1
	case d >= r.MaxDistance || r.MaxDistance <= r.MinDistance:
		return 0
	default:
		return 1 - (d-r.MinDistance)/(r.MaxDistance-r.MinDistance)
	}
}

// delayFor returns the delay line length and feedback of a reverb preset.
func delayFor(p sound.ReverbPreset) (time.Duration, float32) {
	switch p {
	case sound.ReverbRoom:
		return 30 * time.Millisecond, 0.3
	case sound.ReverbConcertHall:
		return 120 * time.Millisecond, 0.5
	case sound.ReverbCave:
		return 250 * time.Millisecond, 0.65
	default:
		return 0, 0
	}
}

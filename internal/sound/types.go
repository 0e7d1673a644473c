package sound

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/oklog/ulid/v2"
)

// Vec3 is a position or direction in world space.
type Vec3 = mgl32.Vec3

// ID identifies a sound independently of the file it was loaded from.
type ID string

// NewID returns a fresh, unique sound identity.
func NewID() ID {
	return ID(ulid.Make().String())
}

// String returns the identity as a string.
func (id ID) String() string {
	return string(id)
}

// Descriptor describes a requested sound. Apart from SetPosition it is
// treated as an immutable request token.
type Descriptor struct {
	ID       ID
	Path     string
	Loop     bool
	Spatial  bool
	Position Vec3 // only used when Spatial is set
}

// DescriptorOption configures a Descriptor created with NewDescriptor.
type DescriptorOption func(*Descriptor)

// WithID sets an explicit identity instead of a generated one.
func WithID(id ID) DescriptorOption {
	return func(d *Descriptor) {
		d.ID = id
	}
}

// Looping makes the sound repeat when playback reaches the end.
func Looping() DescriptorOption {
	return func(d *Descriptor) {
		d.Loop = true
	}
}

// At positions the sound in 3D space.
func At(pos Vec3) DescriptorOption {
	return func(d *Descriptor) {
		d.Spatial = true
		d.Position = pos
	}
}

// NewDescriptor creates a descriptor for the file at path. Without WithID the
// descriptor gets a generated identity, so loading the same file twice through
// two descriptors yields two independent sounds.
func NewDescriptor(path string, opts ...DescriptorOption) Descriptor {
	d := Descriptor{Path: path}
	for _, opt := range opts {
		opt(&d)
	}
	if d.ID == "" {
		d.ID = NewID()
	}
	return d
}

// SetPosition updates the 3D coordinates of the sound. The new position only
// reaches the backend on the next Engine.UpdateSpatialPosition call.
func (d *Descriptor) SetPosition(x, y, z float32) {
	d.Position = Vec3{x, y, z}
}

// Mode returns the backend open mode for the descriptor.
func (d Descriptor) Mode() Mode {
	return Mode{Loop: d.Loop, Spatial: d.Spatial}
}

// Mode holds the flags a backend needs to open a sound.
type Mode struct {
	Loop    bool
	Spatial bool
}

// Param is an initial value for an event parameter.
type Param struct {
	Name  string
	Value float32
}

// ListenerState is the pose of the audio listener.
type ListenerState struct {
	Position Vec3
	Forward  Vec3
	Up       Vec3
}

// DefaultListener returns the listener pose used before the first
// SetListenerPose call: one unit behind the origin, facing +Z.
func DefaultListener() ListenerState {
	return ListenerState{
		Position: Vec3{0, 0, -1},
		Forward:  Vec3{0, 0, 1},
		Up:       Vec3{0, 1, 0},
	}
}

// ReverbPreset names a set of reverb properties understood by the backend.
type ReverbPreset int

const (
	ReverbOff ReverbPreset = iota
	ReverbRoom
	ReverbConcertHall
	ReverbCave
)

// String returns the preset name.
func (p ReverbPreset) String() string {
	switch p {
	case ReverbOff:
		return "off"
	case ReverbRoom:
		return "room"
	case ReverbConcertHall:
		return "concert-hall"
	case ReverbCave:
		return "cave"
	default:
		return "unknown"
	}
}

// ParseReverbPreset returns the preset with the given name.
func ParseReverbPreset(name string) (ReverbPreset, bool) {
	for _, p := range []ReverbPreset{ReverbOff, ReverbRoom, ReverbConcertHall, ReverbCave} {
		if p.String() == name {
			return p, true
		}
	}
	return ReverbOff, false
}

// Reverb is a 3D reverb zone. Listeners within MinDistance of Origin get the
// full effect, which fades out towards MaxDistance.
type Reverb struct {
	Preset      ReverbPreset
	Origin      Vec3
	MinDistance float32
	MaxDistance float32
	Amount      float32 // wet level, 0 to 1
}

// DefaultReverb returns a concert hall zone at the origin.
func DefaultReverb() Reverb {
	return Reverb{
		Preset:      ReverbConcertHall,
		MinDistance: 10,
		MaxDistance: 50,
		Amount:      0.5,
	}
}

// Stats summarizes what the engine currently holds.
type Stats struct {
	Sounds    int // loaded sounds
	Channels  int // active loop channels
	Banks     int
	Events    int
	Instances int // live event instances
}

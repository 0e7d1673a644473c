package sound

// Handle types returned by a Backend. The zero value is never a valid handle.
type (
	SoundHandle    uint64
	ChannelHandle  uint64
	BankHandle     uint64
	EventHandle    uint64
	InstanceHandle uint64
)

// PlaybackState is the state of an event instance.
type PlaybackState int

const (
	PlaybackStopped PlaybackState = iota
	PlaybackStarting
	PlaybackPlaying
	PlaybackStopping
)

// Active reports whether the instance is producing, or about to produce, sound.
func (s PlaybackState) Active() bool {
	return s != PlaybackStopped
}

// String returns the state name.
func (s PlaybackState) String() string {
	switch s {
	case PlaybackStopped:
		return "stopped"
	case PlaybackStarting:
		return "starting"
	case PlaybackPlaying:
		return "playing"
	case PlaybackStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Backend decodes, loads and renders audio on behalf of the Engine.
// Implementations own the mixing thread; the Engine only issues commands and
// polls state.
type Backend interface {
	// Update runs the backend's per-frame work.
	Update() error

	OpenSound(path string, mode Mode) (SoundHandle, error)
	ReleaseSound(h SoundHandle) error

	// StartPlayback starts a new voice for the sound and returns its channel.
	StartPlayback(h SoundHandle) (ChannelHandle, error)
	StopChannel(c ChannelHandle) error
	SetChannelPosition(c ChannelHandle, pos Vec3) error
	ChannelPlaying(c ChannelHandle) (bool, error)

	SetListenerAttributes(pos, forward, up Vec3) error
	SetReverb(r Reverb) error

	Studio

	Close() error
}

// Studio is the soundbank and event part of a Backend. An event is only
// visible through EventDescription while a bank defining it is loaded.
type Studio interface {
	LoadBank(path string) (BankHandle, error)
	UnloadBank(b BankHandle) error

	EventDescription(name string) (EventHandle, error)
	CreateInstance(e EventHandle) (InstanceHandle, error)
	ReleaseInstance(i InstanceHandle) error

	SetParameter(i InstanceHandle, name string, value float32) error
	SetInstanceVolume(i InstanceHandle, volume float32) error
	StartInstance(i InstanceHandle) error
	StopInstance(i InstanceHandle) error
	InstanceState(i InstanceHandle) (PlaybackState, error)
}

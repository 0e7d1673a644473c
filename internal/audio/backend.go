package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/soundstage/soundstage/internal/sound"
)

// DefaultMaxChannels is the default number of voices that may play at once.
const DefaultMaxChannels = 1024

var (
	errClosed        = errors.New("audio backend is closed")
	errChannelLimit  = errors.New("channel limit reached")
	errInvalidHandle = errors.New("invalid handle")
)

// Options configures a Backend.
type Options struct {
	MaxChannels int
	Rolloff     Rolloff
	Logger      *log.Logger
}

// DefaultOptions returns the default backend options.
func DefaultOptions() Options {
	return Options{
		MaxChannels: DefaultMaxChannels,
		Rolloff:     DefaultRolloff(),
	}
}

// Backend implements sound.Backend on a Device.
type Backend struct {
	dev  Device
	dec  *Decoder
	opts Options
	log  *log.Logger

	mu        sync.Mutex
	next      uint64
	closed    bool
	sounds    map[sound.SoundHandle]*clip
	channels  map[sound.ChannelHandle]*voice
	banks     map[sound.BankHandle]*Bank
	descs     map[sound.EventHandle]*eventDesc
	instances map[sound.InstanceHandle]*instance
	listener  sound.ListenerState
	reverb    sound.Reverb
}

type clip struct {
	path string
	pcm  []byte
	mode sound.Mode
}

// voice is a playing stream and its mixing state.
type voice struct {
	stream   *stream
	out      Voice
	spatial  bool
	position sound.Vec3
	volume   float32
}

var _ sound.Backend = (*Backend)(nil)

// New creates a backend playing on dev and decoding with dec.
func New(dev Device, dec *Decoder, opts Options) *Backend {
	if opts.MaxChannels <= 0 {
		opts.MaxChannels = DefaultMaxChannels
	}
	if opts.Rolloff == (Rolloff{}) {
		opts.Rolloff = DefaultRolloff()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Backend{
		dev:       dev,
		dec:       dec,
		opts:      opts,
		log:       logger,
		sounds:    make(map[sound.SoundHandle]*clip),
		channels:  make(map[sound.ChannelHandle]*voice),
		banks:     make(map[sound.BankHandle]*Bank),
		descs:     make(map[sound.EventHandle]*eventDesc),
		instances: make(map[sound.InstanceHandle]*instance),
		listener:  sound.DefaultListener(),
		reverb:    sound.Reverb{Preset: sound.ReverbOff},
	}
}

func (b *Backend) handle() uint64 {
	b.next++
	return b.next
}

// Voices returns how many voices are playing.
func (b *Backend) Voices() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activeVoices()
}

// activeVoices must be called with the lock held.
func (b *Backend) activeVoices() int {
	n := len(b.channels)
	for _, inst := range b.instances {
		if inst.voice != nil {
			n++
		}
	}
	return n
}

// Update reaps voices that reached their end and refreshes the mix of the
// rest against the current listener.
func (b *Backend) Update() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}

	for h, v := range b.channels {
		if !v.out.IsPlaying() {
			v.close()
			delete(b.channels, h)
			continue
		}
		b.mix(v)
	}
	for _, inst := range b.instances {
		if inst.voice == nil {
			continue
		}
		if !inst.voice.out.IsPlaying() {
			inst.voice.close()
			inst.voice = nil
			continue
		}
		b.mix(inst.voice)
	}
	return nil
}

// OpenSound decodes the file at path.
func (b *Backend) OpenSound(path string, mode sound.Mode) (sound.SoundHandle, error) {
	if b.isClosed() {
		return 0, errClosed
	}
	pcm, err := b.dec.Decode(path)
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, errClosed
	}
	h := sound.SoundHandle(b.handle())
	b.sounds[h] = &clip{path: path, pcm: pcm, mode: mode}
	return h, nil
}

// ReleaseSound drops the decoded clip. Voices already playing it keep their
// data until they end.
func (b *Backend) ReleaseSound(h sound.SoundHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}
	delete(b.sounds, h)
	return nil
}

// StartPlayback starts a new voice for the sound.
func (b *Backend) StartPlayback(h sound.SoundHandle) (sound.ChannelHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, errClosed
	}
	c, ok := b.sounds[h]
	if !ok {
		return 0, fmt.Errorf("sound %d: %w", h, errInvalidHandle)
	}

	v, err := b.startVoice(c.pcm, c.mode.Loop, c.mode.Spatial, sound.Vec3{}, 1)
	if err != nil {
		return 0, fmt.Errorf("start %s: %w", c.path, err)
	}
	ch := sound.ChannelHandle(b.handle())
	b.channels[ch] = v
	return ch, nil
}

// StopChannel stops and releases the voice. Unknown channels are ignored.
func (b *Backend) StopChannel(ch sound.ChannelHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}
	if v, ok := b.channels[ch]; ok {
		v.close()
		delete(b.channels, ch)
	}
	return nil
}

// SetChannelPosition moves the voice's source.
func (b *Backend) SetChannelPosition(ch sound.ChannelHandle, pos sound.Vec3) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}
	v, ok := b.channels[ch]
	if !ok {
		return fmt.Errorf("channel %d: %w", ch, errInvalidHandle)
	}
	v.position = pos
	b.mix(v)
	return nil
}

// ChannelPlaying reports whether the voice is still producing sound.
// Released channels report false.
func (b *Backend) ChannelPlaying(ch sound.ChannelHandle) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false, errClosed
	}
	v, ok := b.channels[ch]
	if !ok {
		return false, nil
	}
	return v.out.IsPlaying(), nil
}

// SetListenerAttributes moves the listener and remixes every voice.
func (b *Backend) SetListenerAttributes(pos, forward, up sound.Vec3) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}
	b.listener = sound.ListenerState{Position: pos, Forward: forward, Up: up}
	b.remix()
	return nil
}

// SetReverb changes the reverb zone for every voice.
func (b *Backend) SetReverb(r sound.Reverb) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}
	b.reverb = r
	delay, feedback := delayFor(r.Preset)
	b.eachVoice(func(v *voice) {
		v.stream.setDelay(delay, feedback, b.dev.SampleRate())
	})
	b.remix()
	return nil
}

// Close stops every voice and closes the device.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	b.eachVoice(func(v *voice) { v.close() })
	b.channels = make(map[sound.ChannelHandle]*voice)
	for _, inst := range b.instances {
		inst.voice = nil
	}
	return b.dev.Close()
}

func (b *Backend) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// startVoice must be called with the lock held.
func (b *Backend) startVoice(pcm []byte, loop, spatial bool, pos sound.Vec3, volume float32) (*voice, error) {
	if b.activeVoices() >= b.opts.MaxChannels {
		return nil, fmt.Errorf("%w (%d)", errChannelLimit, b.opts.MaxChannels)
	}

	st := newStream(pcm, loop)
	delay, feedback := delayFor(b.reverb.Preset)
	st.setDelay(delay, feedback, b.dev.SampleRate())

	v := &voice{stream: st, spatial: spatial, position: pos, volume: volume}
	b.mix(v)

	out, err := b.dev.NewVoice(st)
	if err != nil {
		return nil, err
	}
	v.out = out
	out.Play()
	return v, nil
}

// mix recomputes the voice's gains and reverb send.
func (b *Backend) mix(v *voice) {
	left, right := v.volume, v.volume
	if v.spatial {
		att := b.opts.Rolloff.Attenuation(b.listener, v.position)
		pl, pr := PanGains(Pan(b.listener, v.position))
		// equal-power gains are 1/√2 at center; rescale so a centered source
		// keeps unity gain
		const center = 1.4142135
		left *= att * pl * center
		right *= att * pr * center
	}
	v.stream.setGains(left, right)
	v.stream.setWet(b.reverb.Amount * ZoneWeight(b.reverb, b.listener.Position))
}

func (b *Backend) remix() {
	b.eachVoice(b.mix)
}

func (b *Backend) eachVoice(fn func(*voice)) {
	for _, v := range b.channels {
		fn(v)
	}
	for _, inst := range b.instances {
		if inst.voice != nil {
			fn(inst.voice)
		}
	}
}

func (v *voice) close() {
	v.stream.stop()
	if v.out != nil {
		_ = v.out.Close()
	}
}

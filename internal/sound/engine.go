package sound

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Options configures an Engine.
type Options struct {
	// Logger receives engine diagnostics. Defaults to log.Default().
	Logger *log.Logger

	// Strict logs caller mistakes (unknown identities, bad indices) at error
	// level instead of warn level. Intended for development builds.
	Strict bool

	// ValidateOrientation rejects listener poses whose forward and up vectors
	// are zero or not perpendicular. Off by default; caller vectors are never
	// corrected.
	ValidateOrientation bool

	// MaxInstancesPerEvent bounds the live instances of a single event,
	// including the primary one.
	MaxInstancesPerEvent int

	// Reverb is the zone applied by SetReverb.
	Reverb Reverb

	// PreloadWorkers bounds the concurrent loads issued by Preload.
	PreloadWorkers int
}

// DefaultOptions returns the default engine options.
func DefaultOptions() Options {
	return Options{
		MaxInstancesPerEvent: 32,
		Reverb:               DefaultReverb(),
		PreloadWorkers:       4,
	}
}

type loadedSound struct {
	handle SoundHandle
	mode   Mode
	path   string
}

// Engine is the playback resource cache. It guarantees that every identity is
// loaded at most once, that a looping sound has at most one active channel,
// and it gives raw sounds and bank events one position update path.
//
// The engine is meant to be driven from a single game loop goroutine. Its maps
// are guarded by a mutex so that Preload can load in the background.
type Engine struct {
	backend Backend
	opts    Options
	logger  *log.Logger

	mu       sync.Mutex
	sounds   map[ID]loadedSound
	channels map[ID]ChannelHandle
	banks    map[string]BankHandle
	events   map[string]*event
	listener ListenerState
	closed   bool

	loads singleflight.Group
}

// New creates an engine on top of backend.
func New(backend Backend, opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.MaxInstancesPerEvent <= 0 {
		opts.MaxInstancesPerEvent = defaults.MaxInstancesPerEvent
	}
	if opts.PreloadWorkers <= 0 {
		opts.PreloadWorkers = defaults.PreloadWorkers
	}
	if opts.Reverb == (Reverb{}) {
		opts.Reverb = defaults.Reverb
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Engine{
		backend:  backend,
		opts:     opts,
		logger:   logger,
		sounds:   make(map[ID]loadedSound),
		channels: make(map[ID]ChannelHandle),
		banks:    make(map[string]BankHandle),
		events:   make(map[string]*event),
		listener: DefaultListener(),
	}
}

// key returns the cache key of a descriptor. Descriptors built without an
// identity fall back to their path.
func (d Descriptor) key() ID {
	if d.ID != "" {
		return d.ID
	}
	return ID(d.Path)
}

// Load opens the sound described by d unless its identity is already loaded.
// Loading is idempotent: a second Load of the same identity does not touch the
// backend.
func (e *Engine) Load(d Descriptor) error {
	const op = "load"
	id := d.key()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return e.report(NewError(ErrorCodeClosed, op, id.String(), nil))
	}
	_, loaded := e.sounds[id]
	e.mu.Unlock()
	if loaded {
		return nil
	}

	_, err, _ := e.loads.Do(id.String(), func() (interface{}, error) {
		e.mu.Lock()
		_, loaded := e.sounds[id]
		e.mu.Unlock()
		if loaded {
			return nil, nil
		}

		h, err := e.backend.OpenSound(d.Path, d.Mode())
		if err != nil {
			return nil, NewError(ErrorCodeResourceLoad, op, id.String(), err)
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed {
			if err := e.backend.ReleaseSound(h); err != nil {
				e.report(NewError(ErrorCodeBackend, op, id.String(), err))
			}
			return nil, NewError(ErrorCodeClosed, op, id.String(), nil)
		}
		e.sounds[id] = loadedSound{handle: h, mode: d.Mode(), path: d.Path}
		e.logger.Debug("loaded sound", "id", id, "path", d.Path, "loop", d.Loop, "spatial", d.Spatial)
		return nil, nil
	})
	if err != nil {
		return e.report(err)
	}
	return nil
}

// Preload loads all descriptors concurrently, bounded by the configured
// number of workers. It returns the first error encountered.
func (e *Engine) Preload(ctx context.Context, ds ...Descriptor) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.PreloadWorkers)
	for _, d := range ds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return e.Load(d)
		})
	}
	return g.Wait()
}

// Play starts playback of a loaded sound. One-shot sounds are fire-and-forget.
// A looping sound that is already playing is left alone.
func (e *Engine) Play(d Descriptor) error {
	const op = "play"
	id := d.key()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return e.report(NewError(ErrorCodeClosed, op, id.String(), nil))
	}

	snd, ok := e.sounds[id]
	if !ok {
		return e.report(NewError(ErrorCodeNotLoaded, op, id.String(), nil))
	}

	if snd.mode.Loop {
		if _, playing := e.channels[id]; playing {
			e.logger.Debug("loop already playing", "id", id)
			return nil
		}
	}

	ch, err := e.backend.StartPlayback(snd.handle)
	if err != nil {
		return e.report(NewError(ErrorCodeBackend, op, id.String(), err))
	}

	if snd.mode.Spatial {
		if err := e.backend.SetChannelPosition(ch, d.Position); err != nil {
			e.report(NewError(ErrorCodeBackend, op, id.String(), err))
		}
	}

	if snd.mode.Loop {
		e.channels[id] = ch
	}
	return nil
}

// Stop stops a playing loop. Stopping a sound that is not playing is a no-op.
func (e *Engine) Stop(d Descriptor) error {
	const op = "stop"
	id := d.key()

	e.mu.Lock()
	defer e.mu.Unlock()

	ch, ok := e.channels[id]
	if !ok {
		return nil
	}

	// The channel stays tracked until the backend has stopped it.
	if err := e.backend.StopChannel(ch); err != nil {
		return e.report(NewError(ErrorCodeBackend, op, id.String(), err))
	}
	delete(e.channels, id)
	return nil
}

// UpdateSpatialPosition pushes the descriptor's current position to its
// playing channel. It must be called every frame for moving sounds; nothing is
// interpolated. Without an active channel the call only logs.
func (e *Engine) UpdateSpatialPosition(d Descriptor) error {
	const op = "update position"
	id := d.key()

	e.mu.Lock()
	defer e.mu.Unlock()

	ch, ok := e.channels[id]
	if !ok {
		e.logger.Debug("no active channel for position update", "id", id)
		return nil
	}

	if err := e.backend.SetChannelPosition(ch, d.Position); err != nil {
		return e.report(NewError(ErrorCodeBackend, op, id.String(), err))
	}
	return nil
}

// IsPlaying reports whether the identity has a channel that is still
// producing sound. Sounds that never played and loops that finished are
// indistinguishable.
func (e *Engine) IsPlaying(id ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch, ok := e.channels[id]
	if !ok {
		return false
	}

	playing, err := e.backend.ChannelPlaying(ch)
	if err != nil {
		e.report(NewError(ErrorCodeBackend, "is playing", id.String(), err))
		return false
	}
	return playing
}

// IsLoaded reports whether the identity has been loaded.
func (e *Engine) IsLoaded(id ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.sounds[id]
	return ok
}

// SetListenerPose updates the listener and forwards it to the backend.
func (e *Engine) SetListenerPose(pos, forward, up Vec3) error {
	const op = "set listener"

	if e.opts.ValidateOrientation {
		if err := ValidateOrientation(forward, up); err != nil {
			return e.report(NewError(ErrorCodeInvalidOrientation, op, "", err))
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return e.report(NewError(ErrorCodeClosed, op, "", nil))
	}

	e.listener = ListenerState{Position: pos, Forward: forward, Up: up}
	if err := e.backend.SetListenerAttributes(pos, forward, up); err != nil {
		return e.report(NewError(ErrorCodeBackend, op, "", err))
	}
	return nil
}

// Listener returns the last listener pose.
func (e *Engine) Listener() ListenerState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.listener
}

// SetReverb applies the configured reverb zone with the given wet amount,
// clamped to [0, 1].
func (e *Engine) SetReverb(amount float32) error {
	const op = "set reverb"

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return e.report(NewError(ErrorCodeClosed, op, "", nil))
	}

	r := e.opts.Reverb
	r.Amount = clamp01(amount)
	if err := e.backend.SetReverb(r); err != nil {
		return e.report(NewError(ErrorCodeBackend, op, r.Preset.String(), err))
	}
	return nil
}

// Update runs the backend's per-frame update and drops loop channels and
// transient event instances that have finished.
func (e *Engine) Update() error {
	const op = "update"

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return e.report(NewError(ErrorCodeClosed, op, "", nil))
	}

	var errs []error
	if err := e.backend.Update(); err != nil {
		errs = append(errs, e.report(NewError(ErrorCodeBackend, op, "", err)))
	}

	for id, ch := range e.channels {
		playing, err := e.backend.ChannelPlaying(ch)
		if err != nil {
			errs = append(errs, e.report(NewError(ErrorCodeBackend, op, id.String(), err)))
			continue
		}
		if !playing {
			delete(e.channels, id)
			e.logger.Debug("reaped finished channel", "id", id)
		}
	}

	e.reapInstances()

	return errors.Join(errs...)
}

// Stats returns a summary of the cached resources.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := Stats{
		Sounds:   len(e.sounds),
		Channels: len(e.channels),
		Banks:    len(e.banks),
		Events:   len(e.events),
	}
	for _, ev := range e.events {
		stats.Instances += ev.live()
	}
	return stats
}

// Close stops every channel, releases all resources and closes the backend.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	for id, ch := range e.channels {
		if err := e.backend.StopChannel(ch); err != nil {
			errs = append(errs, NewError(ErrorCodeBackend, "close", id.String(), err))
		}
	}
	for _, ev := range e.events {
		for _, inst := range ev.instances {
			if inst == nil {
				continue
			}
			if err := e.backend.ReleaseInstance(inst.handle); err != nil {
				errs = append(errs, NewError(ErrorCodeBackend, "close", ev.name, err))
			}
		}
	}
	for id, snd := range e.sounds {
		if err := e.backend.ReleaseSound(snd.handle); err != nil {
			errs = append(errs, NewError(ErrorCodeBackend, "close", id.String(), err))
		}
	}
	for path, b := range e.banks {
		if err := e.backend.UnloadBank(b); err != nil {
			errs = append(errs, NewError(ErrorCodeBackend, "close", path, err))
		}
	}
	if err := e.backend.Close(); err != nil {
		errs = append(errs, NewError(ErrorCodeBackend, "close", "", err))
	}

	e.channels = make(map[ID]ChannelHandle)
	e.events = make(map[string]*event)
	e.sounds = make(map[ID]loadedSound)
	e.banks = make(map[string]BankHandle)

	return errors.Join(errs...)
}

// report logs err according to its kind and returns it unchanged.
func (e *Engine) report(err error) error {
	var se *Error
	if !errors.As(err, &se) {
		e.logger.Error("sound engine error", "error", err)
		return err
	}

	kv := []interface{}{"op", se.Op, "code", se.Code}
	if se.Identity != "" {
		kv = append(kv, "id", se.Identity)
	}
	if se.Cause != nil {
		kv = append(kv, "cause", se.Cause)
	}

	switch {
	case se.IsMisuse() && e.opts.Strict:
		e.logger.Error("sound misuse", kv...)
	case se.IsMisuse():
		e.logger.Warn("sound misuse", kv...)
	default:
		e.logger.Error("sound backend error", kv...)
	}
	return err
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

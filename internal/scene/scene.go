// Package scene drives the sound engine from a configured scene: it loads the
// banks, events and sounds, moves emitters, feeds the camera pose to the
// listener and turns key presses into debounced sound actions.
package scene

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sahilm/fuzzy"

	"github.com/soundstage/soundstage/internal/camera"
	"github.com/soundstage/soundstage/internal/config"
	"github.com/soundstage/soundstage/internal/sound"
	"github.com/soundstage/soundstage/internal/trigger"
)

// ErrUnknownTarget is returned when a trigger names a sound or event the scene
// does not know.
var ErrUnknownTarget = errors.New("unknown target")

// emitter is a configured sound and its descriptor. Orbiting emitters move
// around origin every frame.
type emitter struct {
	cfg    config.SoundConfig
	desc   sound.Descriptor
	origin sound.Vec3
}

// Scene is the game loop side of the engine. It is not safe for concurrent
// use; drive it from one goroutine.
type Scene struct {
	engine   *sound.Engine
	cfg      config.SceneConfig
	camera   *camera.Camera
	debounce *trigger.Debouncer
	log      *log.Logger

	emitters map[string]*emitter
	order    []string // emitter keys in config order
	triggers map[string]config.TriggerConfig
	elapsed  time.Duration
	frames   uint64
}

// New creates a scene for cfg on top of engine. A nil logger uses
// log.Default().
func New(engine *sound.Engine, cfg config.SceneConfig, logger *log.Logger) *Scene {
	if logger == nil {
		logger = log.Default()
	}

	start := sound.Vec3{}
	if len(cfg.Start) == 3 {
		start = sound.Vec3{cfg.Start[0], cfg.Start[1], cfg.Start[2]}
	}
	cam := camera.New(start)
	cam.Grounded = true

	s := &Scene{
		engine:   engine,
		cfg:      cfg,
		camera:   cam,
		debounce: trigger.New(cfg.RetriggerInterval),
		log:      logger,
		emitters: make(map[string]*emitter, len(cfg.Sounds)),
		triggers: make(map[string]config.TriggerConfig, len(cfg.Triggers)),
	}

	for _, sc := range cfg.Sounds {
		key := sc.Key()
		opts := []sound.DescriptorOption{sound.WithID(sound.ID(key))}
		if sc.Loop {
			opts = append(opts, sound.Looping())
		}
		var origin sound.Vec3
		if len(sc.Position) == 3 {
			origin = sound.Vec3{sc.Position[0], sc.Position[1], sc.Position[2]}
			opts = append(opts, sound.At(origin))
		}
		s.emitters[key] = &emitter{
			cfg:    sc,
			desc:   sound.NewDescriptor(cfg.Resolve(sc.Path), opts...),
			origin: origin,
		}
		s.order = append(s.order, key)
	}
	for _, t := range cfg.Triggers {
		s.triggers[t.Key] = t
	}
	return s
}

// Camera returns the camera that drives the listener.
func (s *Scene) Camera() *camera.Camera {
	return s.camera
}

// Engine returns the underlying engine.
func (s *Scene) Engine() *sound.Engine {
	return s.engine
}

// Load loads every bank, event and sound of the scene, then starts the ones
// marked autoplay. A resource that fails to load is logged and skipped; the
// returned error joins all failures.
func (s *Scene) Load(ctx context.Context) error {
	var errs []error

	for _, bank := range s.cfg.Banks {
		if err := s.engine.LoadEventBank(s.cfg.Resolve(bank)); err != nil {
			errs = append(errs, err)
		}
	}

	for _, ev := range s.cfg.Events {
		if err := s.engine.LoadEvent(ev.Name, params(ev.Params)...); err != nil {
			errs = append(errs, err)
			continue
		}
		if ev.Volume != nil {
			if err := s.engine.SetEventVolume(ev.Name, *ev.Volume); err != nil {
				errs = append(errs, err)
			}
		}
	}

	descs := make([]sound.Descriptor, 0, len(s.order))
	for _, key := range s.order {
		descs = append(descs, s.emitters[key].desc)
	}
	if err := s.engine.Preload(ctx, descs...); err != nil {
		// Preload stops at the first failure; load the rest one by one so a
		// single missing file does not silence the scene.
		errs = append(errs, err)
		for _, d := range descs {
			if s.engine.IsLoaded(d.ID) {
				continue
			}
			if err := s.engine.Load(d); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Debug("sound not loaded", "id", d.ID, "err", err)
			}
		}
	}

	for _, ev := range s.cfg.Events {
		if ev.Autoplay {
			if err := s.engine.PlayEvent(ev.Name, 0); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for _, key := range s.order {
		e := s.emitters[key]
		if e.cfg.Autoplay {
			if err := s.engine.Play(e.desc); err != nil {
				errs = append(errs, err)
			}
		}
	}

	stats := s.engine.Stats()
	s.log.Info("Scene loaded", "banks", stats.Banks, "events", stats.Events, "sounds", stats.Sounds, "playing", stats.Channels)
	return errors.Join(errs...)
}

// params converts a parameter map into a stable list.
func params(m map[string]float32) []sound.Param {
	ps := make([]sound.Param, 0, len(m))
	for name, v := range m {
		ps = append(ps, sound.Param{Name: name, Value: v})
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Name < ps[j].Name })
	return ps
}

// Frame advances the scene by dt: orbiting emitters move, the listener follows
// the camera and the engine runs its per-frame update.
func (s *Scene) Frame(dt time.Duration) error {
	s.elapsed += dt
	s.frames++

	var errs []error
	t := float32(s.elapsed.Seconds())
	for _, key := range s.order {
		e := s.emitters[key]
		if e.cfg.Orbit == nil {
			continue
		}
		angle := float64(e.cfg.Orbit.Speed * t)
		r := e.cfg.Orbit.Radius
		e.desc.SetPosition(
			e.origin.X()+r*float32(math.Cos(angle)),
			e.origin.Y(),
			e.origin.Z()+r*float32(math.Sin(angle)),
		)
		if err := s.engine.UpdateSpatialPosition(e.desc); err != nil {
			errs = append(errs, err)
		}
	}

	pos, front, up := s.camera.Pose()
	if err := s.engine.SetListenerPose(pos, front, up); err != nil {
		errs = append(errs, err)
	}
	if err := s.engine.Update(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Run calls Frame every tick until ctx is done or, when frames is positive,
// that many frames have run.
func (s *Scene) Run(ctx context.Context, tick time.Duration, frames int) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	last := time.Now()
	for n := 0; frames <= 0 || n < frames; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := s.Frame(now.Sub(last)); err != nil {
				s.log.Warn("Frame failed", "frame", s.frames, "err", err)
			}
			last = now
		}
	}
	return nil
}

// Trigger fires the action bound to key unless the key fired less than the
// retrigger interval before now. It reports whether an action ran.
func (s *Scene) Trigger(key string, now time.Time) (bool, error) {
	t, ok := s.triggers[key]
	if !ok {
		return false, nil
	}
	if !s.debounce.AllowAt(key, now) {
		s.log.Debug("Trigger debounced", "key", key)
		return false, nil
	}

	err := s.run(t)
	if err != nil {
		return false, fmt.Errorf("key %s: %w", key, err)
	}
	s.log.Debug("Trigger fired", "key", key, "action", t.Action, "target", t.Target)
	return true, nil
}

func (s *Scene) run(t config.TriggerConfig) error {
	switch t.Action {
	case config.ActionEvent, config.ActionSpawn:
		if !s.hasEvent(t.Target) {
			return s.unknown("event", t.Target, s.engine.Events())
		}
		if t.Action == config.ActionEvent {
			return s.engine.PlayEvent(t.Target, 0)
		}
		_, err := s.engine.TriggerEvent(t.Target)
		return err
	}

	e, ok := s.emitters[t.Target]
	if !ok {
		return s.unknown("sound", t.Target, s.order)
	}
	switch t.Action {
	case config.ActionPlay:
		return s.engine.Play(e.desc)
	case config.ActionStop:
		return s.engine.Stop(e.desc)
	case config.ActionToggle:
		if s.engine.IsPlaying(e.desc.ID) {
			return s.engine.Stop(e.desc)
		}
		return s.engine.Play(e.desc)
	default:
		return fmt.Errorf("unknown action %q", t.Action)
	}
}

func (s *Scene) hasEvent(name string) bool {
	for _, ev := range s.engine.Events() {
		if ev == name {
			return true
		}
	}
	return false
}

// unknown builds an ErrUnknownTarget error, suggesting the closest candidate.
func (s *Scene) unknown(kind, target string, candidates []string) error {
	if match := Suggest(target, candidates); match != "" {
		return fmt.Errorf("%w: %s %q (did you mean %q?)", ErrUnknownTarget, kind, target, match)
	}
	return fmt.Errorf("%w: %s %q", ErrUnknownTarget, kind, target)
}

// Suggest returns the candidate that best fuzzy-matches target, or "" if none
// does.
func Suggest(target string, candidates []string) string {
	matches := fuzzy.Find(target, candidates)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

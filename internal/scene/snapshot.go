package scene

import (
	"sort"
	"time"

	"github.com/soundstage/soundstage/internal/config"
	"github.com/soundstage/soundstage/internal/sound"
)

// Snapshot is a point-in-time view of the scene for display.
type Snapshot struct {
	Listener sound.ListenerState
	Running  bool
	Sounds   []SoundStatus
	Events   []EventStatus
	Triggers []config.TriggerConfig
	Stats    sound.Stats
	Elapsed  time.Duration
	Frames   uint64
}

// SoundStatus describes one configured sound.
type SoundStatus struct {
	ID       string
	Path     string
	Loop     bool
	Spatial  bool
	Position sound.Vec3
	Loaded   bool
	Playing  bool
}

// EventStatus describes one loaded event.
type EventStatus struct {
	Name      string
	Playing   bool // primary instance
	Instances int
}

// Snapshot captures the current state.
func (s *Scene) Snapshot() Snapshot {
	snap := Snapshot{
		Listener: s.engine.Listener(),
		Running:  s.camera.Running,
		Stats:    s.engine.Stats(),
		Elapsed:  s.elapsed,
		Frames:   s.frames,
		Triggers: append([]config.TriggerConfig(nil), s.cfg.Triggers...),
	}

	for _, key := range s.order {
		e := s.emitters[key]
		snap.Sounds = append(snap.Sounds, SoundStatus{
			ID:       key,
			Path:     e.desc.Path,
			Loop:     e.desc.Loop,
			Spatial:  e.desc.Spatial,
			Position: e.desc.Position,
			Loaded:   s.engine.IsLoaded(e.desc.ID),
			Playing:  s.engine.IsPlaying(e.desc.ID),
		})
	}

	names := s.engine.Events()
	sort.Strings(names)
	for _, name := range names {
		playing, _ := s.engine.EventIsPlaying(name, 0)
		snap.Events = append(snap.Events, EventStatus{
			Name:      name,
			Playing:   playing,
			Instances: s.engine.EventInstances(name),
		})
	}

	sort.Slice(snap.Triggers, func(i, j int) bool { return snap.Triggers[i].Key < snap.Triggers[j].Key })
	return snap
}

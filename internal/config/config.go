// Package config holds the soundstage configuration: audio output, the PCM
// cache and the demo scene.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/soundstage/soundstage/internal/sound"
)

// Config contains all soundstage configuration options.
type Config struct {
	Audio AudioConfig `mapstructure:"audio" yaml:"audio"`
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`
	Scene SceneConfig `mapstructure:"scene" yaml:"scene"`
}

// AudioConfig configures the output device and the engine.
type AudioConfig struct {
	SampleRate int           `mapstructure:"sample_rate" yaml:"sample_rate"`
	BufferSize time.Duration `mapstructure:"buffer_size" yaml:"buffer_size"`
	NoAudio    bool          `mapstructure:"no_audio" yaml:"no_audio"`

	MaxChannels          int     `mapstructure:"max_channels" yaml:"max_channels"`
	MaxInstancesPerEvent int     `mapstructure:"max_instances_per_event" yaml:"max_instances_per_event"`
	PreloadWorkers       int     `mapstructure:"preload_workers" yaml:"preload_workers"`
	DistanceFactor       float32 `mapstructure:"distance_factor" yaml:"distance_factor"`
	MinDistance          float32 `mapstructure:"min_distance" yaml:"min_distance"`
	MaxDistance          float32 `mapstructure:"max_distance" yaml:"max_distance"`

	Strict              bool `mapstructure:"strict" yaml:"strict"`
	ValidateOrientation bool `mapstructure:"validate_orientation" yaml:"validate_orientation"`

	Reverb ReverbConfig `mapstructure:"reverb" yaml:"reverb"`
}

// ReverbConfig describes the reverb zone.
type ReverbConfig struct {
	Preset      string    `mapstructure:"preset" yaml:"preset"`
	Origin      []float32 `mapstructure:"origin" yaml:"origin"`
	MinDistance float32   `mapstructure:"min_distance" yaml:"min_distance"`
	MaxDistance float32   `mapstructure:"max_distance" yaml:"max_distance"`
	Amount      float32   `mapstructure:"amount" yaml:"amount"`
}

// CacheConfig configures the decoded PCM cache.
type CacheConfig struct {
	Enabled          bool          `mapstructure:"enabled" yaml:"enabled"`
	Dir              string        `mapstructure:"dir" yaml:"dir"` // empty uses the user cache dir
	MemoryMB         int           `mapstructure:"memory_mb" yaml:"memory_mb"`
	DiskMB           int           `mapstructure:"disk_mb" yaml:"disk_mb"` // 0 keeps the cache in memory only
	CompressionLevel int           `mapstructure:"compression_level" yaml:"compression_level"`
	TTL              time.Duration `mapstructure:"ttl" yaml:"ttl"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
	Watch            bool          `mapstructure:"watch" yaml:"watch"`
}

// SceneConfig describes what the demo scene loads and how it reacts to keys.
type SceneConfig struct {
	AssetsDir         string          `mapstructure:"assets_dir" yaml:"assets_dir"`
	Banks             []string        `mapstructure:"banks" yaml:"banks"`
	Events            []EventConfig   `mapstructure:"events" yaml:"events"`
	Sounds            []SoundConfig   `mapstructure:"sounds" yaml:"sounds"`
	Triggers          []TriggerConfig `mapstructure:"triggers" yaml:"triggers"`
	RetriggerInterval time.Duration   `mapstructure:"retrigger_interval" yaml:"retrigger_interval"`
	Start             []float32       `mapstructure:"start" yaml:"start"` // listener start position
}

// EventConfig is an event loaded at startup.
type EventConfig struct {
	Name     string             `mapstructure:"name" yaml:"name"`
	Params   map[string]float32 `mapstructure:"params" yaml:"params"`
	Volume   *float32           `mapstructure:"volume" yaml:"volume"`
	Autoplay bool               `mapstructure:"autoplay" yaml:"autoplay"`
}

// SoundConfig is a sound file loaded at startup.
type SoundConfig struct {
	ID       string       `mapstructure:"id" yaml:"id"`
	Path     string       `mapstructure:"path" yaml:"path"`
	Loop     bool         `mapstructure:"loop" yaml:"loop"`
	Position []float32    `mapstructure:"position" yaml:"position"` // makes the sound spatial
	Orbit    *OrbitConfig `mapstructure:"orbit" yaml:"orbit"`
	Autoplay bool         `mapstructure:"autoplay" yaml:"autoplay"`
}

// OrbitConfig moves a spatial sound in a horizontal circle around its
// position.
type OrbitConfig struct {
	Radius float32 `mapstructure:"radius" yaml:"radius"`
	Speed  float32 `mapstructure:"speed" yaml:"speed"` // radians per second
}

// Trigger actions.
const (
	ActionPlay   = "play"   // start a sound
	ActionStop   = "stop"   // stop a sound
	ActionToggle = "toggle" // start or stop a sound
	ActionEvent  = "event"  // start an event's primary instance
	ActionSpawn  = "spawn"  // start an overlapping event instance
)

// TriggerConfig binds a key to an action on a sound or event.
type TriggerConfig struct {
	Key    string `mapstructure:"key" yaml:"key"`
	Action string `mapstructure:"action" yaml:"action"`
	Target string `mapstructure:"target" yaml:"target"`
}

// DefaultConfig returns the demo scene configuration.
func DefaultConfig() Config {
	return Config{
		Audio: AudioConfig{
			SampleRate:           44100,
			BufferSize:           50 * time.Millisecond,
			MaxChannels:          1024,
			MaxInstancesPerEvent: 32,
			PreloadWorkers:       4,
			DistanceFactor:       1,
			MinDistance:          1,
			MaxDistance:          10000,
			Reverb: ReverbConfig{
				Preset:      sound.ReverbConcertHall.String(),
				Origin:      []float32{0, 0, 0},
				MinDistance: 10,
				MaxDistance: 50,
				Amount:      0.5,
			},
		},
		Cache: CacheConfig{
			Enabled:          true,
			MemoryMB:         256,
			DiskMB:           1024,
			CompressionLevel: 3,
			TTL:              30 * 24 * time.Hour,
			CleanupInterval:  time.Hour,
			Watch:            true,
		},
		Scene: defaultScene(),
	}
}

func defaultScene() SceneConfig {
	return SceneConfig{
		AssetsDir: "assets",
		Banks: []string{
			"banks/master.bank.toml",
			"banks/master.strings.bank.toml",
			"banks/sfx.bank.toml",
		},
		Events: []EventConfig{
			{Name: "footsteps", Params: map[string]float32{"surface": 0}},
			{Name: "country-ambience"},
			{Name: "explosion"},
		},
		Sounds: []SoundConfig{
			{ID: "music", Path: "music/theme.wav", Loop: true},
			{ID: "stinger", Path: "music/stinger3.wav", Loop: true},
			{ID: "fountain", Path: "sfx/fountain.wav", Loop: true, Position: []float32{0, 0, -10}, Autoplay: true},
			{ID: "tree-birds", Path: "sfx/tree_birds.wav", Loop: true, Position: []float32{15, 0, -20}, Autoplay: true},
			{ID: "bird", Path: "sfx/bird.wav", Loop: true, Position: []float32{15, 5, -20}, Orbit: &OrbitConfig{Radius: 6, Speed: 0.8}},
		},
		Triggers: []TriggerConfig{
			{Key: "1", Action: ActionEvent, Target: "footsteps"},
			{Key: "2", Action: ActionEvent, Target: "explosion"},
			{Key: "3", Action: ActionPlay, Target: "stinger"},
			{Key: "4", Action: ActionToggle, Target: "music"},
			{Key: "5", Action: ActionToggle, Target: "bird"},
			{Key: "6", Action: ActionSpawn, Target: "explosion"},
		},
		RetriggerInterval: 500 * time.Millisecond,
		Start:             []float32{0, 1, 3},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error

	a := c.Audio
	if a.SampleRate != 44100 && a.SampleRate != 48000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be 44100 or 48000, got %d", a.SampleRate))
	}
	if a.BufferSize <= 0 {
		errs = append(errs, errors.New("audio.buffer_size must be positive"))
	}
	if a.MaxChannels <= 0 {
		errs = append(errs, errors.New("audio.max_channels must be positive"))
	}
	if a.MinDistance <= 0 || a.MaxDistance < a.MinDistance {
		errs = append(errs, fmt.Errorf("audio distances must satisfy 0 < min <= max, got %v/%v", a.MinDistance, a.MaxDistance))
	}
	if _, ok := sound.ParseReverbPreset(a.Reverb.Preset); !ok {
		errs = append(errs, fmt.Errorf("unknown reverb preset %q", a.Reverb.Preset))
	}
	if len(a.Reverb.Origin) != 3 {
		errs = append(errs, errors.New("audio.reverb.origin needs 3 components"))
	}

	if c.Cache.MemoryMB <= 0 || c.Cache.DiskMB < 0 {
		errs = append(errs, fmt.Errorf("cache sizes must satisfy memory_mb > 0 and disk_mb >= 0, got %d/%d", c.Cache.MemoryMB, c.Cache.DiskMB))
	}
	if c.Cache.CompressionLevel < 0|| c.Cache.CompressionLevel > 22 {
		errs = append(errs, fmt.Errorf("cache.compression_level must be between 0 and 22, got %d", c.Cache.CompressionLevel))
	}

	errs = append(errs, c.Scene.validate()...)
	return errors.Join(errs...)
}

func (s SceneConfig) validate() []error {
	var errs []error
	sounds := make(map[string]bool, len(s.Sounds))
	for i, snd := range s.Sounds {
		if snd.Path == "" {
			errs = append(errs, fmt.Errorf("scene.sounds[%d]: path is required", i))
		}
		id := snd.Key()
		if sounds[id] {
			errs = append(errs, fmt.Errorf("scene.sounds[%d]: duplicate id %q", i, id))
		}
		sounds[id] = true
		if snd.Position != nil && len(snd.Position) != 3 {
			errs = append(errs, fmt.Errorf("scene.sounds[%d]: position needs 3 components", i))
		}
		if snd.Orbit != nil && snd.Position == nil {
			errs = append(errs, fmt.Errorf("scene.sounds[%d]: orbit requires a position", i))
		}
	}

	events := make(map[string]bool, len(s.Events))
	for i, ev := range s.Events {
		if ev.Name == "" {
			errs = append(errs, fmt.Errorf("scene.events[%d]: name is required", i))
		}
		events[ev.Name] = true
	}

	keys := make(map[string]bool, len(s.Triggers))
	for i, t := range s.Triggers {
		if t.Key == "" {
			errs = append(errs, fmt.Errorf("scene.triggers[%d]: key is required", i))
		}
		if keys[t.Key] {
			errs = append(errs, fmt.Errorf("scene.triggers[%d]: key %q bound twice", i, t.Key))
		}
		keys[t.Key] = true
		switch t.Action {
		case ActionPlay, ActionStop, ActionToggle, ActionEvent, ActionSpawn:
		default:
			errs = append(errs, fmt.Errorf("scene.triggers[%d]: unknown action %q", i, t.Action))
		}
	}

	if s.Start != nil && len(s.Start) != 3 {
		errs = append(errs, errors.New("scene.start needs 3 components"))
	}
	return errs
}

// Key returns the sound's identity: its ID, or its path when no ID is set.
func (s SoundConfig) Key() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Path
}

// Resolve returns path relative to the assets directory, expanding a
// leading ~.
func (s SceneConfig) Resolve(path string) string {
	path = ExpandPath(path)
	if filepath.IsAbs(path) || s.AssetsDir == "" {
		return path
	}
	return filepath.Join(ExpandPath(s.AssetsDir), path)
}

// ReverbSettings converts the reverb configuration.
func (a AudioConfig) ReverbSettings() sound.Reverb {
	preset, _ := sound.ParseReverbPreset(a.Reverb.Preset)
	r := sound.Reverb{
		Preset:      preset,
		MinDistance: a.Reverb.MinDistance,
		MaxDistance: a.Reverb.MaxDistance,
		Amount:      a.Reverb.Amount,
	}
	if len(a.Reverb.Origin) == 3 {
		r.Origin = sound.Vec3{a.Reverb.Origin[0], a.Reverb.Origin[1], a.Reverb.Origin[2]}
	}
	return r
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// Env holds settings that can only come from the environment.
type Env struct {
	Debug   bool `env:"SOUNDSTAGE_DEBUG"`
	Strict  bool `env:"SOUNDSTAGE_STRICT"`
	NoAudio bool `env:"SOUNDSTAGE_NO_AUDIO"`
}

// ParseEnv reads Env from the process environment.
func ParseEnv() (Env, error) {
	e, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("error parsing environment: %w", err)
	}
	return e, nil
}

// Apply overrides c with the environment switches that are set.
func (e Env) Apply(c *Config) {
	if e.Strict {
		c.Audio.Strict = true
	}
	if e.NoAudio {
		c.Audio.NoAudio = true
	}
}

// LoadFromViper loads the configuration from the global viper instance.
func LoadFromViper() (Config, error) {
	return Load(viper.GetViper())
}

// Load builds a Config from v, starting from DefaultConfig and overriding
// every key that is set.
func Load(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()

	// Audio settings
	a := &cfg.Audio
	if v.IsSet("audio.sample_rate") {
		a.SampleRate = v.GetInt("audio.sample_rate")
	}
	if v.IsSet("audio.buffer_size") {
		a.BufferSize = v.GetDuration("audio.buffer_size")
	}
	if v.IsSet("audio.no_audio") {
		a.NoAudio = v.GetBool("audio.no_audio")
	}
	if v.IsSet("audio.max_channels") {
		a.MaxChannels = v.GetInt("audio.max_channels")
	}
	if v.IsSet("audio.max_instances_per_event") {
		a.MaxInstancesPerEvent = v.GetInt("audio.max_instances_per_event")
	}
	if v.IsSet("audio.preload_workers") {
		a.PreloadWorkers = v.GetInt("audio.preload_workers")
	}
	if v.IsSet("audio.distance_factor") {
		a.DistanceFactor = float32(v.GetFloat64("audio.distance_factor"))
	}
	if v.IsSet("audio.min_distance") {
		a.MinDistance = float32(v.GetFloat64("audio.min_distance"))
	}
	if v.IsSet("audio.max_distance") {
		a.MaxDistance = float32(v.GetFloat64("audio.max_distance"))
	}
	if v.IsSet("audio.strict") {
		a.Strict = v.GetBool("audio.strict")
	}
	if v.IsSet("audio.validate_orientation") {
		a.ValidateOrientation = v.GetBool("audio.validate_orientation")
	}

	// Reverb zone
	if v.IsSet("audio.reverb.preset") {
		a.Reverb.Preset = v.GetString("audio.reverb.preset")
	}
	if v.IsSet("audio.reverb.origin") {
		if err := v.UnmarshalKey("audio.reverb.origin", &a.Reverb.Origin); err != nil {
			return cfg, fmt.Errorf("invalid audio.reverb.origin: %w", err)
		}
	}
	if v.IsSet("audio.reverb.min_distance") {
		a.Reverb.MinDistance = float32(v.GetFloat64("audio.reverb.min_distance"))
	}
	if v.IsSet("audio.reverb.max_distance") {
		a.Reverb.MaxDistance = float32(v.GetFloat64("audio.reverb.max_distance"))
	}
	if v.IsSet("audio.reverb.amount") {
		a.Reverb.Amount = float32(v.GetFloat64("audio.reverb.amount"))
	}

	// Cache settings
	c := &cfg.Cache
	if v.IsSet("cache.enabled") {
		c.Enabled = v.GetBool("cache.enabled")
	}
	if v.IsSet("cache.dir") {
		c.Dir = ExpandPath(v.GetString("cache.dir"))
	}
	if v.IsSet("cache.memory_mb") {
		c.MemoryMB = v.GetInt("cache.memory_mb")
	}
	if v.IsSet("cache.disk_mb") {
		c.DiskMB = v.GetInt("cache.disk_mb")
	}
	if v.IsSet("cache.compression_level") {
		c.CompressionLevel = v.GetInt("cache.compression_level")
	}
	if v.IsSet("cache.ttl") {
		c.TTL = v.GetDuration("cache.ttl")
	}
	if v.IsSet("cache.cleanup_interval") {
		c.CleanupInterval = v.GetDuration("cache.cleanup_interval")
	}
	if v.IsSet("cache.watch") {
		c.Watch = v.GetBool("cache.watch")
	}

	// Scene
	if err := loadScene(v, &cfg.Scene); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadScene(v *viper.Viper, s *SceneConfig) error {
	if v.IsSet("scene.assets_dir") {
		s.AssetsDir = ExpandPath(v.GetString("scene.assets_dir"))
	}
	if v.IsSet("scene.retrigger_interval") {
		s.RetriggerInterval = v.GetDuration("scene.retrigger_interval")
	}

	lists := []struct {
		key string
		dst any
	}{
		{"scene.banks", &s.Banks},
		{"scene.events", &s.Events},
		{"scene.sounds", &s.Sounds},
		{"scene.triggers", &s.Triggers},
		{"scene.start", &s.Start},
	}
	for _, l := range lists {
		if !v.IsSet(l.key) {
			continue
		}
		if err := v.UnmarshalKey(l.key, l.dst); err != nil {
			return fmt.Errorf("invalid %s: %w", l.key, err)
		}
	}
	return nil
}

// SetDefaults registers the scalar defaults with v so that they show up in
// v.AllSettings and can be bound to flags.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.buffer_size", d.Audio.BufferSize.String())
	v.SetDefault("audio.no_audio", d.Audio.NoAudio)
	v.SetDefault("audio.max_channels", d.Audio.MaxChannels)
	v.SetDefault("audio.strict", d.Audio.Strict)
	v.SetDefault("audio.reverb.preset", d.Audio.Reverb.Preset)
	v.SetDefault("audio.reverb.amount", d.Audio.Reverb.Amount)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.memory_mb", d.Cache.MemoryMB)
	v.SetDefault("cache.disk_mb", d.Cache.DiskMB)
	v.SetDefault("cache.compression_level", d.Cache.CompressionLevel)
	v.SetDefault("cache.ttl", d.Cache.TTL.String())
	v.SetDefault("cache.cleanup_interval", d.Cache.CleanupInterval.String())
	v.SetDefault("cache.watch", d.Cache.Watch)

	v.SetDefault("scene.assets_dir", d.Scene.AssetsDir)
	v.SetDefault("scene.retrigger_interval", d.Scene.RetriggerInterval.String())
}

package main

import (
	"context"
	"errors"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"

	"github.com/soundstage/soundstage/internal/audio"
	"github.com/soundstage/soundstage/internal/cache"
	"github.com/soundstage/soundstage/internal/config"
	"github.com/soundstage/soundstage/internal/sound"
)

// stack is everything behind a scene: PCM cache, output device, audio
// backend and the engine on top.
type stack struct {
	cfg     config.Config
	cache   *cache.Manager // nil when caching is disabled
	watcher *cache.Watcher
	backend *audio.Backend
	engine  *sound.Engine
	silent  bool // playing on the null device
}

func newStack(cfg config.Config) (*stack, error) {
	logger := log.Default()
	s := &stack{cfg: cfg}

	if cfg.Cache.Enabled {
		cc := cacheConfig(cfg.Cache)
		mgr, err := cache.NewManager(cc, logger)
		if err != nil {
			log.Warn("Could not open disk cache, keeping decoded audio in memory", "dir", cc.DiskPath, "err", err)
			cc.DiskPath = ""
			if mgr, err = cache.NewManager(cc, logger); err != nil {
				return nil, err
			}
		}
		s.cache = mgr
	}

	var dev audio.Device
	if !cfg.Audio.NoAudio {
		otoDev, err := audio.NewOtoDevice(audio.DeviceConfig{
			SampleRate: cfg.Audio.SampleRate,
			BufferSize: cfg.Audio.BufferSize,
		})
		if err != nil {
			log.Warn("No audio device, continuing without sound", "err", err)
		} else {
			dev = otoDev
		}
	}
	if dev == nil {
		null := audio.NewNullDevice(cfg.Audio.SampleRate)
		null.Run(cfg.Audio.BufferSize)
		dev = null
		s.silent = true
	}

	dec := audio.NewDecoder(cfg.Audio.SampleRate, s.cache, logger)
	s.backend = audio.New(dev, dec, audio.Options{
		MaxChannels: cfg.Audio.MaxChannels,
		Rolloff: audio.Rolloff{
			MinDistance:    cfg.Audio.MinDistance,
			MaxDistance:    cfg.Audio.MaxDistance,
			DistanceFactor: cfg.Audio.DistanceFactor,
		},
		Logger: logger,
	})
	s.engine = sound.New(s.backend, sound.Options{
		Logger:               logger,
		Strict:               cfg.Audio.Strict,
		ValidateOrientation:  cfg.Audio.ValidateOrientation,
		MaxInstancesPerEvent: cfg.Audio.MaxInstancesPerEvent,
		Reverb:               cfg.Audio.ReverbSettings(),
		PreloadWorkers:       cfg.Audio.PreloadWorkers,
	})

	log.Debug("Audio stack ready", "sample_rate", cfg.Audio.SampleRate, "silent", s.silent, "cache", s.cache != nil)
	return s, nil
}

func cacheConfig(c config.CacheConfig) cache.Config {
	cc := cache.Config{
		MemoryCapacity:   int64(c.MemoryMB) << 20,
		DiskCapacity:     int64(c.DiskMB) << 20,
		CompressionLevel: c.CompressionLevel,
		TTL:              c.TTL,
		CleanupInterval:  c.CleanupInterval,
	}
	if c.DiskMB > 0 {
		cc.DiskPath = c.Dir
		if cc.DiskPath == "" {
			dir, err := gap.NewScope(gap.User, appName).CacheDir()
			if err != nil {
				log.Warn("Could not find cache directory", "err", err)
				return cc
			}
			cc.DiskPath = filepath.Join(dir, "pcm")
		}
	}
	return cc
}

// watch invalidates cached audio when files in dirs change. onChange runs
// for every changed file.
func (s *stack) watch(ctx context.Context, dirs []string, onChange func(path string)) {
	if s.cache == nil || !s.cfg.Cache.Watch || len(dirs) == 0 {
		return
	}
	w, err := cache.NewWatcher(s.cache, log.Default(), onChange)
	if err != nil {
		log.Warn("Could not watch sources", "err", err)
		return
	}
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			log.Debug("Not watching", "dir", dir, "err", err)
		}
	}
	s.watcher = w
	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("Source watcher stopped", "err", err)
		}
	}()
}

// sourceDirs returns the directories holding the scene's banks and sounds.
func sourceDirs(sc config.SceneConfig) []string {
	seen := make(map[string]bool)
	for _, b := range sc.Banks {
		seen[filepath.Dir(sc.Resolve(b))] = true
	}
	for _, snd := range sc.Sounds {
		seen[filepath.Dir(sc.Resolve(snd.Path))] = true
	}
	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

func (s *stack) Close() error {
	var errs []error
	if s.watcher != nil {
		errs = append(errs, s.watcher.Close())
	}
	errs = append(errs, s.engine.Close())
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	return errors.Join(errs...)
}

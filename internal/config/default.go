package config

// DefaultYAML is written to new config files.
const DefaultYAML = `# soundstage configuration

audio:
  # output sample rate: 44100 or 48000
  sample_rate: 44100
  # output latency
  buffer_size: "50ms"
  # run without an audio device
  no_audio: false
  # voices that may play at once
  max_channels: 1024
  # overlapping instances per event
  max_instances_per_event: 32
  preload_workers: 4
  # world units per meter and rolloff range
  distance_factor: 1.0
  min_distance: 1.0
  max_distance: 10000.0
  # log misuse (unknown ids, bad instance indices) as errors
  strict: false
  # reject non-orthogonal listener orientations
  validate_orientation: false

  reverb:
    # off, room, concert-hall or cave
    preset: "concert-hall"
    origin: [0, 0, 0]
    min_distance: 10
    max_distance: 50
    # wet level, 0.0 to 1.0
    amount: 0.5

cache:
  enabled: true
  # directory for the disk cache (default: the user cache dir)
  # dir: "~/.cache/soundstage"
  memory_mb: 256
  # 0 keeps decoded audio in memory only
  disk_mb: 1024
  # zstd level 1-22, 0 disables compression
  compression_level: 3
  ttl: "720h"
  cleanup_interval: "1h"
  # drop cached audio when a source file changes
  watch: true

scene:
  assets_dir: "assets"
  # minimum time between two firings of the same key
  retrigger_interval: "500ms"
  # listener start position
  start: [0, 1, 3]

  banks:
    - "banks/master.bank.toml"
    - "banks/master.strings.bank.toml"
    - "banks/sfx.bank.toml"

  events:
    - name: "footsteps"
      params:
        surface: 0
    - name: "country-ambience"
    - name: "explosion"

  sounds:
    - id: "music"
      path: "music/theme.wav"
      loop: true
    - id: "stinger"
      path: "music/stinger3.wav"
      loop: true
    - id: "fountain"
      path: "sfx/fountain.wav"
      loop: true
      position: [0, 0, -10]
      autoplay: true
    - id: "tree-birds"
      path: "sfx/tree_birds.wav"
      loop: true
      position: [15, 0, -20]
      autoplay: true
    - id: "bird"
      path: "sfx/bird.wav"
      loop: true
      position: [15, 5, -20]
      orbit:
        radius: 6
        speed: 0.8

  # actions: play, stop, toggle, event, spawn
  triggers:
    - { key: "1", action: "event", target: "footsteps" }
    - { key: "2", action: "event", target: "explosion" }
    - { key: "3", action: "play", target: "stinger" }
    - { key: "4", action: "toggle", target: "music" }
    - { key: "5", action: "toggle", target: "bird" }
    - { key: "6", action: "spawn", target: "explosion" }
`

package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	EnableMouse bool

	// Time between two scene frames.
	FrameInterval time.Duration `env:"SOUNDSTAGE_FRAME_INTERVAL" envDefault:"16ms"`

	// For debugging the UI
	AltScreen bool `env:"SOUNDSTAGE_ALT_SCREEN" envDefault:"true"`
}

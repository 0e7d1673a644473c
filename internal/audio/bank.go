package audio

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Parameter effects understood by the studio.
const (
	EffectVariant = "variant" // rounded value selects the file
	EffectVolume  = "volume"  // value multiplies the gain
)

// Bank is a soundbank manifest.
//
//	name = "master"
//
//	[[event]]
//	name = "footsteps"
//	files = ["footsteps_grass.wav", "footsteps_gravel.wav"]
//
//	  [[event.parameter]]
//	  name = "surface"
//	  effect = "variant"
type Bank struct {
	Name   string      `toml:"name"`
	Events []EventSpec `toml:"event"`

	dir string
}

// EventSpec describes one event of a bank.
type EventSpec struct {
	Name       string          `toml:"name"`
	Files      []string        `toml:"files"`
	Loop       bool            `toml:"loop"`
	Volume     *float32        `toml:"volume"`
	Position   []float32       `toml:"position"` // optional, makes the event spatial
	Parameters []ParameterSpec `toml:"parameter"`
}

// ParameterSpec describes a named event parameter.
type ParameterSpec struct {
	Name    string   `toml:"name"`
	Effect  string   `toml:"effect"`
	Default *float32 `toml:"default"`
}

// Initial returns the value a new instance starts with: the declared
// default, otherwise 1 for volume effects and 0 for variants.
func (p ParameterSpec) Initial() float32 {
	if p.Default != nil {
		return *p.Default
	}
	if p.Effect == EffectVolume {
		return 1
	}
	return 0
}

// LoadBankFile parses and validates the manifest at path.
func LoadBankFile(path string) (*Bank, error) {
	var b Bank
	if _, err := toml.DecodeFile(path, &b); err != nil {
		return nil, fmt.Errorf("failed to parse bank %s: %w", path, err)
	}
	b.dir = filepath.Dir(path)
	if b.Name == "" {
		b.Name = filepath.Base(path)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bank %s: %w", path, err)
	}
	return &b, nil
}

// Validate checks event and parameter declarations.
func (b *Bank) Validate() error {
	seen := make(map[string]bool, len(b.Events))
	for _, ev := range b.Events {
		if ev.Name == "" {
			return errors.New("event without name")
		}
		if seen[ev.Name] {
			return fmt.Errorf("duplicate event %q", ev.Name)
		}
		seen[ev.Name] = true
		if len(ev.Files) == 0 {
			return fmt.Errorf("event %q has no files", ev.Name)
		}
		if ev.Position != nil && len(ev.Position) != 3 {
			return fmt.Errorf("event %q: position needs 3 components", ev.Name)
		}
		for _, p := range ev.Parameters {
			if p.Effect != EffectVariant && p.Effect != EffectVolume {
				return fmt.Errorf("event %q: parameter %q has unknown effect %q", ev.Name, p.Name, p.Effect)
			}
		}
	}
	return nil
}

// Event returns the named event spec.
func (b *Bank) Event(name string) (EventSpec, bool) {
	for _, ev := range b.Events {
		if ev.Name == name {
			return ev, true
		}
	}
	return EventSpec{}, false
}

// Path resolves a file of the bank relative to the manifest.
func (b *Bank) Path(file string) string {
	if filepath.IsAbs(file) || b.dir == "" {
		return file
	}
	return filepath.Join(b.dir, file)
}

// BaseVolume returns the event's configured volume, 1 when unset.
func (e EventSpec) BaseVolume() float32 {
	if e.Volume == nil {
		return 1
	}
	return *e.Volume
}

// Parameter returns the named parameter spec.
func (e EventSpec) Parameter(name string) (ParameterSpec, bool) {
	for _, p := range e.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// Variant returns the index of the file selected by value.
func (e EventSpec) Variant(value float32) int {
	i := int(math.Round(float64(value)))
	if i < 0 {
		return 0
	}
	if i >= len(e.Files) {
		return len(e.Files) - 1
	}
	return i
}

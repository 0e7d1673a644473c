package audio

import (
	"path/filepath"
	"strings"
	"testing"
)

const masterManifest = `
name = "master"

[[event]]
name = "footsteps"
files = ["grass.pcm", "gravel.pcm"]

  [[event.parameter]]
  name = "surface"
  effect = "variant"

[[event]]
name = "ambience"
files = ["country.pcm"]
loop = true
volume = 0.5

  [[event.parameter]]
  name = "intensity"
  effect = "volume"
`

func TestLoadBankFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "master.bank.toml", []byte(masterManifest))

	bank, err := LoadBankFile(path)
	if err != nil {
		t.Fatalf("LoadBankFile failed: %v", err)
	}
	if bank.Name != "master" || len(bank.Events) != 2 {
		t.Fatalf("unexpected bank %+v", bank)
	}

	steps, ok := bank.Event("footsteps")
	if !ok {
		t.Fatal("footsteps not found")
	}
	if got := bank.Path(steps.Files[1]); got != filepath.Join(dir, "gravel.pcm") {
		t.Errorf("Path = %q", got)
	}
	if steps.BaseVolume() != 1 {
		t.Errorf("BaseVolume = %v, want 1", steps.BaseVolume())
	}

	amb, _ := bank.Event("ambience")
	if !amb.Loop || amb.BaseVolume() != 0.5 {
		t.Errorf("ambience = %+v", amb)
	}
	p, _ := amb.Parameter("intensity")
	if p.Initial() != 1 {
		t.Errorf("volume parameter starts at %v, want 1", p.Initial())
	}
}

func TestBank_Validate(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantErr  string
	}{
		{"no files", "[[event]]\nname = \"x\"\n", "no files"},
		{"duplicate", "[[event]]\nname = \"x\"\nfiles = [\"a\"]\n[[event]]\nname = \"x\"\nfiles = [\"a\"]\n", "duplicate"},
		{"bad effect", "[[event]]\nname = \"x\"\nfiles = [\"a\"]\n[[event.parameter]]\nname = \"p\"\neffect = \"pitch\"\n", "unknown effect"},
		{"bad position", "[[event]]\nname = \"x\"\nfiles = [\"a\"]\nposition = [1, 2]\n", "3 components"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "bank.toml", []byte(tt.manifest))
			_, err := LoadBankFile(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestEventSpec_Variant(t *testing.T) {
	e := EventSpec{Files: []string{"a", "b", "c"}}
	tests := map[float32]int{-2: 0, 0: 0, 0.6: 1, 1.4: 1, 2: 2, 9: 2}
	for value, want := range tests {
		if got := e.Variant(value); got != want {
			t.Errorf("Variant(%v) = %d, want %d", value, got, want)
		}
	}
}

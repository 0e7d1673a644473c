package scene

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/soundstage/soundstage/internal/camera"
	"github.com/soundstage/soundstage/internal/config"
	"github.com/soundstage/soundstage/internal/sound"
)

func testConfig() config.SceneConfig {
	return config.SceneConfig{
		Banks: []string{"sfx.bank"},
		Events: []config.EventConfig{
			{Name: "footsteps", Params: map[string]float32{"surface": 2}},
			{Name: "explosion"},
		},
		Sounds: []config.SoundConfig{
			{ID: "music", Path: "music.wav", Loop: true},
			{ID: "fountain", Path: "fountain.wav", Loop: true, Position: []float32{0, 0, -10}, Autoplay: true},
			{ID: "bird", Path: "bird.wav", Loop: true, Position: []float32{10, 0, 0},
				Orbit: &config.OrbitConfig{Radius: 2, Speed: math.Pi / 2}, Autoplay: true},
		},
		Triggers: []config.TriggerConfig{
			{Key: "1", Action: config.ActionEvent, Target: "footsteps"},
			{Key: "2", Action: config.ActionSpawn, Target: "explosion"},
			{Key: "3", Action: config.ActionToggle, Target: "music"},
			{Key: "4", Action: config.ActionStop, Target: "fountain"},
			{Key: "8", Action: config.ActionEvent, Target: "explsion"},
			{Key: "9", Action: config.ActionPlay, Target: "msc"},
		},
		RetriggerInterval: 500 * time.Millisecond,
		Start:             []float32{0, 1, 3},
	}
}

func newTestScene(t *testing.T) (*Scene, *sound.MockBackend) {
	t.Helper()
	quiet := log.New(io.Discard)

	mb := sound.NewMockBackend()
	mb.DefineBank("sfx.bank", "footsteps", "explosion")
	eng := sound.New(mb, sound.Options{Logger: quiet})
	t.Cleanup(func() { _ = eng.Close() })

	s := New(eng, testConfig(), quiet)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return s, mb
}

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func TestScene_Load(t *testing.T) {
	s, mb := newTestScene(t)

	stats := s.Engine().Stats()
	if stats.Banks != 1 || stats.Events != 2 || stats.Sounds != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Channels != 2 {
		t.Errorf("autoplay should start 2 loops, got %d", stats.Channels)
	}

	insts := mb.Instances("footsteps")
	if len(insts) != 1 {
		t.Fatalf("expected 1 footsteps instance, got %d", len(insts))
	}
	inst, _ := mb.Instance(insts[0])
	if inst.Params["surface"] != 2 {
		t.Errorf("surface = %v, want 2", inst.Params["surface"])
	}
}

func TestScene_LoadContinuesPastFailures(t *testing.T) {
	quiet := log.New(io.Discard)
	mb := sound.NewMockBackend()
	mb.DefineBank("sfx.bank", "footsteps", "explosion")
	mb.FailOpen("music.wav", errors.New("file not found"))
	eng := sound.New(mb, sound.Options{Logger: quiet})
	defer eng.Close()

	s := New(eng, testConfig(), quiet)
	if err := s.Load(context.Background()); err == nil {
		t.Fatal("expected an error for the missing sound")
	}

	if s.Engine().IsLoaded("music") {
		t.Error("music should not be loaded")
	}
	if !s.Engine().IsPlaying("fountain") || !s.Engine().IsPlaying("bird") {
		t.Error("sounds that loaded should still autoplay")
	}
}

func TestScene_FrameMovesOrbitAndListener(t *testing.T) {
	s, mb := newTestScene(t)

	s.Camera().Move(camera.Forward, 1)
	if err := s.Frame(time.Second); err != nil {
		t.Fatalf("Frame failed: %v", err)
	}

	l := mb.Listener()
	if !approx(l.Position.Z(), 3-camera.DefaultSpeed) || !approx(l.Position.Y(), 1) {
		t.Errorf("listener position = %v", l.Position)
	}
	if !approx(l.Forward.Z(), -1) {
		t.Errorf("listener forward = %v", l.Forward)
	}

	var moved *sound.MockChannel
	for _, h := range mb.Channels() {
		ch, _ := mb.Channel(h)
		if len(ch.Positions) == 2 {
			moved = &ch
		}
	}
	if moved == nil {
		t.Fatal("no channel received an orbit update")
	}
	// a quarter turn after one second
	if got := moved.Position; !approx(got.X(), 10) || !approx(got.Z(), 2) {
		t.Errorf("orbit position = %v, want (10, 0, 2)", got)
	}
}

func TestScene_TriggerDebounce(t *testing.T) {
	s, mb := newTestScene(t)
	now := time.Unix(1000, 0)

	fired, err := s.Trigger("1", now)
	if err != nil || !fired {
		t.Fatalf("first trigger: fired=%v err=%v", fired, err)
	}
	inst, _ := mb.Instance(mb.Instances("footsteps")[0])
	if inst.State != sound.PlaybackPlaying {
		t.Errorf("footsteps state = %v", inst.State)
	}

	if fired, _ := s.Trigger("1", now.Add(100*time.Millisecond)); fired {
		t.Error("trigger inside the interval should be debounced")
	}
	if fired, _ := s.Trigger("1", now.Add(600*time.Millisecond)); !fired {
		t.Error("trigger after the interval should fire")
	}
}

func TestScene_TriggerActions(t *testing.T) {
	s, _ := newTestScene(t)
	eng := s.Engine()
	now := time.Unix(1000, 0)

	if _, err := s.Trigger("3", now); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if !eng.IsPlaying("music") {
		t.Error("toggle should start music")
	}
	if _, err := s.Trigger("3", now.Add(time.Second)); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if eng.IsPlaying("music") {
		t.Error("second toggle should stop music")
	}

	if _, err := s.Trigger("2", now); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if n := eng.EventInstances("explosion"); n != 2 {
		t.Errorf("explosion instances = %d, want 2", n)
	}

	if _, err := s.Trigger("4", now); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if eng.IsPlaying("fountain") {
		t.Error("fountain should be stopped")
	}

	if fired, err := s.Trigger("x", now); fired || err != nil {
		t.Errorf("unbound key: fired=%v err=%v", fired, err)
	}
}

func TestScene_TriggerUnknownTarget(t *testing.T) {
	s, _ := newTestScene(t)
	now := time.Unix(1000, 0)

	tests := []struct {
		key  string
		want string
	}{
		{"8", `did you mean "explosion"`},
		{"9", `did you mean "music"`},
	}
	for _, tt := range tests {
		_, err := s.Trigger(tt.key, now)
		if !errors.Is(err, ErrUnknownTarget) {
			t.Fatalf("key %s: expected ErrUnknownTarget, got %v", tt.key, err)
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("key %s: error %q should contain %q", tt.key, err, tt.want)
		}
	}
}

func TestScene_Snapshot(t *testing.T) {
	s, _ := newTestScene(t)
	if err := s.Frame(16 * time.Millisecond); err != nil {
		t.Fatalf("Frame failed: %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Sounds) != 3 {
		t.Fatalf("expected 3 sounds, got %d", len(snap.Sounds))
	}
	music, fountain := snap.Sounds[0], snap.Sounds[1]
	if music.ID != "music" || !music.Loaded || music.Playing {
		t.Errorf("unexpected music status %+v", music)
	}
	if !fountain.Playing || !fountain.Spatial {
		t.Errorf("unexpected fountain status %+v", fountain)
	}

	if len(snap.Events) != 2 || snap.Events[0].Name != "explosion" || snap.Events[1].Name != "footsteps" {
		t.Errorf("unexpected events %+v", snap.Events)
	}
	if snap.Frames != 1 || snap.Elapsed != 16*time.Millisecond {
		t.Errorf("frames=%d elapsed=%v", snap.Frames, snap.Elapsed)
	}
	if snap.Triggers[0].Key != "1" {
		t.Errorf("triggers should be sorted by key: %+v", snap.Triggers)
	}
}

func TestScene_RunStopsAfterFrames(t *testing.T) {
	s, _ := newTestScene(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Run(ctx, time.Millisecond, 3); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := s.Snapshot().Frames; got != 3 {
		t.Errorf("frames = %d, want 3", got)
	}
}

func TestSuggest(t *testing.T) {
	if got := Suggest("ftn", []string{"music", "fountain"}); got != "fountain" {
		t.Errorf("Suggest = %q, want fountain", got)
	}
	if got := Suggest("zzz", []string{"music"}); got != "" {
		t.Errorf("Suggest = %q, want empty", got)
	}
}

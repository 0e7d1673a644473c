package sound

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
)

func newTestEngine(t *testing.T, opts Options) (*Engine, *MockBackend) {
	t.Helper()
	backend := NewMockBackend()
	opts.Logger = log.New(io.Discard)
	return New(backend, opts), backend
}

func TestEngine_LoadIsIdempotent(t *testing.T) {
	engine, backend := newTestEngine(t, Options{})

	d := NewDescriptor("sfx/fountain.wav", WithID("fountain"), Looping())
	if err := engine.Load(d); err != nil {
		t.Fatalf("first Load failed: %v", err)
	}
	if err := engine.Load(d); err != nil {
		t.Fatalf("second Load failed: %v", err)
	}

	if got := backend.Calls("OpenSound"); got != 1 {
		t.Errorf("OpenSound called %d times, want 1", got)
	}
	if got := engine.Stats().Sounds; got != 1 {
		t.Errorf("Sounds = %d, want 1", got)
	}
	if !engine.IsLoaded("fountain") {
		t.Error("fountain should be loaded")
	}
}

func TestEngine_LoadFailure(t *testing.T) {
	engine, backend := newTestEngine(t, Options{})
	backend.FailOpen("missing.wav", errors.New("file not found"))

	err := engine.Load(NewDescriptor("missing.wav", WithID("missing")))
	if !errors.Is(err, ErrResourceLoad) {
		t.Fatalf("expected ErrResourceLoad, got %v", err)
	}

	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if !se.IsTransient() || se.IsMisuse() {
		t.Errorf("load failure should be transient, not misuse: %+v", se)
	}
	if engine.IsLoaded("missing") {
		t.Error("failed load must not register the sound")
	}
}

func TestEngine_PlayNotLoaded(t *testing.T) {
	engine, backend := newTestEngine(t, Options{})

	err := engine.Play(NewDescriptor("stinger.wav", WithID("stinger")))
	if !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
	if !IsMisuse(err) {
		t.Error("not-loaded should be reported as misuse")
	}
	if got := backend.Calls("StartPlayback"); got != 0 {
		t.Errorf("StartPlayback called %d times, want 0", got)
	}
}

func TestEngine_PlayLoopAtMostOnce(t *testing.T) {
	engine, backend := newTestEngine(t, Options{})

	d := NewDescriptor("music.ogg", WithID("music"), Looping())
	if err := engine.Load(d); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := engine.Play(d); err != nil {
			t.Fatalf("Play %d failed: %v", i, err)
		}
	}

	if got := backend.Calls("StartPlayback"); got != 1 {
		t.Errorf("StartPlayback called %d times, want 1", got)
	}
	if got := engine.Stats().Channels; got != 1 {
		t.Errorf("Channels = %d, want 1", got)
	}
}

func TestEngine_PlayOneShotNotTracked(t *testing.T) {
	engine, backend := newTestEngine(t, Options{})

	d := NewDescriptor("stinger.wav", WithID("stinger"))
	if err := engine.Load(d); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := engine.Play(d); err != nil {
			t.Fatalf("Play %d failed: %v", i, err)
		}
	}

	if got := backend.Calls("StartPlayback"); got != 3 {
		t.Errorf("StartPlayback called %d times, want 3", got)
	}
	if got := engine.Stats().Channels; got != 0 {
		t.Errorf("one-shots must not be tracked, Channels = %d", got)
	}
	if engine.IsPlaying("stinger") {
		t.Error("one-shot has no retrievable playback state")
	}
}

func TestEngine_StopIsSafe(t *testing.T) {
	engine, backend := newTestEngine(t, Options{})

	d := NewDescriptor("music.ogg", WithID("music"), Looping())
	if err := engine.Stop(d); err != nil {
		t.Fatalf("Stop on unknown sound failed: %v", err)
	}
	if err := engine.Load(d); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := engine.Stop(d); err != nil {
		t.Fatalf("Stop on stopped sound failed: %v", err)
	}

	if got := backend.Calls("StopChannel"); got != 0 {
		t.Errorf("StopChannel called %d times, want 0", got)
	}
	if stats := engine.Stats(); stats.Sounds != 1 || stats.Channels != 0 {
		t.Errorf("unexpected state after Stop: %+v", stats)
	}
}

func TestEngine_UpdateSpatialPositionRequiresChannel(t *testing.T) {
	engine, backend := newTestEngine(t, Options{})

	d := NewDescriptor("birds.wav", WithID("birds"), Looping(), At(Vec3{1, 2, 3}))
	if err := engine.Load(d); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := engine.UpdateSpatialPosition(d); err != nil {
		t.Fatalf("UpdateSpatialPosition without channel should not fail: %v", err)
	}
	if got := backend.Calls("SetChannelPosition"); got != 0 {
		t.Fatalf("SetChannelPosition called %d times before Play, want 0", got)
	}

	if err := engine.Play(d); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	moves := []Vec3{{4, 5, 6}, {7, 8, 9}}
	for _, p := range moves {
		d.SetPosition(p[0], p[1], p[2])
		if err := engine.UpdateSpatialPosition(d); err != nil {
			t.Fatalf("UpdateSpatialPosition failed: %v", err)
		}
	}

	channels := backend.Channels()
	if len(channels) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(channels))
	}
	ch, _ := backend.Channel(channels[0])

	want := []Vec3{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	if len(ch.Positions) != len(want) {
		t.Fatalf("positions = %v, want %v", ch.Positions, want)
	}
	for i := range want {
		if ch.Positions[i] != want[i] {
			t.Errorf("position %d = %v, want %v", i, ch.Positions[i], want[i])
		}
	}
}

func TestEngine_MusicScenario(t *testing.T) {
	engine, _ := newTestEngine(t, Options{})

	music := NewDescriptor("music.ogg", WithID("music"), Looping())
	if err := engine.Load(music); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := engine.Play(music); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if !engine.IsPlaying("music") {
		t.Fatal("music should be playing")
	}
	if err := engine.Stop(music); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if engine.IsPlaying("music") {
		t.Error("music should not be playing after Stop")
	}

	// a stopped loop can be started again
	if err := engine.Play(music); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !engine.IsPlaying("music") {
		t.Error("music should be playing again")
	}
}

func TestEngine_UpdateReapsFinishedLoops(t *testing.T) {
	engine, backend := newTestEngine(t, Options{})

	d := NewDescriptor("music.ogg", WithID("music"), Looping())
	if err := engine.Load(d); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := engine.Play(d); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	backend.FinishChannel(backend.Channels()[0])
	if err := engine.Update(); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if got := engine.Stats().Channels; got != 0 {
		t.Errorf("finished channel not reaped, Channels = %d", got)
	}
	if got := backend.Calls("Update"); got != 1 {
		t.Errorf("backend Update called %d times, want 1", got)
	}

	if err := engine.Play(d); err != nil {
		t.Fatalf("Play after reap failed: %v", err)
	}
	if got := backend.Calls("StartPlayback"); got != 2 {
		t.Errorf("StartPlayback called %d times, want 2", got)
	}
}

// liveChannels counts backend voices that are still playing.
func liveChannels(backend *MockBackend) int {
	n := 0
	for _, c := range backend.Channels() {
		if ch, ok := backend.Channel(c); ok && ch.Playing {
			n++
		}
	}
	return n
}

func TestEngine_StopFailureKeepsChannel(t *testing.T) {
	engine, backend := newTestEngine(t, Options{})

	d := NewDescriptor("music.ogg", WithID("music"), Looping())
	if err := engine.Load(d); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := engine.Play(d); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	backend.FailCall("StopChannel", errors.New("device busy"))
	if err := engine.Stop(d); !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
	if !engine.IsPlaying("music") {
		t.Error("a failed stop must keep the channel")
	}

	// the loop is still tracked, so Play must not start a second voice
	if err := engine.Play(d); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if got := backend.Calls("StartPlayback"); got != 1 {
		t.Errorf("StartPlayback called %d times, want 1", got)
	}
	if got := liveChannels(backend); got != 1 {
		t.Errorf("live channels = %d, want 1", got)
	}

	backend.FailCall("StopChannel", nil)
	if err := engine.Stop(d); err != nil {
		t.Fatalf("Stop after recovery failed: %v", err)
	}
	if got := liveChannels(backend); got != 0 {
		t.Errorf("live channels = %d after stop, want 0", got)
	}
	if engine.IsPlaying("music") {
		t.Error("music should be stopped")
	}
}

func TestEngine_UpdateKeepsChannelOnPollFailure(t *testing.T) {
	engine, backend := newTestEngine(t, Options{})

	d := NewDescriptor("music.ogg", WithID("music"), Looping())
	if err := engine.Load(d); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := engine.Play(d); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	backend.FailCall("ChannelPlaying", errors.New("device lost"))
	if err := engine.Update(); !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend from Update, got %v", err)
	}
	backend.FailCall("ChannelPlaying", nil)

	if got := engine.Stats().Channels; got != 1 {
		t.Fatalf("Channels = %d, want 1", got)
	}
	if err := engine.Play(d); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if got := backend.Calls("StartPlayback"); got != 1 {
		t.Errorf("StartPlayback called %d times, want 1", got)
	}
	if got := liveChannels(backend); got != 1 {
		t.Errorf("live channels = %d, want 1", got)
	}

	// a successful poll that sees the end still reaps
	backend.FinishChannel(backend.Channels()[0])
	if err := engine.Update(); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got := engine.Stats().Channels; got != 0 {
		t.Errorf("Channels = %d after finish, want 0", got)
	}
}

func TestEngine_IdentityDecoupledFromPath(t *testing.T) {
	engine, backend := newTestEngine(t, Options{})

	a := NewDescriptor("sfx/bird.wav", Looping())
	b := NewDescriptor("sfx/bird.wav", Looping())
	if a.ID == b.ID {
		t.Fatalf("generated identities collide: %s", a.ID)
	}

	for _, d := range []Descriptor{a, b} {
		if err := engine.Load(d); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if err := engine.Play(d); err != nil {
			t.Fatalf("Play failed: %v", err)
		}
	}

	if got := backend.Calls("OpenSound"); got != 2 {
		t.Errorf("OpenSound called %d times, want 2", got)
	}
	if got := engine.Stats().Channels; got != 2 {
		t.Errorf("Channels = %d, want 2", got)
	}
}

func TestEngine_PathFallbackIdentity(t *testing.T) {
	engine, backend := newTestEngine(t, Options{})

	d := Descriptor{Path: "music.ogg", Loop: true}
	if err := engine.Load(d); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := engine.Load(Descriptor{Path: "music.ogg", Loop: true}); err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if got := backend.Calls("OpenSound"); got != 1 {
		t.Errorf("OpenSound called %d times, want 1", got)
	}
	if err := engine.Play(d); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if !engine.IsPlaying("music.ogg") {
		t.Error("path identity should be playing")
	}
}

func TestEngine_ConcurrentLoadsCollapse(t *testing.T) {
	engine, backend := newTestEngine(t, Options{PreloadWorkers: 8})

	d := NewDescriptor("ambience.ogg", WithID("ambience"), Looping())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := engine.Load(d); err != nil {
				t.Errorf("Load failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := backend.Calls("OpenSound"); got != 1 {
		t.Errorf("OpenSound called %d times, want 1", got)
	}
}

func TestEngine_Preload(t *testing.T) {
	engine, backend := newTestEngine(t, Options{PreloadWorkers: 2})

	ds := []Descriptor{
		NewDescriptor("a.wav", WithID("a")),
		NewDescriptor("b.wav", WithID("b")),
		NewDescriptor("c.wav", WithID("c")),
		NewDescriptor("a.wav", WithID("a")),
	}
	if err := engine.Preload(context.Background(), ds...); err != nil {
		t.Fatalf("Preload failed: %v", err)
	}
	if got := backend.Calls("OpenSound"); got != 3 {
		t.Errorf("OpenSound called %d times, want 3", got)
	}

	backend.FailOpen("broken.wav", errors.New("bad header"))
	err := engine.Preload(context.Background(), NewDescriptor("broken.wav"))
	if !errors.Is(err, ErrResourceLoad) {
		t.Errorf("expected ErrResourceLoad from Preload, got %v", err)
	}
}

func TestEngine_PreloadCanceled(t *testing.T) {
	engine, backend := newTestEngine(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := engine.Preload(ctx, NewDescriptor("a.wav"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if got := backend.Calls("OpenSound"); got != 0 {
		t.Errorf("OpenSound called %d times after cancel, want 0", got)
	}
}

func TestEngine_BackendFailureIsNotFatal(t *testing.T) {
	engine, backend := newTestEngine(t, Options{})

	d := NewDescriptor("music.ogg", WithID("music"), Looping())
	if err := engine.Load(d); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	backend.FailCall("StartPlayback", errors.New("out of channels"))
	err := engine.Play(d)
	if !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
	if engine.IsPlaying("music") {
		t.Error("failed start must not register a channel")
	}

	backend.FailCall("StartPlayback", nil)
	if err := engine.Play(d); err != nil {
		t.Fatalf("Play after recovery failed: %v", err)
	}
}

func TestEngine_SetListenerPose(t *testing.T) {
	engine, backend := newTestEngine(t, Options{})

	if got := engine.Listener(); got != DefaultListener() {
		t.Errorf("initial listener = %+v, want default", got)
	}

	pos, fwd, up := Vec3{1, 2, 3}, Vec3{0, 0, -1}, Vec3{0, 1, 0}
	if err := engine.SetListenerPose(pos, fwd, up); err != nil {
		t.Fatalf("SetListenerPose failed: %v", err)
	}

	want := ListenerState{Position: pos, Forward: fwd, Up: up}
	if got := engine.Listener(); got != want {
		t.Errorf("Listener = %+v, want %+v", got, want)
	}
	if got := backend.Listener(); got != want {
		t.Errorf("backend listener = %+v, want %+v", got, want)
	}
	if got := backend.Calls("SetListenerAttributes"); got != 1 {
		t.Errorf("SetListenerAttributes called %d times, want 1", got)
	}

	// without validation, skewed vectors pass through untouched
	skewed := Vec3{0, 1, 1}
	if err := engine.SetListenerPose(pos, skewed, up); err != nil {
		t.Fatalf("unvalidated pose rejected: %v", err)
	}
	if got := backend.Listener().Forward; got != skewed {
		t.Errorf("forward altered to %v", got)
	}
}

func TestEngine_SetListenerPoseValidated(t *testing.T) {
	engine, backend := newTestEngine(t, Options{ValidateOrientation: true})

	err := engine.SetListenerPose(Vec3{}, Vec3{0, 1, 1}, Vec3{0, 1, 0})
	if !errors.Is(err, ErrInvalidOrientation) {
		t.Fatalf("expected ErrInvalidOrientation, got %v", err)
	}
	if got := backend.Calls("SetListenerAttributes"); got != 0 {
		t.Errorf("invalid pose reached the backend")
	}
	if got := engine.Listener(); got != DefaultListener() {
		t.Errorf("invalid pose changed listener state: %+v", got)
	}
}

func TestEngine_SetReverb(t *testing.T) {
	engine, backend := newTestEngine(t, Options{})

	tests := []struct {
		amount float32
		want   float32
	}{
		{0.25, 0.25},
		{-1, 0},
		{3, 1},
	}

	for _, tt := range tests {
		if err := engine.SetReverb(tt.amount); err != nil {
			t.Fatalf("SetReverb(%v) failed: %v", tt.amount, err)
		}
		r := backend.Reverb()
		if r.Amount != tt.want {
			t.Errorf("SetReverb(%v): amount = %v, want %v", tt.amount, r.Amount, tt.want)
		}
		if r.Preset != ReverbConcertHall || r.MinDistance != 10 || r.MaxDistance != 50 {
			t.Errorf("unexpected reverb zone: %+v", r)
		}
	}
}

func TestEngine_Close(t *testing.T) {
	engine, backend := newTestEngine(t, Options{})

	d := NewDescriptor("music.ogg", WithID("music"), Looping())
	if err := engine.Load(d); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := engine.Play(d); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !backend.Closed() {
		t.Error("backend not closed")
	}
	if got := backend.Calls("StopChannel"); got != 1 {
		t.Errorf("StopChannel called %d times, want 1", got)
	}
	if got := backend.Calls("ReleaseSound"); got != 1 {
		t.Errorf("ReleaseSound called %d times, want 1", got)
	}

	if err := engine.Load(d); !errors.Is(err, ErrClosed) {
		t.Errorf("Load after Close: expected ErrClosed, got %v", err)
	}
	if err := engine.Update(); !errors.Is(err, ErrClosed) {
		t.Errorf("Update after Close: expected ErrClosed, got %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

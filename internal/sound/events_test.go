package sound

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

const (
	masterBank = "banks/master.bank"
	sfxBank    = "banks/sfx.bank"
)

func newEventEngine(t *testing.T, opts Options) (*Engine, *MockBackend) {
	t.Helper()
	engine, backend := newTestEngine(t, opts)
	backend.DefineBank(masterBank, "footsteps", "ambience")
	backend.DefineBank(sfxBank, "explosion")
	return engine, backend
}

func TestEngine_EventRequiresBank(t *testing.T) {
	engine, backend := newEventEngine(t, Options{})

	err := engine.LoadEvent("footsteps", Param{Name: "surface", Value: 1})
	if !errors.Is(err, ErrResourceLoad) {
		t.Fatalf("expected ErrResourceLoad before bank load, got %v", err)
	}

	// a loaded bank that does not contain the event is not enough
	if err := engine.LoadEventBank(sfxBank); err != nil {
		t.Fatalf("LoadEventBank failed: %v", err)
	}
	if err := engine.LoadEvent("footsteps"); !errors.Is(err, ErrResourceLoad) {
		t.Fatalf("expected ErrResourceLoad for event of unloaded bank, got %v", err)
	}

	if err := engine.LoadEventBank(masterBank); err != nil {
		t.Fatalf("LoadEventBank failed: %v", err)
	}
	if err := engine.LoadEvent("footsteps", Param{Name: "surface", Value: 1}); err != nil {
		t.Fatalf("LoadEvent after bank load failed: %v", err)
	}
	if got := backend.Calls("CreateInstance"); got != 1 {
		t.Errorf("CreateInstance called %d times, want 1", got)
	}
}

func TestEngine_LoadEventBankIsIdempotent(t *testing.T) {
	engine, backend := newEventEngine(t, Options{})

	for i := 0; i < 3; i++ {
		if err := engine.LoadEventBank(masterBank); err != nil {
			t.Fatalf("LoadEventBank %d failed: %v", i, err)
		}
	}
	if got := backend.Calls("LoadBank"); got != 1 {
		t.Errorf("LoadBank called %d times, want 1", got)
	}

	if err := engine.LoadEventBank("banks/missing.bank"); !errors.Is(err, ErrResourceLoad) {
		t.Errorf("expected ErrResourceLoad for missing bank, got %v", err)
	}
}

func TestEngine_LoadEventIsIdempotent(t *testing.T) {
	engine, backend := newEventEngine(t, Options{})
	if err := engine.LoadEventBank(masterBank); err != nil {
		t.Fatalf("LoadEventBank failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := engine.LoadEvent("ambience"); err != nil {
			t.Fatalf("LoadEvent %d failed: %v", i, err)
		}
	}
	if got := backend.Calls("EventDescription"); got != 1 {
		t.Errorf("EventDescription called %d times, want 1", got)
	}
	if got := engine.EventInstances("ambience"); got != 1 {
		t.Errorf("EventInstances = %d, want 1", got)
	}
}

func TestEngine_FootstepsScenario(t *testing.T) {
	engine, backend := newEventEngine(t, Options{})

	if err := engine.LoadEventBank(masterBank); err != nil {
		t.Fatalf("LoadEventBank failed: %v", err)
	}
	if err := engine.LoadEvent("footsteps", Param{Name: "surface", Value: 1.0}); err != nil {
		t.Fatalf("LoadEvent failed: %v", err)
	}
	if err := engine.SetEventParameter("footsteps", "surface", 2.0); err != nil {
		t.Fatalf("SetEventParameter failed: %v", err)
	}
	if err := engine.PlayEvent("footsteps", 0); err != nil {
		t.Fatalf("PlayEvent failed: %v", err)
	}

	playing, err := engine.EventIsPlaying("footsteps", 0)
	if err != nil {
		t.Fatalf("EventIsPlaying failed: %v", err)
	}
	if !playing {
		t.Fatal("footsteps should be playing")
	}

	handles := backend.Instances("footsteps")
	if len(handles) != 1 {
		t.Fatalf("expected 1 backend instance, got %d", len(handles))
	}
	inst, _ := backend.Instance(handles[0])
	if inst.Params["surface"] != 2.0 {
		t.Errorf("surface = %v, want 2.0", inst.Params["surface"])
	}

	if err := engine.StopEvent("footsteps", 0); err != nil {
		t.Fatalf("StopEvent failed: %v", err)
	}
	playing, _ = engine.EventIsPlaying("footsteps", 0)
	if playing {
		t.Error("footsteps should be stopped")
	}
}

func TestEngine_UnknownEvent(t *testing.T) {
	engine, _ := newEventEngine(t, Options{Strict: true})

	calls := map[string]func() error{
		"SetEventParameter": func() error { return engine.SetEventParameter("nope", "p", 1) },
		"PlayEvent":         func() error { return engine.PlayEvent("nope", 0) },
		"StopEvent":         func() error { return engine.StopEvent("nope", 0) },
		"SetEventVolume":    func() error { return engine.SetEventVolume("nope", 0.5) },
		"EventIsPlaying": func() error {
			_, err := engine.EventIsPlaying("nope", 0)
			return err
		},
		"TriggerEvent": func() error {
			_, err := engine.TriggerEvent("nope")
			return err
		},
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			if !errors.Is(err, ErrUnknownEvent) {
				t.Errorf("expected ErrUnknownEvent, got %v", err)
			}
			if !IsMisuse(err) {
				t.Error("unknown event should be misuse")
			}
		})
	}
}

func TestEngine_InvalidInstanceIndex(t *testing.T) {
	engine, _ := newEventEngine(t, Options{})
	if err := engine.LoadEventBank(masterBank); err != nil {
		t.Fatalf("LoadEventBank failed: %v", err)
	}
	if err := engine.LoadEvent("footsteps"); err != nil {
		t.Fatalf("LoadEvent failed: %v", err)
	}

	for _, idx := range []int{-1, 1, 7} {
		if err := engine.PlayEvent("footsteps", idx); !errors.Is(err, ErrInvalidInstance) {
			t.Errorf("PlayEvent(%d): expected ErrInvalidInstance, got %v", idx, err)
		}
	}
}

func TestEngine_TriggerEventInstances(t *testing.T) {
	engine, backend := newEventEngine(t, Options{})
	if err := engine.LoadEventBank(sfxBank); err != nil {
		t.Fatalf("LoadEventBank failed: %v", err)
	}
	if err := engine.LoadEvent("explosion", Param{Name: "size", Value: 3}); err != nil {
		t.Fatalf("LoadEvent failed: %v", err)
	}
	if err := engine.SetEventVolume("explosion", 0.75); err != nil {
		t.Fatalf("SetEventVolume failed: %v", err)
	}

	first, err := engine.TriggerEvent("explosion")
	if err != nil {
		t.Fatalf("TriggerEvent failed: %v", err)
	}
	second, err := engine.TriggerEvent("explosion")
	if err != nil {
		t.Fatalf("TriggerEvent failed: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("indices = %d, %d, want 1, 2", first, second)
	}
	if got := engine.EventInstances("explosion"); got != 3 {
		t.Errorf("EventInstances = %d, want 3", got)
	}

	// overlapping triggers carry the remembered parameters and volume
	for _, h := range backend.Instances("explosion") {
		inst, _ := backend.Instance(h)
		if inst.State != PlaybackPlaying && inst.State != PlaybackStopped {
			t.Errorf("unexpected state %v", inst.State)
		}
		if inst.Params["size"] != 3 {
			t.Errorf("size = %v, want 3", inst.Params["size"])
		}
		if inst.Volume != 0.75 {
			t.Errorf("volume = %v, want 0.75", inst.Volume)
		}
	}

	playing, err := engine.EventIsPlaying("explosion", first)
	if err != nil || !playing {
		t.Fatalf("first trigger should be playing: %v, %v", playing, err)
	}

	// finish the first transient instance; the second keeps its index
	finishInstanceAt(t, engine, backend, "explosion", first)
	if err := engine.Update(); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got := engine.EventInstances("explosion"); got != 2 {
		t.Errorf("EventInstances after reap = %d, want 2", got)
	}
	if err := engine.PlayEvent("explosion", first); !errors.Is(err, ErrInvalidInstance) {
		t.Errorf("reaped slot should be invalid, got %v", err)
	}
	if playing, err := engine.EventIsPlaying("explosion", second); err != nil || !playing {
		t.Errorf("second trigger should keep its index: %v, %v", playing, err)
	}

	// the freed slot is reused
	again, err := engine.TriggerEvent("explosion")
	if err != nil {
		t.Fatalf("TriggerEvent failed: %v", err)
	}
	if again != first {
		t.Errorf("reused index = %d, want %d", again, first)
	}
}

func TestEngine_PrimaryInstanceIsNotReaped(t *testing.T) {
	engine, backend := newEventEngine(t, Options{})
	if err := engine.LoadEventBank(masterBank); err != nil {
		t.Fatalf("LoadEventBank failed: %v", err)
	}
	if err := engine.LoadEvent("footsteps"); err != nil {
		t.Fatalf("LoadEvent failed: %v", err)
	}
	if err := engine.PlayEvent("footsteps", 0); err != nil {
		t.Fatalf("PlayEvent failed: %v", err)
	}
	backend.FinishInstance(backend.Instances("footsteps")[0])

	if err := engine.Update(); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := engine.PlayEvent("footsteps", 0); err != nil {
		t.Errorf("primary instance should survive Update: %v", err)
	}
	if got := backend.Calls("ReleaseInstance"); got != 0 {
		t.Errorf("ReleaseInstance called %d times, want 0", got)
	}
}

func TestEngine_ReapKeepsInstanceOnPollFailure(t *testing.T) {
	engine, backend := newEventEngine(t, Options{})
	if err := engine.LoadEventBank(sfxBank); err != nil {
		t.Fatalf("LoadEventBank failed: %v", err)
	}
	if err := engine.LoadEvent("explosion"); err != nil {
		t.Fatalf("LoadEvent failed: %v", err)
	}
	idx, err := engine.TriggerEvent("explosion")
	if err != nil {
		t.Fatalf("TriggerEvent failed: %v", err)
	}

	backend.FailCall("InstanceState", errors.New("device lost"))
	_ = engine.Update()
	backend.FailCall("InstanceState", nil)

	if got := engine.EventInstances("explosion"); got != 2 {
		t.Errorf("EventInstances = %d, want 2", got)
	}
	if got := backend.Calls("ReleaseInstance"); got != 0 {
		t.Errorf("ReleaseInstance called %d times, want 0", got)
	}

	finishInstanceAt(t, engine, backend, "explosion", idx)
	if err := engine.Update(); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got := engine.EventInstances("explosion"); got != 1 {
		t.Errorf("EventInstances = %d after finish, want 1", got)
	}
}

func TestEngine_TriggerEventReportsReleaseFailure(t *testing.T) {
	var buf bytes.Buffer
	backend := NewMockBackend()
	backend.DefineBank(sfxBank, "explosion")
	engine := New(backend, Options{Logger: log.New(&buf)})

	if err := engine.LoadEventBank(sfxBank); err != nil {
		t.Fatalf("LoadEventBank failed: %v", err)
	}
	if err := engine.LoadEvent("explosion"); err != nil {
		t.Fatalf("LoadEvent failed: %v", err)
	}

	backend.FailCall("StartInstance", errors.New("out of voices"))
	backend.FailCall("ReleaseInstance", errors.New("handle leaked"))
	if _, err := engine.TriggerEvent("explosion"); !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
	if !strings.Contains(buf.String(), "handle leaked") {
		t.Errorf("release failure was not logged:\n%s", buf.String())
	}
}

func TestEngine_EventsSorted(t *testing.T) {
	engine, _ := newEventEngine(t, Options{})
	for _, bank := range []string{sfxBank, masterBank} {
		if err := engine.LoadEventBank(bank); err != nil {
			t.Fatalf("LoadEventBank failed: %v", err)
		}
	}
	for _, name := range []string{"footsteps", "explosion", "ambience"} {
		if err := engine.LoadEvent(name); err != nil {
			t.Fatalf("LoadEvent(%s) failed: %v", name, err)
		}
	}

	want := []string{"ambience", "explosion", "footsteps"}
	for i := 0; i < 5; i++ {
		if got := engine.Events(); !reflect.DeepEqual(got, want) {
			t.Fatalf("Events = %v, want %v", got, want)
		}
	}
}

func TestEngine_TriggerEventLimit(t *testing.T) {
	engine, _ := newEventEngine(t, Options{MaxInstancesPerEvent: 2})
	if err := engine.LoadEventBank(sfxBank); err != nil {
		t.Fatalf("LoadEventBank failed: %v", err)
	}
	if err := engine.LoadEvent("explosion"); err != nil {
		t.Fatalf("LoadEvent failed: %v", err)
	}

	if _, err := engine.TriggerEvent("explosion"); err != nil {
		t.Fatalf("TriggerEvent failed: %v", err)
	}
	_, err := engine.TriggerEvent("explosion")
	if !errors.Is(err, ErrInstanceLimit) {
		t.Fatalf("expected ErrInstanceLimit, got %v", err)
	}
	if IsMisuse(err) {
		t.Error("instance limit is not a caller bug")
	}
}

func TestEngine_CloseReleasesEvents(t *testing.T) {
	engine, backend := newEventEngine(t, Options{})
	if err := engine.LoadEventBank(masterBank); err != nil {
		t.Fatalf("LoadEventBank failed: %v", err)
	}
	if err := engine.LoadEvent("footsteps"); err != nil {
		t.Fatalf("LoadEvent failed: %v", err)
	}
	if _, err := engine.TriggerEvent("footsteps"); err != nil {
		t.Fatalf("TriggerEvent failed: %v", err)
	}

	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := backend.Calls("ReleaseInstance"); got != 2 {
		t.Errorf("ReleaseInstance called %d times, want 2", got)
	}
	if got := backend.Calls("UnloadBank"); got != 1 {
		t.Errorf("UnloadBank called %d times, want 1", got)
	}
	if err := engine.PlayEvent("footsteps", 0); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

// finishInstanceAt ends the backend instance the engine holds at index.
func finishInstanceAt(t *testing.T, engine *Engine, backend *MockBackend, name string, index int) {
	t.Helper()
	engine.mu.Lock()
	inst := engine.events[name].instances[index]
	engine.mu.Unlock()
	backend.FinishInstance(inst.handle)
}

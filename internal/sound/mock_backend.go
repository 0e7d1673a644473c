package sound

import (
	"errors"
	"fmt"
	"sync"
)

// MockBackend implements Backend for testing purposes.
// It records every call and simulates playback without producing sound.
// Voices keep playing until FinishChannel or FinishInstance is called.
type MockBackend struct {
	mu   sync.Mutex
	next uint64

	// Test configuration
	openErrors map[string]error
	bankEvents map[string][]string
	failCalls  map[string]error

	// Simulated resources
	sounds    map[SoundHandle]MockSound
	channels  map[ChannelHandle]*MockChannel
	banks     map[BankHandle]string
	descs     map[EventHandle]string
	instances map[InstanceHandle]*MockInstance
	listener  ListenerState
	reverb    Reverb
	closed    bool

	// Metrics for testing
	calls map[string]int
}

// MockSound is a sound opened on the mock backend.
type MockSound struct {
	Path string
	Mode Mode
}

// MockChannel is a voice started on the mock backend.
type MockChannel struct {
	Sound     SoundHandle
	Playing   bool
	Position  Vec3
	Positions []Vec3 // every position pushed, in order
}

// MockInstance is an event instance created on the mock backend.
type MockInstance struct {
	Event  string
	Params map[string]float32
	Volume float32
	State  PlaybackState
}

// NewMockBackend creates an empty mock backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		openErrors: make(map[string]error),
		bankEvents: make(map[string][]string),
		failCalls:  make(map[string]error),
		sounds:     make(map[SoundHandle]MockSound),
		channels:   make(map[ChannelHandle]*MockChannel),
		banks:      make(map[BankHandle]string),
		descs:      make(map[EventHandle]string),
		instances:  make(map[InstanceHandle]*MockInstance),
		listener:   DefaultListener(),
		calls:      make(map[string]int),
	}
}

// DefineBank declares the events contained in the bank at path. Banks that
// were not defined fail to load.
func (m *MockBackend) DefineBank(path string, events ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bankEvents[path] = append(m.bankEvents[path], events...)
}

// FailOpen makes OpenSound fail for path.
func (m *MockBackend) FailOpen(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErrors[path] = err
}

// FailCall makes every call of the named method fail with err. A nil err
// clears the failure.
func (m *MockBackend) FailCall(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failCalls, method)
		return
	}
	m.failCalls[method] = err
}

// Calls returns how many times the named method was called.
func (m *MockBackend) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Channel returns a copy of the channel state.
func (m *MockBackend) Channel(c ChannelHandle) (MockChannel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[c]
	if !ok {
		return MockChannel{}, false
	}
	cp := *ch
	cp.Positions = append([]Vec3(nil), ch.Positions...)
	return cp, true
}

// Instance returns a copy of the instance state.
func (m *MockBackend) Instance(i InstanceHandle) (MockInstance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[i]
	if !ok {
		return MockInstance{}, false
	}
	cp := *inst
	cp.Params = make(map[string]float32, len(inst.Params))
	for k, v := range inst.Params {
		cp.Params[k] = v
	}
	return cp, true
}

// Channels returns the handles of all channels started so far.
func (m *MockBackend) Channels() []ChannelHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	handles := make([]ChannelHandle, 0, len(m.channels))
	for h := range m.channels {
		handles = append(handles, h)
	}
	return handles
}

// Instances returns the handles of all instances of the named event.
func (m *MockBackend) Instances(event string) []InstanceHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	var handles []InstanceHandle
	for h, inst := range m.instances {
		if inst.Event == event {
			handles = append(handles, h)
		}
	}
	return handles
}

// FinishChannel simulates a voice reaching its end.
func (m *MockBackend) FinishChannel(c ChannelHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[c]; ok {
		ch.Playing = false
	}
}

// FinishInstance simulates an event instance reaching its end.
func (m *MockBackend) FinishInstance(i InstanceHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst, ok := m.instances[i]; ok {
		inst.State = PlaybackStopped
	}
}

// Listener returns the last listener attributes received.
func (m *MockBackend) Listener() ListenerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listener
}

// Reverb returns the last reverb received.
func (m *MockBackend) Reverb() Reverb {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reverb
}

// Closed reports whether Close was called.
func (m *MockBackend) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// call records a call and returns the configured failure (must be called
// with lock held).
func (m *MockBackend) call(method string) error {
	m.calls[method]++
	if m.closed {
		return errors.New("mock backend is closed")
	}
	return m.failCalls[method]
}

func (m *MockBackend) handle() uint64 {
	m.next++
	return m.next
}

// Update implements Backend.
func (m *MockBackend) Update() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.call("Update")
}

// OpenSound implements Backend.
func (m *MockBackend) OpenSound(path string, mode Mode) (SoundHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("OpenSound"); err != nil {
		return 0, err
	}
	if err, ok := m.openErrors[path]; ok {
		return 0, err
	}
	h := SoundHandle(m.handle())
	m.sounds[h] = MockSound{Path: path, Mode: mode}
	return h, nil
}

// ReleaseSound implements Backend.
func (m *MockBackend) ReleaseSound(h SoundHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("ReleaseSound"); err != nil {
		return err
	}
	delete(m.sounds, h)
	return nil
}

// StartPlayback implements Backend.
func (m *MockBackend) StartPlayback(h SoundHandle) (ChannelHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("StartPlayback"); err != nil {
		return 0, err
	}
	if _, ok := m.sounds[h]; !ok {
		return 0, fmt.Errorf("invalid sound handle %d", h)
	}
	c := ChannelHandle(m.handle())
	m.channels[c] = &MockChannel{Sound: h, Playing: true}
	return c, nil
}

// StopChannel implements Backend.
func (m *MockBackend) StopChannel(c ChannelHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("StopChannel"); err != nil {
		return err
	}
	if ch, ok := m.channels[c]; ok {
		ch.Playing = false
	}
	return nil
}

// SetChannelPosition implements Backend.
func (m *MockBackend) SetChannelPosition(c ChannelHandle, pos Vec3) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("SetChannelPosition"); err != nil {
		return err
	}
	ch, ok := m.channels[c]
	if !ok {
		return fmt.Errorf("invalid channel handle %d", c)
	}
	ch.Position = pos
	ch.Positions = append(ch.Positions, pos)
	return nil
}

// ChannelPlaying implements Backend.
func (m *MockBackend) ChannelPlaying(c ChannelHandle) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("ChannelPlaying"); err != nil {
		return false, err
	}
	ch, ok := m.channels[c]
	if !ok {
		return false, nil
	}
	return ch.Playing, nil
}

// SetListenerAttributes implements Backend.
func (m *MockBackend) SetListenerAttributes(pos, forward, up Vec3) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("SetListenerAttributes"); err != nil {
		return err
	}
	m.listener = ListenerState{Position: pos, Forward: forward, Up: up}
	return nil
}

// SetReverb implements Backend.
func (m *MockBackend) SetReverb(r Reverb) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("SetReverb"); err != nil {
		return err
	}
	m.reverb = r
	return nil
}

// LoadBank implements Studio.
func (m *MockBackend) LoadBank(path string) (BankHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("LoadBank"); err != nil {
		return 0, err
	}
	if _, ok := m.bankEvents[path]; !ok {
		return 0, fmt.Errorf("bank %q not found", path)
	}
	b := BankHandle(m.handle())
	m.banks[b] = path
	return b, nil
}

// UnloadBank implements Studio.
func (m *MockBackend) UnloadBank(b BankHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("UnloadBank"); err != nil {
		return err
	}
	delete(m.banks, b)
	return nil
}

// EventDescription implements Studio.
func (m *MockBackend) EventDescription(name string) (EventHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("EventDescription"); err != nil {
		return 0, err
	}
	for _, path := range m.banks {
		for _, ev := range m.bankEvents[path] {
			if ev == name {
				e := EventHandle(m.handle())
				m.descs[e] = name
				return e, nil
			}
		}
	}
	return 0, fmt.Errorf("event %q not found in loaded banks", name)
}

// CreateInstance implements Studio.
func (m *MockBackend) CreateInstance(e EventHandle) (InstanceHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateInstance"); err != nil {
		return 0, err
	}
	name, ok := m.descs[e]
	if !ok {
		return 0, fmt.Errorf("invalid event handle %d", e)
	}
	i := InstanceHandle(m.handle())
	m.instances[i] = &MockInstance{Event: name, Params: make(map[string]float32), Volume: 1}
	return i, nil
}

// ReleaseInstance implements Studio.
func (m *MockBackend) ReleaseInstance(i InstanceHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("ReleaseInstance"); err != nil {
		return err
	}
	delete(m.instances, i)
	return nil
}

func (m *MockBackend) instance(i InstanceHandle) (*MockInstance, error) {
	inst, ok := m.instances[i]
	if !ok {
		return nil, fmt.Errorf("invalid instance handle %d", i)
	}
	return inst, nil
}

// SetParameter implements Studio.
func (m *MockBackend) SetParameter(i InstanceHandle, name string, value float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("SetParameter"); err != nil {
		return err
	}
	inst, err := m.instance(i)
	if err != nil {
		return err
	}
	inst.Params[name] = value
	return nil
}

// SetInstanceVolume implements Studio.
func (m *MockBackend) SetInstanceVolume(i InstanceHandle, volume float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("SetInstanceVolume"); err != nil {
		return err
	}
	inst, err := m.instance(i)
	if err != nil {
		return err
	}
	inst.Volume = volume
	return nil
}

// StartInstance implements Studio.
func (m *MockBackend) StartInstance(i InstanceHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("StartInstance"); err != nil {
		return err
	}
	inst, err := m.instance(i)
	if err != nil {
		return err
	}
	inst.State = PlaybackPlaying
	return nil
}

// StopInstance implements Studio.
func (m *MockBackend) StopInstance(i InstanceHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("StopInstance"); err != nil {
		return err
	}
	inst, err := m.instance(i)
	if err != nil {
		return err
	}
	inst.State = PlaybackStopped
	return nil
}

// InstanceState implements Studio.
func (m *MockBackend) InstanceState(i InstanceHandle) (PlaybackState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("InstanceState"); err != nil {
		return PlaybackStopped, err
	}
	inst, err := m.instance(i)
	if err != nil {
		return PlaybackStopped, err
	}
	return inst.State, nil
}

// Close implements Backend.
func (m *MockBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Close"]++
	m.closed = true
	return nil
}

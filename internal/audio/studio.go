package audio

import (
	"fmt"
	"sort"

	"github.com/soundstage/soundstage/internal/sound"
)

type eventDesc struct {
	spec  EventSpec
	bank  sound.BankHandle
	clips [][]byte // decoded files, indexed like spec.Files
}

type instance struct {
	desc   *eventDesc
	params map[string]float32
	volume float32
	voice  *voice
}

// gain is the instance's volume including volume-effect parameters.
func (i *instance) gain() float32 {
	g := i.desc.spec.BaseVolume() * i.volume
	for _, p := range i.desc.spec.Parameters {
		if p.Effect == EffectVolume {
			g *= i.params[p.Name]
		}
	}
	return g
}

// variant returns the clip selected by the first variant parameter.
func (i *instance) variant() []byte {
	for _, p := range i.desc.spec.Parameters {
		if p.Effect == EffectVariant {
			return i.desc.clips[i.desc.spec.Variant(i.params[p.Name])]
		}
	}
	return i.desc.clips[0]
}

// LoadBank parses the bank manifest at path.
func (b *Backend) LoadBank(path string) (sound.BankHandle, error) {
	bank, err := LoadBankFile(path)
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, errClosed
	}
	h := sound.BankHandle(b.handle())
	b.banks[h] = bank
	b.log.Debug("Loaded bank", "bank", bank.Name, "events", len(bank.Events))
	return h, nil
}

// UnloadBank hides the bank's events from EventDescription. Descriptions
// already handed out stay usable.
func (b *Backend) UnloadBank(h sound.BankHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}
	delete(b.banks, h)
	return nil
}

// EventDescription finds the named event in the loaded banks and decodes its
// files the first time it is requested.
func (b *Backend) EventDescription(name string) (sound.EventHandle, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0, errClosed
	}
	for h, d := range b.descs {
		if _, loaded := b.banks[d.bank]; loaded && d.spec.Name == name {
			b.mu.Unlock()
			return h, nil
		}
	}
	bankHandle, bank, spec, ok := b.findEvent(name)
	b.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("event %q not found in loaded banks", name)
	}

	clips := make([][]byte, len(spec.Files))
	for i, file := range spec.Files {
		pcm, err := b.dec.Decode(bank.Path(file))
		if err != nil {
			return 0, fmt.Errorf("event %q: %w", name, err)
		}
		clips[i] = pcm
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, errClosed
	}
	h := sound.EventHandle(b.handle())
	b.descs[h] = &eventDesc{spec: spec, bank: bankHandle, clips: clips}
	return h, nil
}

// findEvent searches loaded banks in load order (must be called with lock
// held).
func (b *Backend) findEvent(name string) (sound.BankHandle, *Bank, EventSpec, bool) {
	handles := make([]sound.BankHandle, 0, len(b.banks))
	for h := range b.banks {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	for _, h := range handles {
		if spec, ok := b.banks[h].Event(name); ok {
			return h, b.banks[h], spec, true
		}
	}
	return 0, nil, EventSpec{}, false
}

// CreateInstance creates a stopped instance with default parameter values.
func (b *Backend) CreateInstance(e sound.EventHandle) (sound.InstanceHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, errClosed
	}
	desc, ok := b.descs[e]
	if !ok {
		return 0, fmt.Errorf("event %d: %w", e, errInvalidHandle)
	}

	inst := &instance{desc: desc, params: make(map[string]float32), volume: 1}
	for _, p := range desc.spec.Parameters {
		inst.params[p.Name] = p.Initial()
	}
	h := sound.InstanceHandle(b.handle())
	b.instances[h] = inst
	return h, nil
}

// ReleaseInstance stops the instance and forgets it.
func (b *Backend) ReleaseInstance(h sound.InstanceHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}
	if inst, ok := b.instances[h]; ok {
		inst.stop()
		delete(b.instances, h)
	}
	return nil
}

// instance must be called with the lock held.
func (b *Backend) instance(h sound.InstanceHandle) (*instance, error) {
	if b.closed {
		return nil, errClosed
	}
	inst, ok := b.instances[h]
	if !ok {
		return nil, fmt.Errorf("instance %d: %w", h, errInvalidHandle)
	}
	return inst, nil
}

// SetParameter sets a declared parameter. Volume effects apply immediately,
// variant effects on the next start.
func (b *Backend) SetParameter(h sound.InstanceHandle, name string, value float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	inst, err := b.instance(h)
	if err != nil {
		return err
	}
	if _, ok := inst.desc.spec.Parameter(name); !ok {
		return fmt.Errorf("event %q has no parameter %q", inst.desc.spec.Name, name)
	}
	inst.params[name] = value
	b.refresh(inst)
	return nil
}

// SetInstanceVolume sets the instance volume.
func (b *Backend) SetInstanceVolume(h sound.InstanceHandle, volume float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	inst, err := b.instance(h)
	if err != nil {
		return err
	}
	inst.volume = volume
	b.refresh(inst)
	return nil
}

// StartInstance starts, or restarts, the instance.
func (b *Backend) StartInstance(h sound.InstanceHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	inst, err := b.instance(h)
	if err != nil {
		return err
	}
	inst.stop()

	spec := inst.desc.spec
	var pos sound.Vec3
	spatial := spec.Position != nil
	if spatial {
		pos = sound.Vec3{spec.Position[0], spec.Position[1], spec.Position[2]}
	}
	v, err := b.startVoice(inst.variant(), spec.Loop, spatial, pos, inst.gain())
	if err != nil {
		return fmt.Errorf("start event %q: %w", spec.Name, err)
	}
	inst.voice = v
	return nil
}

// StopInstance stops the instance immediately.
func (b *Backend) StopInstance(h sound.InstanceHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	inst, err := b.instance(h)
	if err != nil {
		return err
	}
	inst.stop()
	return nil
}

// InstanceState reports whether the instance's voice is playing.
func (b *Backend) InstanceState(h sound.InstanceHandle) (sound.PlaybackState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	inst, err := b.instance(h)
	if err != nil {
		return sound.PlaybackStopped, err
	}
	if inst.voice != nil && inst.voice.out.IsPlaying() {
		return sound.PlaybackPlaying, nil
	}
	return sound.PlaybackStopped, nil
}

func (b *Backend) refresh(inst *instance) {
	if inst.voice != nil {
		inst.voice.volume = inst.gain()
		b.mix(inst.voice)
	}
}

func (i *instance) stop() {
	if i.voice != nil {
		i.voice.close()
		i.voice = nil
	}
}

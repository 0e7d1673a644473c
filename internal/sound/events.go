package sound

import (
	"errors"
	"fmt"
	"sort"
)

// event is a loaded event description with its instances. Index 0 holds the
// primary instance created by LoadEvent; transient instances created by
// TriggerEvent occupy later slots and leave a nil slot behind when reaped so
// that other indices stay stable.
type event struct {
	name      string
	desc      EventHandle
	params    map[string]float32
	volume    float32
	hasVolume bool
	instances []*eventInstance
}

type eventInstance struct {
	handle    InstanceHandle
	transient bool
}

func (ev *event) live() int {
	n := 0
	for _, inst := range ev.instances {
		if inst != nil {
			n++
		}
	}
	return n
}

// LoadEventBank loads a soundbank. Loading the same path twice is a no-op.
func (e *Engine) LoadEventBank(path string) error {
	const op = "load bank"

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return e.report(NewError(ErrorCodeClosed, op, path, nil))
	}
	if _, ok := e.banks[path]; ok {
		return nil
	}

	b, err := e.backend.LoadBank(path)
	if err != nil {
		return e.report(NewError(ErrorCodeResourceLoad, op, path, err))
	}
	e.banks[path] = b
	e.logger.Info("loaded event bank", "path", path)
	return nil
}

// LoadEvent loads the description of an event from an already loaded bank and
// creates its primary instance with the given initial parameters. Loading the
// same event twice is a no-op.
func (e *Engine) LoadEvent(name string, params ...Param) error {
	const op = "load event"

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return e.report(NewError(ErrorCodeClosed, op, name, nil))
	}
	if _, ok := e.events[name]; ok {
		return nil
	}
	if len(e.banks) == 0 {
		return e.report(NewError(ErrorCodeResourceLoad, op, name, errors.New("no event bank loaded")))
	}

	desc, err := e.backend.EventDescription(name)
	if err != nil {
		return e.report(NewError(ErrorCodeResourceLoad, op, name, err))
	}

	inst, err := e.backend.CreateInstance(desc)
	if err != nil {
		return e.report(NewError(ErrorCodeResourceLoad, op, name, err))
	}

	ev := &event{
		name:      name,
		desc:      desc,
		params:    make(map[string]float32, len(params)),
		instances: []*eventInstance{{handle: inst}},
	}
	for _, p := range params {
		ev.params[p.Name] = p.Value
		if err := e.backend.SetParameter(inst, p.Name, p.Value); err != nil {
			e.report(NewError(ErrorCodeBackend, op, name, fmt.Errorf("parameter %q: %w", p.Name, err)))
		}
	}
	e.events[name] = ev

	e.logger.Debug("loaded event", "name", name, "params", len(params))
	return nil
}

// SetEventParameter sets a parameter on every live instance of the event. The
// value is remembered and applied to instances created later.
func (e *Engine) SetEventParameter(name, param string, value float32) error {
	const op = "set parameter"

	e.mu.Lock()
	defer e.mu.Unlock()

	ev, err := e.lookupEvent(op, name)
	if err != nil {
		return err
	}

	ev.params[param] = value
	var errs []error
	for _, inst := range ev.instances {
		if inst == nil {
			continue
		}
		if err := e.backend.SetParameter(inst.handle, param, value); err != nil {
			errs = append(errs, e.report(NewError(ErrorCodeBackend, op, name, fmt.Errorf("parameter %q: %w", param, err))))
		}
	}
	return errors.Join(errs...)
}

// PlayEvent starts the event instance at index.
func (e *Engine) PlayEvent(name string, index int) error {
	const op = "play event"

	e.mu.Lock()
	defer e.mu.Unlock()

	_, inst, err := e.lookupInstance(op, name, index)
	if err != nil {
		return err
	}
	if err := e.backend.StartInstance(inst.handle); err != nil {
		return e.report(NewError(ErrorCodeBackend, op, name, err))
	}
	return nil
}

// StopEvent stops the event instance at index.
func (e *Engine) StopEvent(name string, index int) error {
	const op = "stop event"

	e.mu.Lock()
	defer e.mu.Unlock()

	_, inst, err := e.lookupInstance(op, name, index)
	if err != nil {
		return err
	}
	if err := e.backend.StopInstance(inst.handle); err != nil {
		return e.report(NewError(ErrorCodeBackend, op, name, err))
	}
	return nil
}

// SetEventVolume sets the volume of every live instance of the event. The
// value is remembered and applied to instances created later.
func (e *Engine) SetEventVolume(name string, volume float32) error {
	const op = "set event volume"

	e.mu.Lock()
	defer e.mu.Unlock()

	ev, err := e.lookupEvent(op, name)
	if err != nil {
		return err
	}

	if volume < 0 {
		volume = 0
	}
	ev.volume = volume
	ev.hasVolume = true

	var errs []error
	for _, inst := range ev.instances {
		if inst == nil {
			continue
		}
		if err := e.backend.SetInstanceVolume(inst.handle, volume); err != nil {
			errs = append(errs, e.report(NewError(ErrorCodeBackend, op, name, err)))
		}
	}
	return errors.Join(errs...)
}

// EventIsPlaying reports whether the event instance at index is active.
func (e *Engine) EventIsPlaying(name string, index int) (bool, error) {
	const op = "event is playing"

	e.mu.Lock()
	defer e.mu.Unlock()

	_, inst, err := e.lookupInstance(op, name, index)
	if err != nil {
		return false, err
	}

	state, err := e.backend.InstanceState(inst.handle)
	if err != nil {
		return false, e.report(NewError(ErrorCodeBackend, op, name, err))
	}
	return state.Active(), nil
}

// TriggerEvent creates a new instance of the event, applies the remembered
// parameters and volume, and starts it. The instance is released by Update
// once it stops. It returns the instance index.
func (e *Engine) TriggerEvent(name string) (int, error) {
	const op = "trigger event"

	e.mu.Lock()
	defer e.mu.Unlock()

	ev, err := e.lookupEvent(op, name)
	if err != nil {
		return -1, err
	}

	if ev.live() >= e.opts.MaxInstancesPerEvent {
		return -1, e.report(NewError(ErrorCodeInstanceLimit, op, name,
			fmt.Errorf("%d live instances", e.opts.MaxInstancesPerEvent)))
	}

	h, err := e.backend.CreateInstance(ev.desc)
	if err != nil {
		return -1, e.report(NewError(ErrorCodeBackend, op, name, err))
	}

	for param, value := range ev.params {
		if err := e.backend.SetParameter(h, param, value); err != nil {
			e.report(NewError(ErrorCodeBackend, op, name, fmt.Errorf("parameter %q: %w", param, err)))
		}
	}
	if ev.hasVolume {
		if err := e.backend.SetInstanceVolume(h, ev.volume); err != nil {
			e.report(NewError(ErrorCodeBackend, op, name, err))
		}
	}

	if err := e.backend.StartInstance(h); err != nil {
		if rerr := e.backend.ReleaseInstance(h); rerr != nil {
			e.report(NewError(ErrorCodeBackend, op, name, rerr))
		}
		return -1, e.report(NewError(ErrorCodeBackend, op, name, err))
	}

	inst := &eventInstance{handle: h, transient: true}
	for i := 1; i < len(ev.instances); i++ {
		if ev.instances[i] == nil {
			ev.instances[i] = inst
			return i, nil
		}
	}
	ev.instances = append(ev.instances, inst)
	return len(ev.instances) - 1, nil
}

// EventInstances returns the number of live instances of the event.
func (e *Engine) EventInstances(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	ev, ok := e.events[name]
	if !ok {
		return 0
	}
	return ev.live()
}

// Events returns the names of the loaded events.
func (e *Engine) Events() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, 0, len(e.events))
	for name := range e.events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// reapInstances releases transient instances that have stopped (must be
// called with lock held).
func (e *Engine) reapInstances() {
	for _, ev := range e.events {
		for i := 1; i < len(ev.instances); i++ {
			inst := ev.instances[i]
			if inst == nil || !inst.transient {
				continue
			}

			state, err := e.backend.InstanceState(inst.handle)
			if err != nil {
				e.report(NewError(ErrorCodeBackend, "reap instance", ev.name, err))
				continue
			}
			if state.Active() {
				continue
			}
			if err := e.backend.ReleaseInstance(inst.handle); err != nil {
				e.report(NewError(ErrorCodeBackend, "reap instance", ev.name, err))
				continue
			}
			ev.instances[i] = nil
			e.logger.Debug("reaped event instance", "name", ev.name, "index", i)
		}

		// trailing free slots can go; inner ones keep later indices stable
		n := len(ev.instances)
		for n > 1 && ev.instances[n-1] == nil {
			n--
		}
		ev.instances = ev.instances[:n]
	}
}

func (e *Engine) lookupEvent(op, name string) (*event, error) {
	if e.closed {
		return nil, e.report(NewError(ErrorCodeClosed, op, name, nil))
	}
	ev, ok := e.events[name]
	if !ok {
		return nil, e.report(NewError(ErrorCodeUnknownEvent, op, name, nil))
	}
	return ev, nil
}

func (e *Engine) lookupInstance(op, name string, index int) (*event, *eventInstance, error) {
	ev, err := e.lookupEvent(op, name)
	if err != nil {
		return nil, nil, err
	}
	if index < 0 || index >= len(ev.instances) || ev.instances[index] == nil {
		return nil, nil, e.report(NewError(ErrorCodeInvalidInstance, op, name,
			fmt.Errorf("index %d", index)))
	}
	return ev, ev.instances[index], nil
}

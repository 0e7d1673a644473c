package audio

import (
	"io"
	"sync"
	"time"
)

// NullDevice consumes voices without producing sound. In manual mode time
// only passes through Advance, which makes playback deterministic in tests;
// Run drives it in simulated real time for headless runs.
type NullDevice struct {
	sampleRate int

	mu     sync.Mutex
	voices []*nullVoice
	closed bool
	stop   chan struct{}
	wg     sync.WaitGroup
}

type nullVoice struct {
	r       io.Reader
	playing bool
	closed  bool
	frames  int64 // frames consumed so far
}

// NewNullDevice creates a manual null device.
func NewNullDevice(sampleRate int) *NullDevice {
	return &NullDevice{sampleRate: sampleRate, stop: make(chan struct{})}
}

// SampleRate implements Device.
func (d *NullDevice) SampleRate() int { return d.sampleRate }

// NewVoice implements Device.
func (d *NullDevice) NewVoice(r io.Reader) (Voice, error) {
	v := &nullVoice{r: r}
	d.mu.Lock()
	d.voices = append(d.voices, v)
	d.mu.Unlock()
	return &nullHandle{dev: d, v: v}, nil
}

// Run advances the device every tick until Close is called.
func (d *NullDevice) Run(tick time.Duration) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.Advance(tick)
			case <-d.stop:
				return
			}
		}
	}()
}

// Advance pulls dur worth of frames from every playing voice. Voices whose
// reader is exhausted stop playing.
func (d *NullDevice) Advance(dur time.Duration) {
	frames := int(int64(dur) * int64(d.sampleRate) / int64(time.Second))
	if frames <= 0 {
		return
	}
	buf := make([]byte, frames*BytesPerFrame)

	d.mu.Lock()
	defer d.mu.Unlock()

	live := d.voices[:0]
	for _, v := range d.voices {
		if v.closed {
			continue
		}
		live = append(live, v)
		if !v.playing {
			continue
		}
		n, err := io.ReadFull(v.r, buf)
		v.frames += int64(n / BytesPerFrame)
		if err != nil {
			v.playing = false
		}
	}
	d.voices = live
}

// Voices returns the number of open voices.
func (d *NullDevice) Voices() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, v := range d.voices {
		if !v.closed {
			n++
		}
	}
	return n
}

// Close implements Device.
func (d *NullDevice) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	close(d.stop)
	d.wg.Wait()
	return nil
}

type nullHandle struct {
	dev *NullDevice
	v   *nullVoice
}

func (h *nullHandle) Play() {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	if !h.v.closed {
		h.v.playing = true
	}
}

func (h *nullHandle) IsPlaying() bool {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	return h.v.playing
}

func (h *nullHandle) Close() error {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	h.v.playing = false
	h.v.closed = true
	return nil
}

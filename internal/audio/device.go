package audio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
)

const (
	// ChannelCount is the number of interleaved output channels.
	ChannelCount = 2
	// BytesPerFrame is the size of one stereo 16-bit frame.
	BytesPerFrame = ChannelCount * 2
)

// Voice is one stream being played by a Device.
type Voice interface {
	Play()
	IsPlaying() bool
	Close() error
}

// Device turns PCM readers into voices.
type Device interface {
	SampleRate() int
	NewVoice(r io.Reader) (Voice, error)
	Close() error
}

// DeviceConfig contains configuration for the output device.
type DeviceConfig struct {
	SampleRate int           // 44100 or 48000 Hz only
	BufferSize time.Duration // Output latency
}

// DefaultDeviceConfig returns the default device configuration.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		SampleRate: 44100,
		BufferSize: 50 * time.Millisecond,
	}
}

// Validate checks the device configuration.
func (c DeviceConfig) Validate() error {
	// OTO only supports specific sample rates reliably
	if c.SampleRate != 44100 && c.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", c.SampleRate)
	}
	if c.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	return nil
}

// OtoDevice plays voices on the system audio device.
type OtoDevice struct {
	ctx        *oto.Context
	sampleRate int
}

// NewOtoDevice opens the audio device. Only one OtoDevice may exist per
// process.
func NewOtoDevice(cfg DeviceConfig) (*OtoDevice, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   cfg.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	return &OtoDevice{ctx: ctx, sampleRate: cfg.SampleRate}, nil
}

// SampleRate implements Device.
func (d *OtoDevice) SampleRate() int { return d.sampleRate }

// NewVoice implements Device.
func (d *OtoDevice) NewVoice(r io.Reader) (Voice, error) {
	if err := d.ctx.Err(); err != nil {
		return nil, fmt.Errorf("audio device failed: %w", err)
	}
	p := d.ctx.NewPlayer(r)
	if p == nil {
		return nil, errors.New("failed to create oto player")
	}
	return p, nil
}

// Close suspends the device. oto contexts cannot be released.
func (d *OtoDevice) Close() error {
	return d.ctx.Suspend()
}

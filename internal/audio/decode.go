package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"

	"github.com/soundstage/soundstage/internal/cache"
)

// Decoder turns sound files into 16-bit little-endian stereo PCM at a fixed
// sample rate, going through the PCM cache when one is configured.
type Decoder struct {
	sampleRate int
	cache      *cache.Manager
	log        *log.Logger
}

// NewDecoder creates a decoder. c may be nil.
func NewDecoder(sampleRate int, c *cache.Manager, logger *log.Logger) *Decoder {
	if logger == nil {
		logger = log.Default()
	}
	return &Decoder{sampleRate: sampleRate, cache: c, log: logger}
}

// Supported reports whether path has an extension the decoder understands.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".ogg", ".mp3", ".pcm":
		return true
	}
	return false
}

// Decode returns the PCM of the file at path.
func (d *Decoder) Decode(path string) ([]byte, error) {
	var key cache.Key
	if d.cache != nil {
		k, err := cache.KeyFor(path, d.sampleRate)
		if err != nil {
			return nil, err
		}
		key = k
		if pcm, level, ok := d.cache.Get(key); ok {
			d.log.Debug("Audio cache hit", "path", path, "level", level)
			return pcm, nil
		}
	}

	start := time.Now()
	pcm, err := d.decodeFile(path)
	if err != nil {
		return nil, err
	}
	pcm = pcm[:len(pcm)-len(pcm)%BytesPerFrame]

	d.log.Debug("Decoded audio",
		"path", path,
		"size", humanize.Bytes(uint64(len(pcm))),
		"length", Duration(len(pcm), d.sampleRate),
		"took", time.Since(start))

	if d.cache != nil {
		if err := d.cache.Put(key, pcm); err != nil {
			d.log.Warn("Failed to cache decoded audio", "path", path, "err", err)
		}
	}
	return pcm, nil
}

func (d *Decoder) decodeFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var src io.Reader
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		src, err = wav.DecodeWithSampleRate(d.sampleRate, f)
	case ".ogg":
		src, err = vorbis.DecodeWithSampleRate(d.sampleRate, f)
	case ".mp3":
		src, err = mp3.DecodeWithSampleRate(d.sampleRate, f)
	case ".pcm":
		src = f
	default:
		return nil, fmt.Errorf("unsupported audio format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}

	pcm, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return pcm, nil
}

// Duration returns the playing time of n bytes of PCM.
func Duration(n, sampleRate int) time.Duration {
	frames := int64(n / BytesPerFrame)
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

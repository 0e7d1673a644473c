package audio

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// stream is the reader behind one voice. It walks a PCM clip frame by frame,
// wraps around when looping and applies the channel's gains and reverb send.
// Gains are written by the control side and read by the device thread.
type stream struct {
	pcm  []byte // shared with the clip, never written
	loop bool

	gainL   atomic.Uint32 // float32 bits
	gainR   atomic.Uint32
	wet     atomic.Uint32
	stopped atomic.Bool

	mu       sync.Mutex
	pos      int
	delay    []float32 // interleaved L/R ring buffer
	delayPos int
	feedback float32
}

func newStream(pcm []byte, loop bool) *stream {
	s := &stream{pcm: pcm[:len(pcm)-len(pcm)%BytesPerFrame], loop: loop}
	s.setGains(1, 1)
	return s
}

func (s *stream) setGains(left, right float32) {
	s.gainL.Store(math.Float32bits(left))
	s.gainR.Store(math.Float32bits(right))
}

func (s *stream) gains() (float32, float32) {
	return math.Float32frombits(s.gainL.Load()), math.Float32frombits(s.gainR.Load())
}

func (s *stream) setWet(wet float32) {
	s.wet.Store(math.Float32bits(wet))
}

// setDelay resizes the reverb line. A zero delay disables it.
func (s *stream) setDelay(d time.Duration, feedback float32, sampleRate int) {
	frames := int(int64(d) * int64(sampleRate) / int64(time.Second))

	s.mu.Lock()
	defer s.mu.Unlock()
	if frames*ChannelCount != len(s.delay) {
		s.delay = make([]float32, frames*ChannelCount)
		s.delayPos = 0
	}
	s.feedback = feedback
}

func (s *stream) stop() {
	s.stopped.Store(true)
}

// Read implements io.Reader. It returns io.EOF once a one-shot clip is
// exhausted or the stream was stopped.
func (s *stream) Read(p []byte) (int, error) {
	if s.stopped.Load() {
		return 0, io.EOF
	}
	if len(p) < BytesPerFrame {
		return 0, nil
	}

	gl, gr := s.gains()
	wet := math.Float32frombits(s.wet.Load())

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for n+BytesPerFrame <= len(p) {
		if s.pos >= len(s.pcm) {
			if !s.loop || len(s.pcm) == 0 {
				break
			}
			s.pos = 0
		}

		l := float32(int16(binary.LittleEndian.Uint16(s.pcm[s.pos:]))) * gl
		r := float32(int16(binary.LittleEndian.Uint16(s.pcm[s.pos+2:]))) * gr
		s.pos += BytesPerFrame

		if len(s.delay) > 0 {
			dl, dr := s.delay[s.delayPos], s.delay[s.delayPos+1]
			s.delay[s.delayPos] = l + dl*s.feedback
			s.delay[s.delayPos+1] = r + dr*s.feedback
			s.delayPos = (s.delayPos + ChannelCount) % len(s.delay)
			l += dl * wet
			r += dr * wet
		}

		binary.LittleEndian.PutUint16(p[n:], uint16(clip16(l)))
		binary.LittleEndian.PutUint16(p[n+2:], uint16(clip16(r)))
		n += BytesPerFrame
	}

	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func clip16(v float32) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}

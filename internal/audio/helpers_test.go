package audio

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
)

const testRate = 44100

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

// constantPCM returns frames stereo frames with every sample set to v.
func constantPCM(frames int, v int16) []byte {
	out := make([]byte, frames*BytesPerFrame)
	for i := 0; i < len(out); i += 2 {
		binary.LittleEndian.PutUint16(out[i:], uint16(v))
	}
	return out
}

func frameAt(pcm []byte, i int) (int16, int16) {
	off := i * BytesPerFrame
	return int16(binary.LittleEndian.Uint16(pcm[off:])), int16(binary.LittleEndian.Uint16(pcm[off+2:]))
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// monoWAV encodes 16-bit mono samples as a RIFF/WAVE file.
func monoWAV(sampleRate int, samples []int16) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 44+dataLen)
	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataLen))
	copy(buf[8:], "WAVE")
	copy(buf[12:], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:], 2)
	binary.LittleEndian.PutUint16(buf[34:], 16)
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataLen))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(s))
	}
	return buf
}

func mathFloat(bits uint32) float32 {
	return math.Float32frombits(bits)
}

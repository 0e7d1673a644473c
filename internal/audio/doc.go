// Package audio implements sound.Backend on top of oto/v3. It decodes sound
// files into 16-bit stereo PCM, mixes spatialized voices with per-channel
// gain, pan and reverb, and plays event banks described by TOML manifests.
package audio

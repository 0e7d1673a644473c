// Package cache keeps decoded PCM audio so that a sound file is decoded once
// per content version. It combines an in-memory LRU cache (L1) with an
// optional zstd-compressed disk cache (L2) and can watch asset directories to
// drop entries whose source file changed.
package cache

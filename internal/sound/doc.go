// Package sound provides the playback resource cache that sits between a game
// loop and an audio backend. It maps logical sound and event identities to
// loaded backend resources, tracks which looping sounds are playing, manages
// event instances, and forwards listener and emitter positions once per frame.
package sound

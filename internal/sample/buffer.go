// Package sample defines the immutable, reference-counted audio buffer
// shared between the mixer's sample bank and the facade's shadow cache.
package sample

import "sync/atomic"

// Buffer is an immutable block of interleaved 32-bit float PCM at the
// engine's sample rate and channel count. Once constructed it is never
// mutated; multiple owners (a voice's clone, the mixer's bank slot, the
// facade's shadow cache) hold independent handles onto the same backing
// array, and the array is freed only when the last handle drops it.
type Buffer struct {
	channels   int
	sampleRate int
	frames     []float32 // interleaved, len = frameCount*channels
	refs       *atomic.Int32
}

// New builds a Buffer from interleaved float32 frames. data is taken by
// reference, not copied — callers must not mutate it afterward.
func New(channels, sampleRate int, data []float32) *Buffer {
	refs := &atomic.Int32{}
	refs.Store(1)
	return &Buffer{
		channels:   channels,
		sampleRate: sampleRate,
		frames:     data,
		refs:       refs,
	}
}

// Channels returns the buffer's channel count (1 or 2).
func (b *Buffer) Channels() int { return b.channels }

// SampleRate returns the buffer's sample rate in Hz.
func (b *Buffer) SampleRate() int { return b.sampleRate }

// FrameCount returns the number of frames (samples per channel).
func (b *Buffer) FrameCount() int {
	if b.channels == 0 {
		return 0
	}
	return len(b.frames) / b.channels
}

// At returns the sample for frame f, channel c. Callers are expected to
// keep f and c in range; this is called from the audio render hot path
// and intentionally has no bounds-check recovery beyond a plain panic on
// misuse during development.
func (b *Buffer) At(f, c int) float32 {
	return b.frames[f*b.channels+c]
}

// Retain bumps the shared reference count and returns b itself: since
// every field but the count is immutable, a second handle is just a
// second owner of the same pointer, not a new allocation. Safe to call
// from the audio thread: no allocation, no blocking.
func (b *Buffer) Retain() *Buffer {
	b.refs.Add(1)
	return b
}

// Release drops this handle. The backing array becomes eligible for GC
// once every handle has released it; Go's GC, not Release, reclaims the
// memory, so this only needs to run the refcount down for diagnostics
// and symmetry with the handle-passing model described in the design.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	b.refs.Add(-1)
}

// Package ring implements the lock-free SPSC transport between the
// control thread and the audio callback thread, following the atomic
// ring buffer pattern used by the audio device callbacks in this repo's
// ancestry (fixed-size backing array, atomic head/tail, no allocation on
// the hot path).
package ring

import (
	"sync/atomic"

	"github.com/padsampler/engine/internal/sample"
)

// ControlKind identifies which field(s) of a ControlMessage are valid.
type ControlKind uint8

const (
	CtrlPing ControlKind = iota
	CtrlLoadSample
	CtrlPlaySample
	CtrlStopSample
	CtrlStopAll
	CtrlUnloadSample
	CtrlSetVolume
	CtrlSetSpeed
	CtrlSetMasterBpm
	CtrlClearMasterBpm
	CtrlSetBpmLock
	CtrlSetKeyLock
	CtrlSetPadBpm
	CtrlSetPadGain
	CtrlSetPadEq
	CtrlSetPadLoopRegion
)

// ControlMessage is a plain-data tagged union pushed from the control
// side to the audio side. It carries no pointers except Sample (assigned
// synchronously at push time and read-only thereafter), so pushing and
// popping never allocates.
type ControlMessage struct {
	Kind ControlKind
	PadID int

	Sample *sample.Buffer // CtrlLoadSample

	F1 float64 // velocity / volume / speed / bpm / gain / eq-low / loop-start, depending on Kind
	F2 float64 // eq-mid / loop-end
	F3 float64 // eq-high
	B1 bool    // lock flag for CtrlSetBpmLock/CtrlSetKeyLock
	HasF2 bool // whether F2 (loop end) is present for CtrlSetPadLoopRegion
}

// AudioKind identifies the payload of an AudioMessage.
type AudioKind uint8

const (
	AudioPong AudioKind = iota
	AudioStopped
	AudioPadPeak
	AudioPadPlayhead
)

// AudioMessage is emitted by the audio callback onto the audio->control
// ring. Plain data, no allocation.
type AudioMessage struct {
	Kind AudioKind
	PadID int
	Value float64 // peak amplitude, or playhead position in seconds
}

// defaultCapacity is used when a caller asks for a non-positive
// capacity.
const defaultCapacity = 1024

// ControlRing is the bounded SPSC ring carrying ControlMessage from the
// control thread (producer) to the audio thread (consumer).
type ControlRing struct {
	slots []ControlMessage
	cap   uint64
	head  atomic.Uint64 // next write index (producer-owned)
	tail  atomic.Uint64 // next read index (consumer-owned)
}

// NewControlRing returns an empty control ring with room for capacity
// messages. A non-positive capacity falls back to defaultCapacity.
func NewControlRing(capacity int) *ControlRing {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &ControlRing{slots: make([]ControlMessage, capacity), cap: uint64(capacity)}
}

// Push enqueues msg. Returns false if the ring is full; the caller
// (control side) surfaces this as ErrQueueFull.
func (r *ControlRing) Push(msg ControlMessage) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= r.cap {
		return false
	}
	r.slots[head%r.cap] = msg
	r.head.Store(head + 1)
	return true
}

// Pop dequeues the next message. Called only from the audio thread.
func (r *ControlRing) Pop() (ControlMessage, bool) {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail >= head {
		return ControlMessage{}, false
	}
	msg := r.slots[tail%r.cap]
	r.tail.Store(tail + 1)
	return msg, true
}

// AudioRing is the bounded SPSC ring carrying AudioMessage from the
// audio thread (producer) to the control thread (consumer).
type AudioRing struct {
	slots []AudioMessage
	cap   uint64
	head  atomic.Uint64
	tail  atomic.Uint64
}

// NewAudioRing returns an empty audio ring with room for capacity
// messages. A non-positive capacity falls back to defaultCapacity.
func NewAudioRing(capacity int) *AudioRing {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &AudioRing{slots: make([]AudioMessage, capacity), cap: uint64(capacity)}
}

// Push enqueues msg from the audio thread. Silently drops on overflow:
// the audio thread never blocks on a full ring.
func (r *AudioRing) Push(msg AudioMessage) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= r.cap {
		return false
	}
	r.slots[head%r.cap] = msg
	r.head.Store(head + 1)
	return true
}

// Pop dequeues the next message. Called from the control side.
func (r *AudioRing) Pop() (AudioMessage, bool) {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail >= head {
		return AudioMessage{}, false
	}
	msg := r.slots[tail%r.cap]
	r.tail.Store(tail + 1)
	return msg, true
}

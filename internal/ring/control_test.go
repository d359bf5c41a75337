package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCapacity = 8

func TestControlRingFIFO(t *testing.T) {
	r := NewControlRing(testCapacity)

	require.True(t, r.Push(ControlMessage{Kind: CtrlPlaySample, PadID: 1, F1: 0.5}))
	require.True(t, r.Push(ControlMessage{Kind: CtrlStopSample, PadID: 2}))

	msg, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, CtrlPlaySample, msg.Kind)
	assert.Equal(t, 1, msg.PadID)
	assert.Equal(t, 0.5, msg.F1)

	msg, ok = r.Pop()
	require.True(t, ok)
	assert.Equal(t, CtrlStopSample, msg.Kind)
	assert.Equal(t, 2, msg.PadID)

	_, ok = r.Pop()
	assert.False(t, ok, "ring should be empty after draining both pushes")
}

func TestControlRingFullRejectsPush(t *testing.T) {
	r := NewControlRing(testCapacity)
	for i := 0; i < testCapacity; i++ {
		require.True(t, r.Push(ControlMessage{Kind: CtrlPing}), "push %d should succeed", i)
	}
	assert.False(t, r.Push(ControlMessage{Kind: CtrlPing}), "ring at capacity should reject further pushes")

	_, ok := r.Pop()
	require.True(t, ok)
	assert.True(t, r.Push(ControlMessage{Kind: CtrlPing}), "popping one slot should free room for another push")
}

func TestAudioRingFIFO(t *testing.T) {
	r := NewAudioRing(testCapacity)
	require.True(t, r.Push(AudioMessage{Kind: AudioPadPeak, PadID: 3, Value: 0.75}))

	msg, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, AudioPadPeak, msg.Kind)
	assert.Equal(t, 3, msg.PadID)
	assert.Equal(t, 0.75, msg.Value)

	_, ok = r.Pop()
	assert.False(t, ok)
}

func TestAudioRingFullDropsSilently(t *testing.T) {
	r := NewAudioRing(testCapacity)
	for i := 0; i < testCapacity; i++ {
		require.True(t, r.Push(AudioMessage{Kind: AudioPong}))
	}
	assert.False(t, r.Push(AudioMessage{Kind: AudioPong}), "audio ring never blocks; overflow push just fails")
}

package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferBasics(t *testing.T) {
	data := []float32{0, 1, 2, 3, 4, 5} // 3 frames, 2 channels
	buf := New(2, 48000, data)

	assert.Equal(t, 2, buf.Channels())
	assert.Equal(t, 48000, buf.SampleRate())
	assert.Equal(t, 3, buf.FrameCount())
	assert.Equal(t, float32(2), buf.At(1, 0))
	assert.Equal(t, float32(3), buf.At(1, 1))
}

func TestBufferFrameCountZeroChannels(t *testing.T) {
	buf := New(0, 48000, nil)
	assert.Equal(t, 0, buf.FrameCount())
}

func TestRetainReturnsSamePointer(t *testing.T) {
	buf := New(1, 48000, []float32{1, 2, 3})
	retained := buf.Retain()
	assert.Same(t, buf, retained, "Retain must hand back the same pointer, not a clone, to stay allocation-free on the audio thread")
}

func TestReleaseNilIsNoOp(t *testing.T) {
	var buf *Buffer
	assert.NotPanics(t, func() { buf.Release() })
}

func TestRetainReleaseRoundTrip(t *testing.T) {
	buf := New(1, 48000, []float32{1, 2, 3})
	buf.Retain()
	buf.Release()
	buf.Release() // back to the original single ref; should not panic
}

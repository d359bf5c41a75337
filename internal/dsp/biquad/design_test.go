package biquad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLowPassCoefficientsFinite(t *testing.T) {
	c := LowPass(380, 48000)
	assert.True(t, finite(c))
	assert.NotEqual(t, identity, c)
}

func TestHighPassCoefficientsFinite(t *testing.T) {
	c := HighPass(2300, 48000)
	assert.True(t, finite(c))
	assert.NotEqual(t, identity, c)
}

func TestLowPassZeroSampleRateFallsBackToIdentity(t *testing.T) {
	assert.Equal(t, identity, LowPass(380, 0))
}

func TestLowPassNonFiniteFreqFallsBackToIdentity(t *testing.T) {
	assert.Equal(t, identity, LowPass(math.NaN(), 48000))
	assert.Equal(t, identity, LowPass(math.Inf(1), 48000))
}

func TestClampCutoffRange(t *testing.T) {
	assert.Equal(t, 1.0, clampCutoff(-10, 48000))
	assert.Equal(t, 1.0, clampCutoff(0, 48000))
	assert.Equal(t, 0.9*24000, clampCutoff(100000, 48000))
	assert.Equal(t, 1000.0, clampCutoff(1000, 48000))
}

func TestSectionProcessesWithoutPanicking(t *testing.T) {
	c := LowPass(380, 48000)
	s := NewSection(c)
	for i := 0; i < 100; i++ {
		s.ProcessSample(math.Sin(float64(i) * 0.1))
	}
}

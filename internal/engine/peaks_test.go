package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeakTrackerUnknownPadIsZero(t *testing.T) {
	pt := newPeakTracker()
	assert.Equal(t, 0.0, pt.value(1, time.Now()))
}

func TestPeakTrackerObserveThenImmediateReadIsFull(t *testing.T) {
	pt := newPeakTracker()
	now := time.Now()
	pt.observe(2, 0.8, now)
	assert.Equal(t, 0.8, pt.value(2, now))
}

func TestPeakTrackerDecaysByHalfLife(t *testing.T) {
	pt := newPeakTracker()
	now := time.Now()
	pt.observe(3, 1.0, now)

	got := pt.value(3, now.Add(peakReleaseHalfLife))
	assert.InDelta(t, 0.5, got, 1e-9)

	got = pt.value(3, now.Add(2*peakReleaseHalfLife))
	assert.InDelta(t, 0.25, got, 1e-9)
}

func TestPeakTrackerFreshObserveOverwritesDecay(t *testing.T) {
	pt := newPeakTracker()
	now := time.Now()
	pt.observe(4, 1.0, now)
	later := now.Add(peakReleaseHalfLife)
	pt.observe(4, 0.9, later)

	assert.Equal(t, 0.9, pt.value(4, later))
}

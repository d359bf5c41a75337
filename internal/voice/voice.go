// Package voice implements a single playing voice: its sample handle,
// frame cursor, smoothed tempo ratio, owned stretcher, and per-channel
// EQ state. The mixer owns a fixed pool of these, reused across
// triggers rather than allocated per play, following the fixed-pool
// discipline this engine's render path requires.
package voice

import (
	"math"

	"github.com/padsampler/engine/internal/dsp/eq"
	"github.com/padsampler/engine/internal/dsp/stretch"
	"github.com/padsampler/engine/internal/sample"
)

const (
	minTempoRatio = 0.5
	maxTempoRatio = 2.0
	maxRatioStep  = 0.05
)

// Voice is one slot in the mixer's fixed voice pool.
type Voice struct {
	Active  bool
	SampleID int
	Sample  *sample.Buffer
	FramePos int
	Volume  float64 // trigger velocity

	tempoRatioSmoothed float64
	Stretcher          *stretch.Stretcher
	EQ                 *eq.EQ
	Paused             bool
}

// New constructs an idle voice slot for the given channel count and
// sample rate. The stretcher and EQ are allocated once here and never
// re-allocated for the lifetime of the slot.
func New(channels int, sampleRate float64) *Voice {
	return &Voice{
		Stretcher: stretch.Configure(channels),
		EQ:        eq.New(channels, sampleRate),
	}
}

// Start activates the slot for a new trigger: sets all fields and
// resets EQ state. The stretcher is left as-is; it is owned by the
// slot and never re-initialized on trigger.
func (v *Voice) Start(id int, s *sample.Buffer, initialFrame int, volume, initialTempoRatio float64) {
	v.Active = true
	v.SampleID = id
	v.Sample = s
	v.FramePos = initialFrame
	v.Volume = volume
	v.tempoRatioSmoothed = clampRatio(initialTempoRatio)
	v.Paused = false
	v.EQ.Reset()
}

// Stop deactivates the slot, releases its sample handle, and resets EQ
// state along with the other per-trigger fields. The stretcher is left
// as-is; it is owned by the slot and never re-initialized here either.
func (v *Voice) Stop() {
	if v.Sample != nil {
		v.Sample.Release()
	}
	v.Active = false
	v.Sample = nil
	v.SampleID = 0
	v.FramePos = 0
	v.Volume = 0
	v.tempoRatioSmoothed = 1.0
	v.Paused = false
	v.EQ.Reset()
}

// Restart reuses the slot for a re-trigger of the sample it already
// holds, without re-initializing the stretcher: its internal analysis
// history is allowed to carry over across a restart.
func (v *Voice) Restart(initialFrame int, volume, tempoRatio float64) {
	v.FramePos = initialFrame
	v.Volume = volume
	v.tempoRatioSmoothed = clampRatio(tempoRatio)
	v.Paused = false
}

// Pause/Resume toggle playback without moving the frame cursor.
func (v *Voice) Pause()  { v.Paused = true }
func (v *Voice) Resume() { v.Paused = false }

// TempoRatio returns the current smoothed tempo ratio.
func (v *Voice) TempoRatio() float64 { return v.tempoRatioSmoothed }

// SmoothTempoRatio moves the smoothed ratio toward target by at most
// maxRatioStep per block, clamped to [minTempoRatio, maxTempoRatio].
func (v *Voice) SmoothTempoRatio(target float64) float64 {
	target = clampRatio(target)
	delta := target - v.tempoRatioSmoothed
	if delta > maxRatioStep {
		delta = maxRatioStep
	} else if delta < -maxRatioStep {
		delta = -maxRatioStep
	}
	v.tempoRatioSmoothed = clampRatio(v.tempoRatioSmoothed + delta)
	return v.tempoRatioSmoothed
}

func clampRatio(r float64) float64 {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		r = 1.0
	}
	if r < minTempoRatio {
		return minTempoRatio
	}
	if r > maxTempoRatio {
		return maxTempoRatio
	}
	return r
}

// Package eq implements the per-voice 3-band Linkwitz-style EQ: two
// cascaded Butterworth low-passes (4th order) split off the low band,
// two cascaded Butterworth high-passes (4th order) split off the high
// band, and the mid band recovered as input-low-high so unity gains
// reconstruct the input exactly.
package eq

import (
	"math"

	"github.com/padsampler/engine/internal/dsp/biquad"
)

const (
	lowCrossoverHz  = 380.0
	highCrossoverHz = 2300.0

	// MinDB/MaxDB bound the per-band gain control range.
	MinDB = -12.0
	MaxDB = 12.0
)

// channelState holds the persistent biquad state for one channel's
// low-band and high-band cascades (2 sections each, 4th order total).
type channelState struct {
	low  [2]biquad.Section
	high [2]biquad.Section
}

func (s *channelState) reset() {
	for i := range s.low {
		s.low[i].Reset()
		s.high[i].Reset()
	}
}

// EQ is a per-voice, per-channel 3-band equalizer. It is owned by a
// single voice slot and reset whenever that voice restarts.
type EQ struct {
	sampleRate float64
	lowCoef    biquad.Coefficients
	highCoef   biquad.Coefficients

	lowGain  float64 // linear
	midGain  float64
	highGain float64

	channels []channelState
}

// New builds an EQ for the given channel count and sample rate, with
// unity gains on all three bands.
func New(channels int, sampleRate float64) *EQ {
	e := &EQ{
		sampleRate: sampleRate,
		lowCoef:    biquad.LowPass(lowCrossoverHz, sampleRate),
		highCoef:   biquad.HighPass(highCrossoverHz, sampleRate),
		lowGain:    1,
		midGain:    1,
		highGain:   1,
		channels:   make([]channelState, channels),
	}
	for c := range e.channels {
		e.channels[c].low[0] = *biquad.NewSection(e.lowCoef)
		e.channels[c].low[1] = *biquad.NewSection(e.lowCoef)
		e.channels[c].high[0] = *biquad.NewSection(e.highCoef)
		e.channels[c].high[1] = *biquad.NewSection(e.highCoef)
	}
	return e
}

// DBToLinear converts a dB gain to a linear multiplier. Values at or
// below MinDB are clamped to a true mute (gain 0), matching the
// engine's "a knob all the way down is silence" contract.
func DBToLinear(db float64) float64 {
	if math.IsNaN(db) || db <= MinDB {
		return 0
	}
	if db > MaxDB {
		db = MaxDB
	}
	return math.Pow(10, db/20)
}

// SetGainsDB sets the three band gains from dB values in [MinDB, MaxDB].
// Non-finite inputs are treated as 0 dB (unity).
func (e *EQ) SetGainsDB(lowDB, midDB, highDB float64) {
	e.lowGain = dbOrUnity(lowDB)
	e.midGain = dbOrUnity(midDB)
	e.highGain = dbOrUnity(highDB)
}

func dbOrUnity(db float64) float64 {
	if math.IsNaN(db) || math.IsInf(db, 0) {
		return 1
	}
	return DBToLinear(db)
}

// Reset clears all biquad state, e.g. when the owning voice restarts.
func (e *EQ) Reset() {
	for i := range e.channels {
		e.channels[i].reset()
	}
}

// ProcessSample runs one sample of channel ch through the 3-band split
// and returns the recombined, gained output.
func (e *EQ) ProcessSample(ch int, x float64) float64 {
	if ch < 0 || ch >= len(e.channels) {
		return x
	}
	cs := &e.channels[ch]

	low := x
	low = cs.low[0].ProcessSample(low)
	low = cs.low[1].ProcessSample(low)

	high := x
	high = cs.high[0].ProcessSample(high)
	high = cs.high[1].ProcessSample(high)

	mid := x - low - high

	return low*e.lowGain + mid*e.midGain + high*e.highGain
}

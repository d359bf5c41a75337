// Package biquad designs Butterworth low-pass/high-pass biquad
// coefficients for the bilinear transform, built on top of the
// community biquad.Section state/processing primitive rather than
// hand-rolling a direct-form-II implementation.
package biquad

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
)

// butterworthQ is the Q factor of a single second-order Butterworth
// section: 1/sqrt(2).
const butterworthQ = 0.7071067811865476

// Coefficients is a re-export of the underlying library's coefficient
// type so callers of this package don't need to import the vendor path
// directly.
type Coefficients = biquad.Coefficients

// Section is a re-export of the underlying library's per-channel filter
// state/processing primitive.
type Section = biquad.Section

// NewSection constructs a Section from the given coefficients.
func NewSection(c Coefficients) *Section {
	return biquad.NewSection(c)
}

// identity passes the signal through unchanged; used whenever a
// requested cutoff or the sample rate produces a non-finite design.
var identity = Coefficients{B0: 1}

// clampCutoff keeps the cutoff frequency within [1 Hz, 0.9*Nyquist],
// per the EQ design's stability requirement.
func clampCutoff(freq, sampleRate float64) float64 {
	nyquist := sampleRate / 2
	max := 0.9 * nyquist
	switch {
	case freq < 1:
		return 1
	case freq > max:
		return max
	default:
		return freq
	}
}

func finite(c Coefficients) bool {
	vals := []float64{c.B0, c.B1, c.B2, c.A1, c.A2}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// LowPass designs a single second-order Butterworth low-pass section at
// freq Hz for the given sample rate.
func LowPass(freq, sampleRate float64) Coefficients {
	if sampleRate <= 0 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return identity
	}
	freq = clampCutoff(freq, sampleRate)
	w0 := 2 * math.Pi * freq / sampleRate
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * butterworthQ)

	a0 := 1 + alpha
	c := Coefficients{
		B0: ((1 - cw) / 2) / a0,
		B1: (1 - cw) / a0,
		B2: ((1 - cw) / 2) / a0,
		A1: (-2 * cw) / a0,
		A2: (1 - alpha) / a0,
	}
	if !finite(c) {
		return identity
	}
	return c
}

// HighPass designs a single second-order Butterworth high-pass section
// at freq Hz for the given sample rate.
func HighPass(freq, sampleRate float64) Coefficients {
	if sampleRate <= 0 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return identity
	}
	freq = clampCutoff(freq, sampleRate)
	w0 := 2 * math.Pi * freq / sampleRate
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * butterworthQ)

	a0 := 1 + alpha
	c := Coefficients{
		B0: ((1 + cw) / 2) / a0,
		B1: (-(1 + cw)) / a0,
		B2: ((1 + cw) / 2) / a0,
		A1: (-2 * cw) / a0,
		A2: (1 - alpha) / a0,
	}
	if !finite(c) {
		return identity
	}
	return c
}

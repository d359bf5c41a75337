// Package resample implements the fixed-input-size FFT resampler used
// by the sample loader's resampling stage. It is treated by callers as
// a black box: feed fixed-size chunks in, drain resampled frames out,
// accounting for the resampler's own output delay, following the same
// chunked FFT-domain approach as the phase vocoder in
// internal/dsp/stretch.
package resample

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ChunkSize is the fixed number of input frames consumed per Process
// call, per the loader's step-3 contract.
const ChunkSize = 1024

// Resampler converts interleaved-free, planar float64 input at one
// sample rate to planar output at another, for a fixed channel count,
// processing ChunkSize frames at a time via FFT bandwidth truncation
// or zero-padding (upsampling zero-fills the bins above the old
// Nyquist, downsampling truncates the spectrum above the new
// Nyquist).
type Resampler struct {
	channels int
	ratio    float64 // R_out / R_in

	inLen  int // ChunkSize
	outLen int // round(ChunkSize * ratio)

	fftIn  *fourier.FFT
	fftOut *fourier.FFT

	// OutputDelay is the number of leading output frames that are
	// resampling warm-up artifacts and must be discarded by the
	// caller before the output stream is considered to have started.
	OutputDelay int

	scratchCoeffs []complex128
	scratchTime   []float64

	produced int // total output frames produced so far, across calls
}

// New constructs a Resampler for channels channels converting from
// inRate to outRate. ratio = outRate/inRate.
func New(channels int, inRate, outRate float64) *Resampler {
	ratio := outRate / inRate
	if !(ratio > 0) || math.IsInf(ratio, 0) {
		ratio = 1
	}
	outLen := int(math.Round(ChunkSize * ratio))
	if outLen < 1 {
		outLen = 1
	}

	n := ChunkSize
	if outLen > n {
		n = outLen
	}

	r := &Resampler{
		channels:      channels,
		ratio:         ratio,
		inLen:         ChunkSize,
		outLen:        outLen,
		fftIn:         fourier.NewFFT(ChunkSize),
		fftOut:        fourier.NewFFT(outLen),
		scratchCoeffs: make([]complex128, n/2+1),
		scratchTime:   make([]float64, n),
	}
	// Half the FFT size of a full analysis window is the standard
	// group delay of this style of FFT-domain rate converter.
	r.OutputDelay = outLen / 2
	return r
}

// InputLen is the fixed chunk size this resampler consumes per Process
// call (always ChunkSize).
func (r *Resampler) InputLen() int { return r.inLen }

// OutputLen is the number of output frames produced per full (non-zero
// length) input chunk.
func (r *Resampler) OutputLen() int { return r.outLen }

// Process resamples one planar chunk. in must have r.channels slices
// each of length inputSamples (inputSamples == ChunkSize for all but
// the final, possibly shorter, flush chunk; a zero-length chunk is
// used purely to pump remaining output during flush). out must have
// r.channels slices with capacity for OutputLen() frames; Process
// returns the slices resized to the number of frames actually written.
func (r *Resampler) Process(in [][]float64, out [][]float64) [][]float64 {
	for c := 0; c < r.channels; c++ {
		src := in[c]
		n := len(src)

		frame := r.scratchTime[:r.fftIn.Len()]
		for i := range frame {
			if i < n {
				frame[i] = src[i]
			} else {
				frame[i] = 0
			}
		}

		coeffs := r.scratchCoeffs[:r.fftIn.Len()/2+1]
		r.fftIn.Coefficients(coeffs, frame)

		outCoeffs := make([]complex128, r.fftOut.Len()/2+1)
		m := len(coeffs)
		if len(outCoeffs) < m {
			m = len(outCoeffs)
		}
		copy(outCoeffs, coeffs[:m])

		if cap(out[c]) < r.outLen {
			out[c] = make([]float64, r.outLen)
		} else {
			out[c] = out[c][:r.outLen]
		}
		r.fftOut.Sequence(out[c], outCoeffs)

		// Rescale for the differing FFT normalization between the two
		// transform sizes and for the amplitude change introduced by
		// zero-padding/truncating the spectrum.
		scale := 1 / float64(r.inLen)
		for i := range out[c] {
			out[c][i] *= scale
		}
	}
	r.produced += r.outLen
	return out
}

// ExpectedOutputLen returns ceil(ratio * inputFrames), the total output
// length the loader should expect across the whole resample of a
// track with inputFrames source frames.
func (r *Resampler) ExpectedOutputLen(inputFrames int) int {
	exact := r.ratio * float64(inputFrames)
	// Absorb the rounding error of the stored ratio so that an integer
	// product is not pushed up to the next frame by ceil.
	if n := math.Round(exact); math.Abs(exact-n) < 1e-6 {
		return int(n)
	}
	return int(math.Ceil(exact))
}

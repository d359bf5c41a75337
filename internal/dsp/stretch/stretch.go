// Package stretch implements the per-voice phase-vocoder time/pitch
// stretcher. The mixer treats it as a black box with Configure,
// SetTransposeSemitones, and Process, built on the STFT analysis /
// resynthesis primitives from gonum's FFT, following the same
// windowed-overlap style used by the channel vocoder reference in this
// repo's DSP lineage.
package stretch

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// BlockSize is the FFT analysis window length.
	BlockSize = 1024
	// Hop is the fixed synthesis hop between successive frames.
	Hop = 256

	binCount = BlockSize/2 + 1

	// ringCapacity bounds the per-channel input history so Process
	// never has to grow cs.ring's backing array once warmed up.
	ringCapacity = BlockSize * 4
)

// channelState holds all per-channel scratch storage, preallocated at
// construction so Process never allocates once the ring has filled to
// its steady-state length.
type channelState struct {
	ring    []float64 // accumulated raw input samples awaiting analysis
	readPos float64   // fractional read position into ring, in samples

	lastPhase []float64 // analysis phase of the previous frame, per bin
	sumPhase  []float64 // accumulated synthesis phase, per bin

	overlapBuf []float64 // overlap-add accumulator, length BlockSize+Hop
	window     []float64

	frame       []float64    // scratch: windowed analysis frame
	coeffs      []complex128 // scratch: forward FFT bins
	mag, phase  []float64    // scratch: analysis magnitude/phase
	shiftedMag  []float64    // scratch: pitch-shifted magnitude
	synthCoeffs []complex128 // scratch: resynthesis bins
	synth       []float64    // scratch: inverse FFT output
	outF32      []float32    // scratch: float32 copy of one hop
}

func newChannelState(window []float64) *channelState {
	return &channelState{
		ring:        make([]float64, 0, ringCapacity),
		lastPhase:   make([]float64, binCount),
		sumPhase:    make([]float64, binCount),
		overlapBuf:  make([]float64, BlockSize+Hop),
		window:      window,
		frame:       make([]float64, BlockSize),
		coeffs:      make([]complex128, binCount),
		mag:         make([]float64, binCount),
		phase:       make([]float64, binCount),
		shiftedMag:  make([]float64, binCount),
		synthCoeffs: make([]complex128, binCount),
		synth:       make([]float64, BlockSize),
		outF32:      make([]float32, Hop),
	}
}

// Stretcher is owned by a single voice and never reallocated after
// construction.
type Stretcher struct {
	channels  int
	split     bool
	transpose float64 // semitones

	fft *fourier.FFT

	inputBufs  [][]float32
	outputBufs [][]float32

	states []*channelState
}

// Configure constructs a stretcher for channels channels with a block
// size of 1024, hop of 256, and split-computation enabled.
func Configure(channels int) *Stretcher {
	window := hann(BlockSize)
	s := &Stretcher{
		channels:   channels,
		split:      true,
		fft:        fourier.NewFFT(BlockSize),
		inputBufs:  make([][]float32, channels),
		outputBufs: make([][]float32, channels),
		states:     make([]*channelState, channels),
	}
	for c := 0; c < channels; c++ {
		s.states[c] = newChannelState(window)
		s.inputBufs[c] = make([]float32, 0, BlockSize)
		s.outputBufs[c] = make([]float32, 0, BlockSize)
	}
	return s
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// SetTransposeSemitones sets the pitch shift in semitones. Non-finite
// values are ignored (no-op).
func (s *Stretcher) SetTransposeSemitones(x float64) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return
	}
	s.transpose = x
}

// InputBuffersMut returns s.channels planar, writable buffers resized
// to n samples. Callers fill these before calling Process.
func (s *Stretcher) InputBuffersMut(n int) [][]float32 {
	for c := range s.inputBufs {
		if cap(s.inputBufs[c]) < n {
			s.inputBufs[c] = make([]float32, n)
		} else {
			s.inputBufs[c] = s.inputBufs[c][:n]
		}
	}
	return s.inputBufs
}

// OutputBuffers returns the s.channels planar outputs produced by the
// most recent Process call.
func (s *Stretcher) OutputBuffers() [][]float32 {
	return s.outputBufs
}

// Reset clears all per-channel phase and overlap state, e.g. when the
// owning voice restarts playback from a new position.
func (s *Stretcher) Reset() {
	for _, cs := range s.states {
		for i := range cs.lastPhase {
			cs.lastPhase[i] = 0
			cs.sumPhase[i] = 0
		}
		for i := range cs.overlapBuf {
			cs.overlapBuf[i] = 0
		}
		cs.readPos = 0
		cs.ring = cs.ring[:0]
	}
}

// Process consumes the inputSamples frames most recently written via
// InputBuffersMut and produces outputSamples frames into the buffers
// returned by OutputBuffers, running the analysis/resynthesis loop
// independently on each channel. Once a channel's input ring has
// reached its steady-state length this performs no heap allocation.
func (s *Stretcher) Process(inputSamples, outputSamples int) {
	pitchRatio := math.Pow(2, s.transpose/12)

	for c := 0; c < s.channels; c++ {
		cs := s.states[c]
		in := s.inputBufs[c][:inputSamples]
		for _, v := range in {
			cs.ring = append(cs.ring, float64(v))
		}

		if cap(s.outputBufs[c]) < outputSamples {
			s.outputBufs[c] = make([]float32, outputSamples)
		} else {
			s.outputBufs[c] = s.outputBufs[c][:outputSamples]
		}
		out := s.outputBufs[c]
		for i := range out {
			out[i] = 0
		}

		// Analysis hop adapts to the requested input/output ratio so
		// that inputSamples worth of source produces outputSamples
		// worth of output at fixed synthesis hop Hop.
		analysisHop := Hop
		if outputSamples > 0 {
			analysisHop = int(math.Round(float64(Hop) * float64(inputSamples) / float64(outputSamples)))
			if analysisHop < 1 {
				analysisHop = 1
			}
		}

		written := 0
		for written < outputSamples {
			s.readFrame(cs)
			s.analyze(cs)
			s.shiftPitch(cs, pitchRatio)
			s.synthesize(cs, analysisHop)
			overlapAdd(cs)

			n := copy(out[written:], toFloat32(cs.outF32, cs.overlapBuf[:Hop]))
			written += n
			advanceOverlap(cs)
			advanceRead(cs, analysisHop)
		}
	}
}

// readFrame extracts a windowed BlockSize frame starting at the
// channel's fractional read position into cs.frame, using linear
// interpolation between ring samples and zero-padding past the ring.
func (s *Stretcher) readFrame(cs *channelState) {
	base := cs.readPos
	for i := 0; i < BlockSize; i++ {
		pos := base + float64(i)
		idx := int(pos)
		frac := pos - float64(idx)
		var a, b float64
		if idx >= 0 && idx < len(cs.ring) {
			a = cs.ring[idx]
		}
		if idx+1 >= 0 && idx+1 < len(cs.ring) {
			b = cs.ring[idx+1]
		}
		cs.frame[i] = (a + (b-a)*frac) * cs.window[i]
	}
}

func advanceRead(cs *channelState, analysisHop int) {
	cs.readPos += float64(analysisHop)
	// Drop consumed history once it is far enough behind the read
	// cursor that it can never be referenced again, keeping the ring
	// within its preallocated capacity.
	if drop := int(cs.readPos) - BlockSize; drop > BlockSize {
		if drop > len(cs.ring) {
			drop = len(cs.ring)
		}
		n := copy(cs.ring, cs.ring[drop:])
		cs.ring = cs.ring[:n]
		cs.readPos -= float64(drop)
	}
}

func (s *Stretcher) analyze(cs *channelState) {
	s.fft.Coefficients(cs.coeffs, cs.frame)
	for k, v := range cs.coeffs {
		cs.mag[k] = cmplx.Abs(v)
		cs.phase[k] = cmplx.Phase(v)
	}
}

// shiftPitch remaps bin magnitudes into cs.shiftedMag to simulate a
// frequency-domain pitch shift by ratio, leaving phase tracking on the
// original bin frequency (the standard bin-shift approximation used by
// simple phase-vocoder pitch shifters).
func (s *Stretcher) shiftPitch(cs *channelState, ratio float64) {
	for i := range cs.shiftedMag {
		cs.shiftedMag[i] = 0
	}
	if ratio == 1 {
		copy(cs.shiftedMag, cs.mag)
		return
	}
	for k, m := range cs.mag {
		dst := int(math.Round(float64(k) * ratio))
		if dst >= 0 && dst < binCount {
			cs.shiftedMag[dst] += m
		}
	}
}

func (s *Stretcher) synthesize(cs *channelState, analysisHop int) {
	binAdvanceStep := 2 * math.Pi * float64(Hop) / float64(BlockSize)

	for k := range cs.synthCoeffs {
		delta := cs.phase[k] - cs.lastPhase[k]
		cs.lastPhase[k] = cs.phase[k]

		binCenterAdvance := 2 * math.Pi * float64(k) * float64(analysisHop) / float64(BlockSize)
		delta = wrapPhase(delta - binCenterAdvance)
		trueAdvance := binCenterAdvance + delta

		perHopAdvance := trueAdvance
		if analysisHop > 0 {
			perHopAdvance = trueAdvance * (binAdvanceStep / (2 * math.Pi * float64(analysisHop) / float64(BlockSize)))
		}

		cs.sumPhase[k] = wrapPhase(cs.sumPhase[k] + perHopAdvance)
		cs.synthCoeffs[k] = cmplx.Rect(cs.shiftedMag[k], cs.sumPhase[k])
	}

	s.fft.Sequence(cs.synth, cs.synthCoeffs)
	for i := range cs.synth {
		cs.synth[i] *= cs.window[i] / float64(BlockSize)
	}
}

func wrapPhase(p float64) float64 {
	for p > math.Pi {
		p -= 2 * math.Pi
	}
	for p < -math.Pi {
		p += 2 * math.Pi
	}
	return p
}

func overlapAdd(cs *channelState) {
	for i, v := range cs.synth {
		if i < len(cs.overlapBuf) {
			cs.overlapBuf[i] += v
		}
	}
}

func advanceOverlap(cs *channelState) {
	copy(cs.overlapBuf, cs.overlapBuf[Hop:])
	for i := len(cs.overlapBuf) - Hop; i < len(cs.overlapBuf); i++ {
		cs.overlapBuf[i] = 0
	}
}

func toFloat32(dst []float32, src []float64) []float32 {
	for i, v := range src {
		dst[i] = float32(v)
	}
	return dst
}

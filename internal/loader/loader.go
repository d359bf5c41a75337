// Package loader implements the sample-loading pipeline: decode any
// supported file, resample to the engine's rate, map to the engine's
// channel count, and publish an immutable sample.Buffer, reporting
// staged progress along the way. Grounded on the decode -> resample ->
// publish shape used by drgolem-musictools' player and generalized
// with the FFT resampler from internal/dsp/resample.
package loader

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/padsampler/engine/internal/dsp/resample"
	"github.com/padsampler/engine/internal/loader/decode"
	"github.com/padsampler/engine/internal/sample"
)

// Stage identifies which part of the pipeline a Progress event refers
// to.
type Stage int

const (
	StageDecoding Stage = iota
	StageResampling
	StageChannelMapping
	StageAnalyzing
	StagePublishing
)

// Progress is emitted via the onProgress callback passed to Load.
type Progress struct {
	Stage   Stage
	Percent float64 // unified [0,1] over the whole load
	Force   bool    // stage-start/stage-end events bypass rate limiting
}

// ErrUnsupportedChannelMap is returned when the source and target
// channel counts are neither equal, 1->2, nor 2->1.
var ErrUnsupportedChannelMap = errors.New("loader: unsupported channel mapping")

// ProgressFunc receives staged progress during Load. It must not block
// for long; it runs on the worker thread, never the audio thread.
type ProgressFunc func(Progress)

const progressInterval = 100 * time.Millisecond

// emitter rate-limits progress emissions to one per ~100ms, always
// letting forced (stage boundary) events through.
type emitter struct {
	cb   ProgressFunc
	last time.Time
}

func (e *emitter) emit(stage Stage, percent float64, force bool) {
	if e.cb == nil {
		return
	}
	if percent < 0 {
		percent = 0
	} else if percent > 1 {
		percent = 1
	}
	now := time.Now()
	if !force && now.Sub(e.last) < progressInterval {
		return
	}
	e.last = now
	e.cb(Progress{Stage: stage, Percent: percent, Force: force})
}

// stageWeightsResample gives the [start, end) fraction of the unified percent
// occupied by each stage when resampling is required.
var stageWeightsResample = map[Stage][2]float64{
	StageDecoding:       {0.00, 0.10},
	StageResampling:     {0.10, 0.20},
	StageChannelMapping: {0.20, 0.25},
	StageAnalyzing:      {0.25, 0.95},
	StagePublishing:     {0.95, 1.00},
}

// stageWeightsNoResample collapses the resampling segment to a point
// when the source and target rates already match.
var stageWeightsNoResample = map[Stage][2]float64{
	StageDecoding:       {0.00, 0.10},
	StageResampling:     {0.10, 0.10},
	StageChannelMapping: {0.10, 0.15},
	StageAnalyzing:      {0.15, 0.95},
	StagePublishing:     {0.95, 1.00},
}

func unified(weights map[Stage][2]float64, stage Stage, stageFrac float64) float64 {
	w := weights[stage]
	if stageFrac < 0 {
		stageFrac = 0
	} else if stageFrac > 1 {
		stageFrac = 1
	}
	return w[0] + (w[1]-w[0])*stageFrac
}

// Load runs the full decode/resample/channel-map/publish pipeline for
// path, producing a sample.Buffer with targetChannels channels at
// targetRate Hz. analyze runs during the Analyzing stage if non-nil; the
// fractions it passes to report are folded into the unified progress,
// and a non-nil error it returns aborts the load. Its results are
// otherwise opaque to this package.
func Load(path string, targetChannels int, targetRate int, onProgress ProgressFunc, analyze func(samples []float32, channels, rate int, report func(float64)) error) (*sample.Buffer, error) {
	e := &emitter{cb: onProgress}

	src, err := decode.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer src.Close()

	srcRate := src.SampleRate()
	srcChannels := src.Channels()
	if srcRate <= 0 || srcChannels <= 0 {
		return nil, decode.ErrMissingMetadata
	}

	needsResample := srcRate != targetRate
	weights := stageWeightsNoResample
	if needsResample {
		weights = stageWeightsResample
	}
	if onProgress != nil {
		e.cb = func(p Progress) {
			p.Percent = unified(weights, p.Stage, p.Percent)
			onProgress(p)
		}
	}

	decoded, err := decodeAll(src, srcChannels, e, weights)
	if err != nil {
		return nil, fmt.Errorf("loader: decode %s: %w", path, err)
	}

	resampled := decoded
	if needsResample {
		resampled, err = resampleAll(decoded, srcChannels, float64(srcRate), float64(targetRate), e, weights)
		if err != nil {
			return nil, fmt.Errorf("loader: resample %s: %w", path, err)
		}
	} else {
		e.emit(StageResampling, 1, true)
	}

	mapped, err := channelMap(resampled, srcChannels, targetChannels)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}
	e.emit(StageChannelMapping, 1, true)

	e.emit(StageAnalyzing, 0, true)
	if analyze != nil {
		report := func(frac float64) {
			e.emit(StageAnalyzing, frac, false)
		}
		if err := analyze(mapped, targetChannels, targetRate, report); err != nil {
			return nil, fmt.Errorf("loader: analyze %s: %w", path, err)
		}
	}
	e.emit(StageAnalyzing, 1, true)

	e.emit(StagePublishing, 0, true)
	buf := sample.New(targetChannels, targetRate, mapped)
	e.emit(StagePublishing, 1, true)

	return buf, nil
}

// decodeAll pulls packets until EOF (UnexpectedEOF counts as clean
// EOF, per the loader's decode-loop policy), accumulating interleaved
// float samples and reporting decode progress against TotalFrames when
// available.
func decodeAll(src decode.Source, channels int, e *emitter, weights map[Stage][2]float64) ([]float32, error) {
	total := src.TotalFrames()
	chunk := make([]float32, 4096*channels)
	var out []float32
	decodedFrames := 0

	e.emit(StageDecoding, 0, true)
	for {
		n, err := src.ReadSamples(chunk)
		if n > 0 {
			out = append(out, chunk[:n*channels]...)
			decodedFrames += n
			if total > 0 {
				e.emit(StageDecoding, float64(decodedFrames)/float64(total), false)
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	e.emit(StageDecoding, 1, true)
	return out, nil
}

// resampleAll drives the fixed-chunk FFT resampler manually so progress
// can be reported per chunk, discards the resampler's output delay,
// and flushes the tail with zero-length partial chunks until the
// expected output length is reached.
func resampleAll(interleaved []float32, channels int, srcRate, dstRate float64, e *emitter, weights map[Stage][2]float64) ([]float32, error) {
	r := resample.New(channels, srcRate, dstRate)

	frames := len(interleaved) / channels
	planarIn := make([][]float64, channels)
	for c := range planarIn {
		planarIn[c] = make([]float64, resample.ChunkSize)
	}
	planarOut := make([][]float64, channels)
	for c := range planarOut {
		planarOut[c] = make([]float64, r.OutputLen())
	}

	expected := r.ExpectedOutputLen(frames)
	discard := r.OutputDelay

	outInterleaved := make([]float32, 0, expected*channels)

	e.emit(StageResampling, 0, true)

	readPos := 0
	produced := 0
	for produced-discard < expected || readPos < frames {
		n := 0
		for c := 0; c < channels; c++ {
			buf := planarIn[c]
			for i := range buf {
				buf[i] = 0
			}
		}
		if readPos < frames {
			n = resample.ChunkSize
			if readPos+n > frames {
				n = frames - readPos
			}
			for c := 0; c < channels; c++ {
				for i := 0; i < n; i++ {
					planarIn[c][i] = float64(interleaved[(readPos+i)*channels+c])
				}
			}
		}

		r.Process(planarIn, planarOut)
		produced += r.OutputLen()
		readPos += n

		// Skip the leading discard frames of warm-up output.
		start := 0
		if discard > 0 {
			if discard >= r.OutputLen() {
				discard -= r.OutputLen()
				start = r.OutputLen()
			} else {
				start = discard
				discard = 0
			}
		}
		for i := start; i < r.OutputLen(); i++ {
			if len(outInterleaved)/channels >= expected {
				break
			}
			for c := 0; c < channels; c++ {
				outInterleaved = append(outInterleaved, float32(planarOut[c][i]))
			}
		}

		if total := frames; total > 0 {
			frac := math.Min(1, float64(readPos)/float64(total))
			e.emit(StageResampling, frac, false)
		}

		if n == 0 && readPos >= frames && len(outInterleaved)/channels >= expected {
			break
		}
	}

	e.emit(StageResampling, 1, true)
	return outInterleaved, nil
}

// channelMap maps srcChannels interleaved samples to dstChannels:
// identity when equal, duplication for 1->2, averaging for 2->1. Any
// other combination is unsupported.
func channelMap(interleaved []float32, srcChannels, dstChannels int) ([]float32, error) {
	if srcChannels == dstChannels {
		return interleaved, nil
	}
	frames := len(interleaved) / srcChannels

	switch {
	case srcChannels == 1 && dstChannels == 2:
		out := make([]float32, frames*2)
		for i := 0; i < frames; i++ {
			v := interleaved[i]
			out[i*2] = v
			out[i*2+1] = v
		}
		return out, nil
	case srcChannels == 2 && dstChannels == 1:
		out := make([]float32, frames)
		for i := 0; i < frames; i++ {
			out[i] = (interleaved[i*2] + interleaved[i*2+1]) / 2
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d->%d", ErrUnsupportedChannelMap, srcChannels, dstChannels)
	}
}

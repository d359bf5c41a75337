// Package analyzer is the opaque BPM/key/beat-grid analysis
// collaborator: an external algorithm taking mono PCM to
// {bpm, key, beat_grid}. This package provides a concrete, simple
// implementation (autocorrelation-based tempo estimate, a placeholder
// key, and a derived beat grid) behind the same interface a more
// sophisticated analyzer would implement, so the rest of the engine
// never depends on the algorithm's internals.
package analyzer

import "math"

// BeatGrid describes the estimated beat positions of a track in
// seconds, optionally with downbeats and bar boundaries.
type BeatGrid struct {
	Beats     []float64
	Downbeats []float64
	Bars      []float64 // nil if bar detection was not attempted
}

// Result is the analyzer's output for one sample.
type Result struct {
	BPM      float64
	Key      string
	BeatGrid BeatGrid
}

// Analyze estimates tempo, key, and beat grid from mono PCM at
// sampleRate Hz. report, if non-nil, receives fractional progress in
// [0,1] as the analysis proceeds; it is called from the worker thread,
// never the audio thread.
func Analyze(mono []float32, sampleRate int, report func(float64)) Result {
	if report != nil {
		report(0)
	}
	bpm := estimateBPM(mono, sampleRate, report)
	if report != nil {
		report(1)
	}
	grid := deriveBeatGrid(bpm, len(mono), sampleRate)
	return Result{
		BPM:      bpm,
		Key:      "C", // key detection is intentionally unimplemented; placeholder
		BeatGrid: grid,
	}
}

// estimateBPM uses a coarse autocorrelation of the rectified, downsampled
// energy envelope to estimate tempo in the plausible 60-200 BPM range.
func estimateBPM(mono []float32, sampleRate int, report func(float64)) float64 {
	if len(mono) == 0 || sampleRate <= 0 {
		return 0
	}

	hop := sampleRate / 100 // 10ms energy frames
	if hop < 1 {
		hop = 1
	}
	numFrames := len(mono) / hop
	if numFrames < 2 {
		return 0
	}

	envelope := make([]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		var sum float64
		start := i * hop
		end := start + hop
		if end > len(mono) {
			end = len(mono)
		}
		for j := start; j < end; j++ {
			v := float64(mono[j])
			sum += v * v
		}
		envelope[i] = math.Sqrt(sum / float64(end-start+1))
		if report != nil && numFrames > 0 {
			report(float64(i) / float64(numFrames))
		}
	}

	framesPerSecond := float64(sampleRate) / float64(hop)
	minLag := int(framesPerSecond * 60.0 / 200.0) // 200 BPM
	maxLag := int(framesPerSecond * 60.0 / 60.0)  // 60 BPM
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= numFrames {
		maxLag = numFrames - 1
	}
	if maxLag <= minLag {
		return 120 // not enough data to estimate; fall back to a common default
	}

	bestLag := minLag
	bestScore := -1.0
	for lag := minLag; lag <= maxLag; lag++ {
		var score float64
		for i := 0; i+lag < numFrames; i++ {
			score += envelope[i] * envelope[i+lag]
		}
		if score > bestScore {
			bestScore = score
			bestLag = lag
		}
	}

	bpm := 60.0 * framesPerSecond / float64(bestLag)
	for bpm < 70 {
		bpm *= 2
	}
	for bpm > 180 {
		bpm /= 2
	}
	return bpm
}

// deriveBeatGrid produces evenly spaced beats at the estimated tempo
// across the sample's duration, with every 4th beat marked a downbeat.
func deriveBeatGrid(bpm float64, numSamples, sampleRate int) BeatGrid {
	if bpm <= 0 || sampleRate <= 0 {
		return BeatGrid{}
	}
	durationS := float64(numSamples) / float64(sampleRate)
	beatPeriod := 60.0 / bpm

	var grid BeatGrid
	for t := 0.0; t < durationS; t += beatPeriod {
		grid.Beats = append(grid.Beats, t)
	}
	for i, b := range grid.Beats {
		if i%4 == 0 {
			grid.Downbeats = append(grid.Downbeats, b)
		}
	}
	for i := 0; i+3 < len(grid.Downbeats); i += 4 {
		grid.Bars = append(grid.Bars, grid.Downbeats[i])
	}
	return grid
}

// Package mixer implements the engine's real-time state machine: the
// sample bank, the voice pool, per-pad parameters, global parameters,
// and the render entry point invoked from the audio callback. Nothing
// in this package allocates, locks a mutex, or touches the filesystem
// once constructed; state mutation happens only through ControlMessage
// application between blocks.
package mixer

import (
	"math"

	"github.com/padsampler/engine/internal/ring"
	"github.com/padsampler/engine/internal/sample"
	"github.com/padsampler/engine/internal/voice"
)

const (
	minSpeed = 0.5
	maxSpeed = 2.0
	minGain  = 0.0
	maxGain  = 1.0
)

// padParams holds the per-pad, mixer-owned parameters. Stored as
// parallel fixed arrays keyed by pad id, not a map, so no pad ever
// requires an allocation to acquire or mutate.
type padParams struct {
	bpm         float64 // 0 means unset
	hasBPM      bool
	gain        float64
	eqLowDB     float64
	eqMidDB     float64
	eqHighDB    float64
	loopStart   int
	loopEnd     int // exclusive; -1 means unset (full sample)
	peak        float64
	playhead    int
	playheadSet bool
}

func defaultPadParams() padParams {
	return padParams{gain: 1.0, loopEnd: -1}
}

// Mixer is the engine's render-time state. Constructed once at stream
// start with fixed-size pools; never reallocates afterward.
type Mixer struct {
	Channels   int
	SampleRate float64

	masterVolume float64
	globalSpeed  float64
	bpmLock      bool
	keyLock      bool
	masterBPM    float64
	hasMasterBPM bool

	bank   []*sample.Buffer
	pads   []padParams
	voices []*voice.Voice

	audioOut *ring.AudioRing
}

// New constructs a mixer with numPads bank slots and a voice pool of
// size numVoices, for the given channel count and sample rate.
func New(channels int, sampleRate float64, numPads, numVoices int, audioOut *ring.AudioRing) *Mixer {
	m := &Mixer{
		Channels:     channels,
		SampleRate:   sampleRate,
		masterVolume: 1.0,
		globalSpeed:  1.0,
		bank:         make([]*sample.Buffer, numPads),
		pads:         make([]padParams, numPads),
		voices:       make([]*voice.Voice, numVoices),
		audioOut:     audioOut,
	}
	for i := range m.pads {
		m.pads[i] = defaultPadParams()
	}
	for i := range m.voices {
		m.voices[i] = voice.New(channels, sampleRate)
	}
	return m
}

func (m *Mixer) validPad(id int) bool {
	return id >= 0 && id < len(m.pads)
}

// ApplyControl applies one ControlMessage to mixer state. Called only
// from the audio thread, between render calls, never allocates.
func (m *Mixer) ApplyControl(msg ring.ControlMessage) {
	switch msg.Kind {
	case ring.CtrlPing:
		m.pushAudio(ring.AudioMessage{Kind: ring.AudioPong})

	case ring.CtrlLoadSample:
		if !m.validPad(msg.PadID) || msg.Sample == nil || msg.Sample.Channels() != m.Channels {
			return
		}
		old := m.bank[msg.PadID]
		m.bank[msg.PadID] = msg.Sample
		if old != nil {
			old.Release()
		}

	case ring.CtrlPlaySample:
		m.playSample(msg.PadID, msg.F1)

	case ring.CtrlStopSample:
		m.stopSample(msg.PadID)

	case ring.CtrlStopAll:
		for _, v := range m.voices {
			if v.Active {
				v.Stop()
			}
		}

	case ring.CtrlUnloadSample:
		if !m.validPad(msg.PadID) {
			return
		}
		m.stopSample(msg.PadID)
		if b := m.bank[msg.PadID]; b != nil {
			b.Release()
		}
		m.bank[msg.PadID] = nil

	case ring.CtrlSetVolume:
		if v := msg.F1; finite(v) {
			m.masterVolume = clamp(v, minGain, maxGain)
		}

	case ring.CtrlSetSpeed:
		if v := msg.F1; finite(v) {
			m.globalSpeed = clamp(v, minSpeed, maxSpeed)
		}

	case ring.CtrlSetMasterBpm:
		if v := msg.F1; finite(v) && v > 0 {
			m.masterBPM = v
			m.hasMasterBPM = true
		}

	case ring.CtrlClearMasterBpm:
		m.hasMasterBPM = false
		m.masterBPM = 0

	case ring.CtrlSetBpmLock:
		m.bpmLock = msg.B1
		if !m.bpmLock {
			m.hasMasterBPM = false
			m.masterBPM = 0
		}

	case ring.CtrlSetKeyLock:
		m.keyLock = msg.B1

	case ring.CtrlSetPadBpm:
		if !m.validPad(msg.PadID) {
			return
		}
		if v := msg.F1; finite(v) && v > 0 {
			m.pads[msg.PadID].bpm = v
			m.pads[msg.PadID].hasBPM = true
		}

	case ring.CtrlSetPadGain:
		if !m.validPad(msg.PadID) {
			return
		}
		if v := msg.F1; finite(v) {
			m.pads[msg.PadID].gain = clamp(v, minGain, maxGain)
		}

	case ring.CtrlSetPadEq:
		if !m.validPad(msg.PadID) {
			return
		}
		if finite(msg.F1) && finite(msg.F2) && finite(msg.F3) {
			p := &m.pads[msg.PadID]
			p.eqLowDB = clamp(msg.F1, -12, 12)
			p.eqMidDB = clamp(msg.F2, -12, 12)
			p.eqHighDB = clamp(msg.F3, -12, 12)
		}

	case ring.CtrlSetPadLoopRegion:
		if !m.validPad(msg.PadID) {
			return
		}
		if finite(msg.F1) && msg.F1 >= 0 {
			p := &m.pads[msg.PadID]
			p.loopStart = int(msg.F1)
			if msg.HasF2 && finite(msg.F2) && msg.F2 >= 0 {
				p.loopEnd = int(msg.F2)
			} else if !msg.HasF2 {
				p.loopEnd = -1
			}
		}
	}
}

func (m *Mixer) playSample(id int, velocity float64) {
	if !m.validPad(id) || !finite(velocity) || velocity < 0 || velocity > 1 {
		return
	}
	buf := m.bank[id]
	if buf == nil {
		return
	}
	var slot *voice.Voice
	for _, v := range m.voices {
		if !v.Active {
			slot = v
			break
		}
	}
	if slot == nil {
		return // voice cap reached; silently drop
	}
	ratio := m.resolveTempoRatio(id)
	start := m.pads[id].loopStart
	if start < 0 {
		start = 0
	}
	if n := buf.FrameCount(); start >= n && n > 0 {
		start = start % n
	}
	slot.Start(id, buf.Retain(), start, velocity, ratio)
}

func (m *Mixer) stopSample(id int) {
	for _, v := range m.voices {
		if v.Active && v.SampleID == id {
			v.Stop()
		}
	}
}

// resolveTempoRatio starts from the global speed, overriding it with
// masterBPM/padBPM when BPM-locked and both are set; non-finite results
// fall back to 1.0, then the result is clamped to the speed range.
func (m *Mixer) resolveTempoRatio(padID int) float64 {
	ratio := m.globalSpeed
	if m.bpmLock && m.hasMasterBPM && m.pads[padID].hasBPM && m.pads[padID].bpm > 0 {
		ratio = m.masterBPM / m.pads[padID].bpm
	}
	if !finite(ratio) {
		ratio = 1.0
	}
	return clamp(ratio, minSpeed, maxSpeed)
}

// transposeSemitones implements the key-lock pitch policy: cancel the
// pitch shift pure tempo scaling would induce, or apply none.
func (m *Mixer) transposeSemitones(tempoRatio float64) float64 {
	if !m.keyLock {
		return 0
	}
	return -12 * math.Log2(tempoRatio)
}

func (m *Mixer) pushAudio(msg ring.AudioMessage) {
	if m.audioOut != nil {
		m.audioOut.Push(msg)
	}
}

// Render fills out (interleaved, m.Channels channels, len(out)/m.Channels
// frames) and peaks (len == len(m.pads)) by mixing every active voice.
// Never allocates, never blocks, never panics on malformed voice state
// — such voices are silently stopped instead.
func (m *Mixer) Render(out []float32, peaks []float64) {
	for i := range out {
		out[i] = 0
	}
	for i := range peaks {
		peaks[i] = 0
	}
	for i := range m.pads {
		m.pads[i].playheadSet = false
	}
	frames := 0
	if m.Channels > 0 {
		frames = len(out) / m.Channels
	}

	for _, v := range m.voices {
		if !v.Active {
			continue
		}
		if v.Sample == nil || v.Sample.FrameCount() == 0 {
			v.Stop()
			continue
		}
		if v.Paused {
			continue
		}
		m.renderVoice(v, out, peaks, frames)
	}
}

func (m *Mixer) renderVoice(v *voice.Voice, out []float32, peaks []float64, frames int) {
	id := v.SampleID
	buf := v.Sample
	sampleFrames := buf.FrameCount()

	targetRatio := m.resolveTempoRatio(id)
	ratio := v.SmoothTempoRatio(targetRatio)
	transpose := m.transposeSemitones(ratio)

	n := int(math.Round(float64(frames) * ratio))
	if n < 1 {
		n = 1
	} else if n > 1024 {
		n = 1024
	}

	loopStart := min(m.pads[id].loopStart, sampleFrames)
	if loopStart < 0 {
		loopStart = 0
	}
	loopEnd := m.pads[id].loopEnd
	if loopEnd < 0 {
		loopEnd = sampleFrames
	}
	if loopEnd > sampleFrames {
		loopEnd = sampleFrames
	}
	if loopEnd <= loopStart {
		loopStart, loopEnd = 0, sampleFrames
	}
	loopLen := loopEnd - loopStart
	if loopLen <= 0 {
		v.Stop()
		return
	}

	if v.FramePos < loopStart || v.FramePos >= loopEnd {
		v.FramePos = loopStart
	}

	inputBufs := v.Stretcher.InputBuffersMut(n)
	readPos := v.FramePos
	for i := 0; i < n; i++ {
		frame := loopStart + (readPos-loopStart+i)%loopLen
		for c := 0; c < m.Channels; c++ {
			inputBufs[c][i] = buf.At(frame, c)
		}
	}

	v.Stretcher.SetTransposeSemitones(transpose)
	v.Stretcher.Process(n, frames)
	outputBufs := v.Stretcher.OutputBuffers()

	p := &m.pads[id]
	v.EQ.SetGainsDB(p.eqLowDB, p.eqMidDB, p.eqHighDB)

	gain := v.Volume * m.masterVolume * m.pads[id].gain
	var peak float64
	for i := 0; i < frames && i < len(outputBufs[0]); i++ {
		for c := 0; c < m.Channels; c++ {
			s := float64(outputBufs[c][i])
			s = v.EQ.ProcessSample(c, s)
			s *= gain
			idx := i*m.Channels + c
			if idx < len(out) {
				out[idx] += float32(s)
			}
			if a := math.Abs(s); a > peak {
				peak = a
			}
		}
	}
	if id < len(peaks) {
		peaks[id] = peak
	}

	v.FramePos = loopStart + (readPos-loopStart+n)%loopLen
	m.pads[id].playhead = v.FramePos
	m.pads[id].playheadSet = true
}

// PlayheadFrame returns the last rendered playhead for pad id, and
// whether it has been set since the last render.
func (m *Mixer) PlayheadFrame(id int) (int, bool) {
	if !m.validPad(id) {
		return 0, false
	}
	return m.pads[id].playhead, m.pads[id].playheadSet
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Package engine implements the thread-safe external API over the
// mixer/audiohost/loader/cache/analyzer collaborators: the facade that
// queues control messages, spawns loader/analysis workers, tracks
// loading/active-task sets, and maintains an off-thread shadow copy of
// each loaded sample.
package engine

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/padsampler/engine/internal/analyzer"
	"github.com/padsampler/engine/internal/audiohost"
	"github.com/padsampler/engine/internal/cache"
	"github.com/padsampler/engine/internal/config"
	"github.com/padsampler/engine/internal/loader"
	"github.com/padsampler/engine/internal/ring"
	"github.com/padsampler/engine/internal/sample"
)

type taskKey struct {
	padID int
	kind  TaskKind
}

// waveformCacheEntry caches the last computed envelope for a pad,
// keyed by the render parameters that produced it.
type waveformCacheEntry struct {
	widthPx      int
	startS, endS float64
	data         WaveformData
}

// WaveformData is the result of get_waveform_render_data.
type WaveformData struct {
	XAxisS []float64
	// Raw holds per-sample values when the requested range is shorter
	// than 2*widthPx; otherwise Raw is nil and Min/Max hold a
	// per-column envelope.
	Raw      []float64
	Min, Max []float64
}

// Engine is the thread-safe facade. Constructed once per run.
type Engine struct {
	cfg   *config.EngineConfig
	cache *cache.Manager

	host *audiohost.Host

	mu           sync.Mutex
	running      bool
	loading      map[int]bool
	activeTasks  map[taskKey]bool
	shadow       map[int]*sample.Buffer
	loadGen      map[int]int64
	waveformMemo map[int]*waveformCacheEntry
	playheads    map[int]float64
	meters       *peakTracker

	events eventQueue
}

// New constructs an Engine from cfg. The audio stream is not started
// until Run is called.
func New(cfg *config.EngineConfig) (*Engine, error) {
	cacheMgr, err := cache.New(cfg.SamplesDir)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:          cfg,
		cache:        cacheMgr,
		loading:      make(map[int]bool),
		activeTasks:  make(map[taskKey]bool),
		shadow:       make(map[int]*sample.Buffer),
		loadGen:      make(map[int]int64),
		waveformMemo: make(map[int]*waveformCacheEntry),
		playheads:    make(map[int]float64),
		meters:       newPeakTracker(),
	}, nil
}

// Run opens and starts the audio stream.
func (e *Engine) Run() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("%w: already running", ErrConcurrency)
	}
	host, err := audiohost.Open(audiohost.Config{
		Channels:            e.cfg.Channels,
		SampleRate:          e.cfg.SampleRate,
		NumPads:             e.cfg.NumPads,
		NumVoices:           e.cfg.VoicePoolSize,
		BufferFrames:        e.cfg.AudioBufferFrames,
		ControlRingCapacity: e.cfg.ControlRingCapacity,
		AudioRingCapacity:   e.cfg.AudioRingCapacity,
	})
	if err != nil {
		return err
	}
	if err := host.Start(); err != nil {
		host.Stop()
		return err
	}
	e.host = host
	e.running = true
	return nil
}

// ShutDown stops the audio stream.
func (e *Engine) ShutDown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.host.Stop()
	e.host = nil
	e.running = false
}

func (e *Engine) validPad(id int) bool {
	return id >= 0 && id < e.cfg.NumPads
}

func (e *Engine) push(msg ring.ControlMessage) error {
	e.mu.Lock()
	host := e.host
	running := e.running
	e.mu.Unlock()
	if !running {
		return ErrNotInitialized
	}
	if !host.ControlRing().Push(msg) {
		return ErrQueueFull
	}
	return nil
}

// LoadSampleAsync rejects if id is out of range or already loading;
// reserves the loading slot; clears the pad's shadow copy; spawns a
// worker running the full loader pipeline, optionally followed by
// analysis, ending with a ControlMessage::LoadSample publish. The
// returned task id correlates every Event the worker emits for this
// call.
func (e *Engine) LoadSampleAsync(id int, path string, runAnalysis bool) (string, error) {
	if !e.validPad(id) {
		return "", fmt.Errorf("%w: pad id %d out of range", ErrValidation, id)
	}

	e.mu.Lock()
	if e.loading[id] {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: pad %d already loading", ErrConcurrency, id)
	}
	e.loading[id] = true
	delete(e.shadow, id)
	delete(e.waveformMemo, id)
	e.loadGen[id]++
	gen := e.loadGen[id]
	e.mu.Unlock()

	taskID := NewTaskID()
	go e.runLoadWorker(id, path, runAnalysis, gen, taskID)
	return taskID, nil
}

func (e *Engine) runLoadWorker(id int, path string, runAnalysis bool, gen int64, taskID string) {
	defer func() {
		e.mu.Lock()
		delete(e.loading, id)
		e.mu.Unlock()
	}()

	e.events.push(Event{Kind: Started, PadID: id, TaskID: taskID})

	cachedPath, err := e.cache.Import(path)
	if err != nil {
		e.events.push(Event{Kind: Error, PadID: id, TaskID: taskID, Err: err.Error()})
		return
	}

	var analysisResult *AnalysisResult
	var analyzeFn func([]float32, int, int, func(float64)) error
	if runAnalysis {
		analyzeFn = func(mono []float32, channels, rate int, report func(float64)) error {
			analysisResult = runAnalyzer(mono, channels, rate, report)
			return nil
		}
	}

	onProgress := func(p loader.Progress) {
		e.events.push(Event{Kind: Progress, PadID: id, TaskID: taskID, Percent: p.Percent, Stage: stageName(p.Stage)})
	}

	buf, err := loader.Load(cachedPath, e.cfg.Channels, e.cfg.SampleRate, onProgress, analyzeFn)
	if err != nil {
		e.events.push(Event{Kind: Error, PadID: id, TaskID: taskID, Err: err.Error()})
		return
	}

	// A second load issued after this one started supersedes it: skip
	// publishing stale data. The worker still ran to completion.
	e.mu.Lock()
	superseded := e.loadGen[id] != gen
	if !superseded {
		e.shadow[id] = buf.Retain()
	}
	e.mu.Unlock()
	if superseded {
		buf.Release()
		return
	}

	_ = e.push(ring.ControlMessage{Kind: ring.CtrlLoadSample, PadID: id, Sample: buf})

	e.events.push(Event{
		Kind:       Success,
		PadID:      id,
		TaskID:     taskID,
		DurationS:  float64(buf.FrameCount()) / float64(e.cfg.SampleRate),
		CachedPath: cachedPath,
		Analysis:   analysisResult,
	})
}

func stageName(s loader.Stage) string {
	switch s {
	case loader.StageDecoding:
		return "decoding"
	case loader.StageResampling:
		return "resampling"
	case loader.StageChannelMapping:
		return "channel_mapping"
	case loader.StageAnalyzing:
		return "analyzing"
	case loader.StagePublishing:
		return "publishing"
	default:
		return "unknown"
	}
}

func runAnalyzer(mono []float32, channels, rate int, report func(float64)) *AnalysisResult {
	result := analyzer.Analyze(toMono(mono, channels), rate, report)
	return &AnalysisResult{
		BPM:       result.BPM,
		Key:       result.Key,
		Beats:     result.BeatGrid.Beats,
		Downbeats: result.BeatGrid.Downbeats,
		Bars:      result.BeatGrid.Bars,
	}
}

func toMono(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// AnalyzeSampleAsync rejects if id is loading, already analyzing, or
// has no shadow copy; spawns a worker emitting TaskStarted/Progress/
// Success/Error. The returned task id correlates every Event the
// worker emits for this call.
func (e *Engine) AnalyzeSampleAsync(id int) (string, error) {
	if !e.validPad(id) {
		return "", fmt.Errorf("%w: pad id %d out of range", ErrValidation, id)
	}
	key := taskKey{padID: id, kind: TaskAnalyze}

	e.mu.Lock()
	if e.loading[id] {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: pad %d is loading", ErrConcurrency, id)
	}
	if e.activeTasks[key] {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: pad %d already analyzing", ErrConcurrency, id)
	}
	buf, ok := e.shadow[id]
	if !ok {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: pad %d has no shadow copy", ErrValidation, id)
	}
	e.activeTasks[key] = true
	clone := buf.Retain()
	e.mu.Unlock()

	taskID := NewTaskID()
	go e.runAnalyzeWorker(id, clone, taskID)
	return taskID, nil
}

func (e *Engine) runAnalyzeWorker(id int, buf *sample.Buffer, taskID string) {
	defer func() {
		buf.Release()
		e.mu.Lock()
		delete(e.activeTasks, taskKey{padID: id, kind: TaskAnalyze})
		e.mu.Unlock()
	}()

	e.events.push(Event{Kind: TaskStarted, PadID: id, Task: TaskAnalyze, TaskID: taskID})

	mono := toMono(frames(buf), buf.Channels())
	report := func(frac float64) {
		e.events.push(Event{Kind: TaskProgress, PadID: id, Task: TaskAnalyze, TaskID: taskID, Percent: frac})
	}
	result := runAnalyzer(mono, 1, buf.SampleRate(), report)

	e.events.push(Event{Kind: TaskSuccess, PadID: id, Task: TaskAnalyze, TaskID: taskID, Analysis: result})
}

func frames(buf *sample.Buffer) []float32 {
	n := buf.FrameCount() * buf.Channels()
	out := make([]float32, n)
	for f := 0; f < buf.FrameCount(); f++ {
		for c := 0; c < buf.Channels(); c++ {
			out[f*buf.Channels()+c] = buf.At(f, c)
		}
	}
	return out
}

// PollEvent returns at most one pending loader/task event,
// non-blocking.
func (e *Engine) PollEvent() (Event, bool) {
	return e.events.pop()
}

// PollAudioEvent drains at most one pending message from the
// audio->control ring, translating it to an AudioEvent and folding
// PadPeak/PadPlayhead readings into the facade's meter/playhead state
// as a side effect. Returns false once the ring is empty for this
// call; the caller should loop until false to fully drain a block's
// worth of messages.
func (e *Engine) PollAudioEvent() (AudioEvent, bool) {
	e.mu.Lock()
	host := e.host
	running := e.running
	e.mu.Unlock()
	if !running {
		return AudioEvent{}, false
	}

	msg, ok := host.AudioRing().Pop()
	if !ok {
		return AudioEvent{}, false
	}

	evt := AudioEvent{Kind: AudioEventKind(msg.Kind), PadID: msg.PadID, Value: msg.Value}
	switch msg.Kind {
	case ring.AudioPadPeak:
		e.mu.Lock()
		e.meters.observe(msg.PadID, msg.Value, time.Now())
		e.mu.Unlock()
	case ring.AudioPadPlayhead:
		e.mu.Lock()
		e.playheads[msg.PadID] = msg.Value
		e.mu.Unlock()
	}
	return evt, true
}

// GetPadPeak returns pad id's decaying meter value, falling back to
// 0 for a pad that has never reported a peak.
func (e *Engine) GetPadPeak(id int) float64 {
	if !e.validPad(id) {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.meters.value(id, time.Now())
}

// GetPadPlayhead returns pad id's last-reported playhead position in
// seconds, or 0 if none has been reported.
func (e *Engine) GetPadPlayhead(id int) float64 {
	if !e.validPad(id) {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playheads[id]
}

// PlaySample validates and enqueues a PlaySample control message.
func (e *Engine) PlaySample(id int, velocity float64) error {
	if !e.validPad(id) || !finite(velocity) || velocity < 0 || velocity > 1 {
		return ErrValidation
	}
	return e.push(ring.ControlMessage{Kind: ring.CtrlPlaySample, PadID: id, F1: velocity})
}

// StopSample enqueues a StopSample control message for id.
func (e *Engine) StopSample(id int) error {
	if !e.validPad(id) {
		return ErrValidation
	}
	return e.push(ring.ControlMessage{Kind: ring.CtrlStopSample, PadID: id})
}

// StopAll enqueues a StopAll control message.
func (e *Engine) StopAll() error {
	return e.push(ring.ControlMessage{Kind: ring.CtrlStopAll})
}

// UnloadSample enqueues an UnloadSample control message and clears the
// pad's shadow copy and waveform cache.
func (e *Engine) UnloadSample(id int) error {
	if !e.validPad(id) {
		return ErrValidation
	}
	if err := e.push(ring.ControlMessage{Kind: ring.CtrlUnloadSample, PadID: id}); err != nil {
		return err
	}
	e.mu.Lock()
	if b, ok := e.shadow[id]; ok {
		b.Release()
		delete(e.shadow, id)
	}
	delete(e.waveformMemo, id)
	delete(e.playheads, id)
	delete(e.meters.pads, id)
	e.mu.Unlock()
	return nil
}

// SetVolume sets the master volume.
func (e *Engine) SetVolume(v float64) error {
	if !finite(v) || v < 0 || v > 1 {
		return ErrValidation
	}
	return e.push(ring.ControlMessage{Kind: ring.CtrlSetVolume, F1: v})
}

// SetSpeed sets the global speed.
func (e *Engine) SetSpeed(v float64) error {
	if !finite(v) || v < 0.5 || v > 2.0 {
		return ErrValidation
	}
	return e.push(ring.ControlMessage{Kind: ring.CtrlSetSpeed, F1: v})
}

// SetBpmLock toggles BPM lock.
func (e *Engine) SetBpmLock(on bool) error {
	return e.push(ring.ControlMessage{Kind: ring.CtrlSetBpmLock, B1: on})
}

// SetKeyLock toggles key lock.
func (e *Engine) SetKeyLock(on bool) error {
	return e.push(ring.ControlMessage{Kind: ring.CtrlSetKeyLock, B1: on})
}

// SetMasterBpm sets the master BPM used to resolve BPM-locked pads.
func (e *Engine) SetMasterBpm(bpm float64) error {
	if !finite(bpm) || bpm <= 0 {
		return ErrValidation
	}
	return e.push(ring.ControlMessage{Kind: ring.CtrlSetMasterBpm, F1: bpm})
}

// ClearMasterBpm unsets the master BPM; BPM-locked pads then play at
// the global speed.
func (e *Engine) ClearMasterBpm() error {
	return e.push(ring.ControlMessage{Kind: ring.CtrlClearMasterBpm})
}

// SetPadBpm sets pad id's BPM.
func (e *Engine) SetPadBpm(id int, bpm float64) error {
	if !e.validPad(id) || !finite(bpm) || bpm <= 0 {
		return ErrValidation
	}
	return e.push(ring.ControlMessage{Kind: ring.CtrlSetPadBpm, PadID: id, F1: bpm})
}

// SetPadGain sets pad id's linear gain.
func (e *Engine) SetPadGain(id int, gain float64) error {
	if !e.validPad(id) || !finite(gain) || gain < 0 || gain > 1 {
		return ErrValidation
	}
	return e.push(ring.ControlMessage{Kind: ring.CtrlSetPadGain, PadID: id, F1: gain})
}

// SetPadEq sets pad id's three band gains in dB, each in [-12, 12].
func (e *Engine) SetPadEq(id int, lowDB, midDB, highDB float64) error {
	if !e.validPad(id) {
		return ErrValidation
	}
	for _, v := range []float64{lowDB, midDB, highDB} {
		if !finite(v) || v < -12 || v > 12 {
			return ErrValidation
		}
	}
	return e.push(ring.ControlMessage{Kind: ring.CtrlSetPadEq, PadID: id, F1: lowDB, F2: midDB, F3: highDB})
}

// SetPadLoopRegion sets pad id's loop region. end is optional: pass
// hasEnd=false for "to end of sample".
func (e *Engine) SetPadLoopRegion(id int, startS float64, endS float64, hasEnd bool) error {
	if !e.validPad(id) || !finite(startS) || startS < 0 {
		return ErrValidation
	}
	if hasEnd && (!finite(endS) || endS < 0) {
		return ErrValidation
	}
	rate := float64(e.cfg.SampleRate)
	msg := ring.ControlMessage{Kind: ring.CtrlSetPadLoopRegion, PadID: id, F1: startS * rate, HasF2: hasEnd}
	if hasEnd {
		msg.F2 = endS * rate
	}
	return e.push(msg)
}

// GetWaveformRenderData computes (or returns a cached) envelope for
// pad id's shadow copy, across [startS, endS), for a widthPx-wide
// render target. Returns false if the pad is empty or the range is
// empty.
func (e *Engine) GetWaveformRenderData(id int, widthPx int, startS, endS float64) (WaveformData, bool) {
	if !e.validPad(id) || widthPx <= 0 || endS <= startS {
		return WaveformData{}, false
	}

	e.mu.Lock()
	buf, ok := e.shadow[id]
	if !ok {
		e.mu.Unlock()
		return WaveformData{}, false
	}
	if memo, ok := e.waveformMemo[id]; ok && memo.widthPx == widthPx && memo.startS == startS && memo.endS == endS {
		data := memo.data
		e.mu.Unlock()
		return data, true
	}
	clone := buf.Retain()
	e.mu.Unlock()
	defer clone.Release()

	rate := float64(clone.SampleRate())
	startFrame := int(startS * rate)
	endFrame := int(endS * rate)
	if startFrame < 0 {
		startFrame = 0
	}
	if endFrame > clone.FrameCount() {
		endFrame = clone.FrameCount()
	}
	if endFrame <= startFrame {
		return WaveformData{}, false
	}

	mono := make([]float64, endFrame-startFrame)
	ch := clone.Channels()
	for i := range mono {
		f := startFrame + i
		var sum float64
		for c := 0; c < ch; c++ {
			sum += float64(clone.At(f, c))
		}
		mono[i] = sum / float64(ch)
	}

	data := renderWaveform(mono, widthPx, startS, endS)

	e.mu.Lock()
	e.waveformMemo[id] = &waveformCacheEntry{widthPx: widthPx, startS: startS, endS: endS, data: data}
	e.mu.Unlock()

	return data, true
}

// renderWaveform returns raw samples when mono is shorter than
// 2*widthPx, otherwise a per-column min/max envelope.
func renderWaveform(mono []float64, widthPx int, startS, endS float64) WaveformData {
	n := len(mono)
	if n < 2*widthPx {
		xs := make([]float64, n)
		for i := range xs {
			xs[i] = startS + (endS-startS)*float64(i)/float64(n)
		}
		return WaveformData{XAxisS: xs, Raw: mono}
	}

	xs := make([]float64, widthPx)
	mins := make([]float64, widthPx)
	maxs := make([]float64, widthPx)
	for col := 0; col < widthPx; col++ {
		lo := col * n / widthPx
		hi := (col + 1) * n / widthPx
		if hi <= lo {
			hi = lo + 1
		}
		if hi > n {
			hi = n
		}
		mn, mx := mono[lo], mono[lo]
		for i := lo; i < hi; i++ {
			if mono[i] < mn {
				mn = mono[i]
			}
			if mono[i] > mx {
				mx = mono[i]
			}
		}
		mins[col], maxs[col] = mn, mx
		xs[col] = startS + (endS-startS)*float64(col)/float64(widthPx)
	}
	return WaveformData{XAxisS: xs, Min: mins, Max: maxs}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// NewTaskID generates a correlation id stamped onto every Event a
// LoadSampleAsync or AnalyzeSampleAsync call emits, letting a caller
// that issued several concurrent loads or analyses tell their event
// streams apart.
func NewTaskID() string {
	return uuid.NewString()
}

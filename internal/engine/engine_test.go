package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padsampler/engine/internal/config"
	"github.com/padsampler/engine/internal/loader"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ProjectDir = t.TempDir()
	cfg.SamplesDir = cfg.ProjectDir
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func TestControlMethodsRejectBeforeRun(t *testing.T) {
	e := newTestEngine(t)
	assert.ErrorIs(t, e.PlaySample(0, 1.0), ErrNotInitialized)
	assert.ErrorIs(t, e.StopSample(0), ErrNotInitialized)
	assert.ErrorIs(t, e.StopAll(), ErrNotInitialized)
	assert.ErrorIs(t, e.SetVolume(0.5), ErrNotInitialized)
}

func TestPlaySampleValidatesBeforeReachingHost(t *testing.T) {
	e := newTestEngine(t)
	assert.ErrorIs(t, e.PlaySample(-1, 0.5), ErrValidation)
	assert.ErrorIs(t, e.PlaySample(0, 1.5), ErrValidation)
	assert.ErrorIs(t, e.PlaySample(0, -0.1), ErrValidation)
}

func TestSetPadEqValidatesRange(t *testing.T) {
	e := newTestEngine(t)
	assert.ErrorIs(t, e.SetPadEq(0, -20, 0, 0), ErrValidation)
	assert.ErrorIs(t, e.SetPadEq(0, 0, 0, 20), ErrValidation)
	assert.ErrorIs(t, e.SetPadEq(999, 0, 0, 0), ErrValidation)
}

func TestSetMasterBpmRejectsNonPositive(t *testing.T) {
	e := newTestEngine(t)
	assert.ErrorIs(t, e.SetMasterBpm(0), ErrValidation)
	assert.ErrorIs(t, e.SetMasterBpm(-10), ErrValidation)
}

func TestLoadSampleAsyncRejectsBadPadID(t *testing.T) {
	e := newTestEngine(t)
	taskID, err := e.LoadSampleAsync(-1, "x.wav", false)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, taskID)
}

func TestAnalyzeSampleAsyncRejectsWithoutShadowCopy(t *testing.T) {
	e := newTestEngine(t)
	taskID, err := e.AnalyzeSampleAsync(0)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, taskID)
}

func TestGetWaveformRenderDataWithoutSampleReturnsFalse(t *testing.T) {
	e := newTestEngine(t)
	_, ok := e.GetWaveformRenderData(0, 100, 0, 1)
	assert.False(t, ok)
}

func TestGetPadPeakAndPlayheadDefaultToZero(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, 0.0, e.GetPadPeak(0))
	assert.Equal(t, 0.0, e.GetPadPlayhead(0))
}

func TestGetPadPeakOutOfRangeIsZero(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, 0.0, e.GetPadPeak(99999))
}

func TestPollEventEmptyQueueReturnsFalse(t *testing.T) {
	e := newTestEngine(t)
	_, ok := e.PollEvent()
	assert.False(t, ok)
}

func TestPollAudioEventWithoutRunningHostReturnsFalse(t *testing.T) {
	e := newTestEngine(t)
	_, ok := e.PollAudioEvent()
	assert.False(t, ok)
}

func TestStageNameCoversAllStages(t *testing.T) {
	assert.Equal(t, "decoding", stageName(loader.StageDecoding))
	assert.Equal(t, "resampling", stageName(loader.StageResampling))
	assert.Equal(t, "channel_mapping", stageName(loader.StageChannelMapping))
	assert.Equal(t, "analyzing", stageName(loader.StageAnalyzing))
	assert.Equal(t, "publishing", stageName(loader.StagePublishing))
}

func TestToMonoAveragesChannels(t *testing.T) {
	out := toMono([]float32{0, 2, 4, 6}, 2)
	assert.Equal(t, []float32{1, 5}, out)
}

func TestToMonoPassesThroughSingleChannel(t *testing.T) {
	in := []float32{1, 2, 3}
	assert.Equal(t, in, toMono(in, 1))
}

func TestRenderWaveformRawBelowThreshold(t *testing.T) {
	mono := []float64{0.1, 0.2, 0.3}
	data := renderWaveform(mono, 100, 0, 1)
	assert.Equal(t, mono, data.Raw)
	assert.Len(t, data.XAxisS, 3)
	assert.Nil(t, data.Min)
}

func TestRenderWaveformEnvelopeAboveThreshold(t *testing.T) {
	mono := make([]float64, 1000)
	for i := range mono {
		mono[i] = float64(i % 10)
	}
	data := renderWaveform(mono, 10, 0, 1)
	assert.Len(t, data.Min, 10)
	assert.Len(t, data.Max, 10)
	assert.Nil(t, data.Raw)
	for i := range data.Min {
		assert.LessOrEqual(t, data.Min[i], data.Max[i])
	}
}

func TestNewTaskIDProducesDistinctValues(t *testing.T) {
	a := NewTaskID()
	b := NewTaskID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelMapIdentity(t *testing.T) {
	in := []float32{1, 2, 3}
	out, err := channelMap(in, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestChannelMapMonoToStereoDuplicates(t *testing.T) {
	out, err := channelMap([]float32{1, 2}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 2, 2}, out)
}

func TestChannelMapStereoToMonoAverages(t *testing.T) {
	out, err := channelMap([]float32{0, 2, 4, 6}, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 5}, out)
}

func TestChannelMapUnsupportedCombination(t *testing.T) {
	_, err := channelMap([]float32{1, 2, 3, 4, 5, 6}, 3, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedChannelMap)
}

func TestStageWeightsResampleCoverUnitInterval(t *testing.T) {
	assert.Equal(t, [2]float64{0, 0.10}, stageWeightsResample[StageDecoding])
	assert.Equal(t, [2]float64{0.10, 0.20}, stageWeightsResample[StageResampling])
	assert.Equal(t, [2]float64{0.20, 0.25}, stageWeightsResample[StageChannelMapping])
	assert.Equal(t, [2]float64{0.25, 0.95}, stageWeightsResample[StageAnalyzing])
	assert.Equal(t, [2]float64{0.95, 1.00}, stageWeightsResample[StagePublishing])
}

// The no-resample case collapses Resampling to a zero-width point and
// shifts ChannelMapping/Analyzing earlier, per original_source's
// progress.rs.
func TestStageWeightsNoResampleCollapsesResamplingToAPoint(t *testing.T) {
	assert.Equal(t, [2]float64{0.00, 0.10}, stageWeightsNoResample[StageDecoding])
	w := stageWeightsNoResample[StageResampling]
	assert.Equal(t, w[0], w[1], "resampling stage has zero width when no resampling occurred")
	assert.Equal(t, [2]float64{0.10, 0.15}, stageWeightsNoResample[StageChannelMapping])
	assert.Equal(t, [2]float64{0.15, 0.95}, stageWeightsNoResample[StageAnalyzing])
	assert.Equal(t, [2]float64{0.95, 1.00}, stageWeightsNoResample[StagePublishing])
}

func TestUnifiedInterpolatesWithinStage(t *testing.T) {
	got := unified(stageWeightsResample, StageChannelMapping, 0.5)
	assert.InDelta(t, 0.225, got, 1e-12)
}

func TestUnifiedClampsFraction(t *testing.T) {
	assert.Equal(t, stageWeightsResample[StageDecoding][0], unified(stageWeightsResample, StageDecoding, -1))
	assert.Equal(t, stageWeightsResample[StageDecoding][1], unified(stageWeightsResample, StageDecoding, 2))
}

func TestEmitterRateLimitsUnlessForced(t *testing.T) {
	var got []Progress
	e := &emitter{cb: func(p Progress) { got = append(got, p) }}

	e.emit(StageDecoding, 0, true)
	e.emit(StageDecoding, 0.1, false)
	e.emit(StageDecoding, 0.2, false)
	e.emit(StageDecoding, 1, true)

	require.Len(t, got, 2, "rapid non-forced emits within the rate-limit window should be dropped, forced ones always pass")
	assert.True(t, got[0].Force)
	assert.True(t, got[1].Force)
}

func TestEmitterClampsPercent(t *testing.T) {
	var got Progress
	e := &emitter{cb: func(p Progress) { got = p }}
	e.emit(StageDecoding, 5, true)
	assert.Equal(t, 1.0, got.Percent)
	e.emit(StageDecoding, -5, true)
	assert.Equal(t, 0.0, got.Percent)
}

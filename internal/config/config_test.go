package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.validate())
	assert.Equal(t, 216, cfg.NumPads)
	assert.Equal(t, 32, cfg.VoicePoolSize)
	assert.Equal(t, 512, cfg.AudioBufferFrames)
}

func TestValidateRejectsBadChannelCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels = 3
	assert.Error(t, cfg.validate())
}

func TestValidateRejectsNonPositiveVoicePool(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VoicePoolSize = 0
	assert.Error(t, cfg.validate())
}

func TestValidateRejectsNonPositiveRingCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlRingCapacity = 0
	assert.Error(t, cfg.validate())
}

func TestValidateRejectsNonPositiveAudioBufferFrames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AudioBufferFrames = -1
	assert.Error(t, cfg.validate())
}

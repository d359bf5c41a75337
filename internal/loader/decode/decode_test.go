package decode

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestWAV(t *testing.T, path string, sampleRate, channels int, frames int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:   make([]int, frames*channels),
	}
	for i := range buf.Data {
		buf.Data[i] = (i % 100) - 50
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func TestOpenUnsupportedExtension(t *testing.T) {
	_, err := Open("clip.xyz")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestOpenWAVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.wav")
	writeTestWAV(t, path, 44100, 2, 2000)

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 44100, src.SampleRate())
	assert.Equal(t, 2, src.Channels())

	dst := make([]float32, 4096*2)
	total := 0
	for {
		n, err := src.ReadSamples(dst)
		total += n
		if err != nil {
			assert.True(t, errors.Is(err, io.EOF))
			break
		}
	}
	assert.Equal(t, 2000, total)
}

func TestIsCleanEOF(t *testing.T) {
	assert.True(t, isCleanEOF(io.EOF))
	assert.True(t, isCleanEOF(io.ErrUnexpectedEOF))
	assert.False(t, isCleanEOF(errors.New("disk on fire")))
}

package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSourceFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestImportCopiesIntoSamplesDir(t *testing.T) {
	srcDir := t.TempDir()
	samplesDir := filepath.Join(t.TempDir(), "samples")
	src := writeSourceFile(t, srcDir, "kick.wav", []byte("fake-pcm"))

	mgr, err := New(samplesDir)
	require.NoError(t, err)

	dest, err := mgr.Import(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(samplesDir, "kick.wav"), dest)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-pcm"), data)
}

func TestImportCollisionSafeRename(t *testing.T) {
	srcDir := t.TempDir()
	samplesDir := filepath.Join(t.TempDir(), "samples")
	mgr, err := New(samplesDir)
	require.NoError(t, err)

	first := writeSourceFile(t, srcDir, "kick.wav", []byte("one"))
	dest1, err := mgr.Import(first)
	require.NoError(t, err)

	second := writeSourceFile(t, filepath.Join(t.TempDir()), "kick.wav", []byte("two"))
	dest2, err := mgr.Import(second)
	require.NoError(t, err)

	assert.NotEqual(t, dest1, dest2)
	assert.Equal(t, filepath.Join(samplesDir, "kick_0.wav"), dest2)
}

func TestImportAlreadyWithinSamplesDirIsNotRecopied(t *testing.T) {
	samplesDir := filepath.Join(t.TempDir(), "samples")
	mgr, err := New(samplesDir)
	require.NoError(t, err)

	existing := writeSourceFile(t, samplesDir, "already-here.wav", []byte("x"))
	dest, err := mgr.Import(existing)
	require.NoError(t, err)
	assert.Equal(t, existing, dest)
}

func TestImportWritesManifestEntry(t *testing.T) {
	srcDir := t.TempDir()
	samplesDir := filepath.Join(t.TempDir(), "samples")
	mgr, err := New(samplesDir)
	require.NoError(t, err)

	src := writeSourceFile(t, srcDir, "snare.wav", []byte("data"))
	_, err = mgr.Import(src)
	require.NoError(t, err)

	entries := mgr.readManifest()
	entry, ok := entries["snare.wav"]
	require.True(t, ok)
	assert.Equal(t, src, entry.Source)
	assert.False(t, entry.ImportedAt.IsZero())
}

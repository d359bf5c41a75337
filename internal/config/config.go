// Package config provides configuration and CLI argument parsing for
// the pad sampler engine, following the flag-parsing/DefaultConfig
// shape used throughout this lineage.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// EngineConfig holds the engine's runtime configuration, populated
// from CLI flags or defaults.
type EngineConfig struct {
	// ProjectDir is the root directory for this project; SamplesDir is
	// derived from it as ProjectDir/samples.
	ProjectDir string
	SamplesDir string

	// Channels is the engine's fixed channel count (1 or 2).
	Channels int
	// SampleRate is the engine's output sample rate in Hz, fixed for
	// the lifetime of a run.
	SampleRate int

	// VoicePoolSize is the number of simultaneously playable voices.
	VoicePoolSize int
	// NumPads is the total addressable sample-bank size.
	NumPads int

	// ControlRingCapacity and AudioRingCapacity size the two SPSC
	// transport rings.
	ControlRingCapacity int
	AudioRingCapacity   int

	// AudioBufferFrames is the fixed device callback buffer size.
	AudioBufferFrames int

	Verbose bool
}

// DefaultConfig returns a configuration with the engine's standard
// dimensions: 216 pads (6 banks x 6x6 grid), 32 voices, 1024-capacity
// rings, 512-frame audio buffer.
func DefaultConfig() *EngineConfig {
	cwd, _ := os.Getwd()
	return &EngineConfig{
		ProjectDir:          cwd,
		SamplesDir:          filepath.Join(cwd, "samples"),
		Channels:            2,
		SampleRate:          48000,
		VoicePoolSize:       32,
		NumPads:             216,
		ControlRingCapacity: 1024,
		AudioRingCapacity:   1024,
		AudioBufferFrames:   512,
		Verbose:             false,
	}
}

// ParseFlags parses command-line flags and returns an EngineConfig.
func ParseFlags() (*EngineConfig, error) {
	cfg := DefaultConfig()

	flag.StringVar(&cfg.ProjectDir, "project-dir", cfg.ProjectDir, "Project root directory (samples/ is created beneath it)")
	flag.IntVar(&cfg.Channels, "channels", cfg.Channels, "Output channel count (1 or 2)")
	flag.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "Output sample rate in Hz; the device is opened at this rate")
	flag.IntVar(&cfg.VoicePoolSize, "voices", cfg.VoicePoolSize, "Number of simultaneous voices")
	flag.IntVar(&cfg.NumPads, "pads", cfg.NumPads, "Number of addressable sample-bank slots")
	flag.IntVar(&cfg.ControlRingCapacity, "control-ring-capacity", cfg.ControlRingCapacity, "Capacity of the control->audio ring")
	flag.IntVar(&cfg.AudioRingCapacity, "audio-ring-capacity", cfg.AudioRingCapacity, "Capacity of the audio->control ring")
	flag.IntVar(&cfg.AudioBufferFrames, "audio-buffer-frames", cfg.AudioBufferFrames, "Fixed device callback buffer size in frames")
	flag.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable verbose logging")

	flag.Parse()

	cfg.SamplesDir = filepath.Join(cfg.ProjectDir, "samples")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EngineConfig) validate() error {
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("config: channels must be 1 or 2, got %d", c.Channels)
	}
	if c.VoicePoolSize <= 0 {
		return fmt.Errorf("config: voices must be positive, got %d", c.VoicePoolSize)
	}
	if c.NumPads <= 0 {
		return fmt.Errorf("config: pads must be positive, got %d", c.NumPads)
	}
	if c.ControlRingCapacity <= 0 || c.AudioRingCapacity <= 0 {
		return fmt.Errorf("config: ring capacities must be positive")
	}
	if c.AudioBufferFrames <= 0 {
		return fmt.Errorf("config: audio-buffer-frames must be positive, got %d", c.AudioBufferFrames)
	}
	return nil
}

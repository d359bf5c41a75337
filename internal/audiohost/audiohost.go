// Package audiohost opens the default output device via malgo at the
// configured channel count and sample rate, and installs the
// callback that drains the control ring and drives the mixer's
// render loop, following the persistent-device/lock-free-callback
// pattern used by this lineage's audio I/O layer.
package audiohost

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"

	"github.com/gen2brain/malgo"

	"github.com/padsampler/engine/internal/mixer"
	"github.com/padsampler/engine/internal/ring"
)

// defaultBufferFrames is the device callback buffer size used when a
// Config requests a non-positive one.
const defaultBufferFrames = 512

// Host owns the malgo context/device and the mixer it drives.
type Host struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mixer *mixer.Mixer

	controlIn *ring.ControlRing
	audioOut  *ring.AudioRing

	channels     int
	sampleRate   int
	bufferFrames int

	outBuf []float32 // reused per callback, sized channels*bufferFrames
	peaks  []float64 // reused per callback, sized numPads
}

// Config bundles the inputs needed to open a stream.
type Config struct {
	Channels   int // stream channel count; anything but 1 or 2 becomes 2
	SampleRate int // stream sample rate; a non-positive value becomes 48000
	NumPads    int
	NumVoices  int

	// BufferFrames is the device callback's fixed buffer size; a
	// non-positive value falls back to defaultBufferFrames.
	BufferFrames int
	// ControlRingCapacity and AudioRingCapacity size the two SPSC
	// transport rings; a non-positive value falls back to the rings'
	// own default.
	ControlRingCapacity int
	AudioRingCapacity   int
}

// Open takes the stream's channel count and sample rate from cfg (with
// the fallbacks documented on Config); it does not query the default
// output device for its native format. It constructs a mixer for that
// configuration, creates the two transport rings, and installs the
// callback. The stream is
// not started until Start is called.
func Open(cfg Config) (*Host, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audiohost: init context: %w", err)
	}

	channels := cfg.Channels
	if channels != 1 && channels != 2 {
		channels = 2
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	bufferFrames := cfg.BufferFrames
	if bufferFrames <= 0 {
		bufferFrames = defaultBufferFrames
	}

	controlIn := ring.NewControlRing(cfg.ControlRingCapacity)
	audioOut := ring.NewAudioRing(cfg.AudioRingCapacity)
	mx := mixer.New(channels, float64(sampleRate), cfg.NumPads, cfg.NumVoices, audioOut)

	h := &Host{
		ctx:          ctx,
		mixer:        mx,
		controlIn:    controlIn,
		audioOut:     audioOut,
		channels:     channels,
		sampleRate:   sampleRate,
		bufferFrames: bufferFrames,
		outBuf:       make([]float32, channels*bufferFrames),
		peaks:        make([]float64, cfg.NumPads),
	}

	if err := h.initDevice(); err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, err
	}
	return h, nil
}

func (h *Host) initDevice() error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(h.channels)
	deviceConfig.SampleRate = uint32(h.sampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(h.bufferFrames)

	onSendFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		h.callback(pOutputSample, framecount)
	}

	device, err := malgo.InitDevice(h.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSendFrames})
	if err != nil {
		return fmt.Errorf("audiohost: init device: %w", err)
	}
	h.device = device
	return nil
}

// callback drains the control ring applying each message to the
// mixer, renders the next block, then pushes a few audio messages. It
// never allocates, never blocks, never panics.
func (h *Host) callback(pOutputSample []byte, framecount uint32) {
	for {
		msg, ok := h.controlIn.Pop()
		if !ok {
			break
		}
		h.mixer.ApplyControl(msg)
	}

	frames := int(framecount)
	need := frames * h.channels
	out := h.outBuf
	if need > len(out) {
		// A driver asking for more than the negotiated fixed buffer
		// size is a misconfiguration; degrade to silence for the
		// frames we cannot hold rather than writing out of bounds.
		frames = len(out) / h.channels
		need = frames * h.channels
	}
	out = out[:need]

	h.mixer.Render(out, h.peaks)

	for i := 0; i < need; i++ {
		binary.LittleEndian.PutUint32(pOutputSample[i*4:], math.Float32bits(out[i]))
	}
	for rest := need * 4; rest < len(pOutputSample); rest++ {
		pOutputSample[rest] = 0
	}

	h.emitAudioMessages()
}

// emitAudioMessages pushes per-pad peaks and playhead updates onto the
// audio->control ring. Push failures (ring full) are silently dropped,
// per the audio thread's failure semantics.
func (h *Host) emitAudioMessages() {
	for id, p := range h.peaks {
		if p <= 0 {
			continue
		}
		h.audioOut.Push(ring.AudioMessage{Kind: ring.AudioPadPeak, PadID: id, Value: p})
		if frame, ok := h.mixer.PlayheadFrame(id); ok {
			h.audioOut.Push(ring.AudioMessage{
				Kind:  ring.AudioPadPlayhead,
				PadID: id,
				Value: float64(frame) / h.mixer.SampleRate,
			})
		}
	}
}

// Start starts the device stream.
func (h *Host) Start() error {
	if err := h.device.Start(); err != nil {
		return fmt.Errorf("audiohost: start: %w", err)
	}
	log.Printf("audiohost: stream started, %d ch @ %d Hz, %d-frame buffer", h.channels, h.sampleRate, h.bufferFrames)
	return nil
}

// Stop stops and tears down the device and context.
func (h *Host) Stop() {
	if h.device != nil {
		h.device.Stop()
		h.device.Uninit()
		h.device = nil
	}
	if h.ctx != nil {
		_ = h.ctx.Uninit()
		h.ctx.Free()
		h.ctx = nil
	}
}

// ControlRing returns the control->audio ring endpoint for the control
// side to push into.
func (h *Host) ControlRing() *ring.ControlRing { return h.controlIn }

// AudioRing returns the audio->control ring endpoint for the control
// side to poll.
func (h *Host) AudioRing() *ring.AudioRing { return h.audioOut }

// Channels and SampleRate report the negotiated stream configuration.
func (h *Host) Channels() int   { return h.channels }
func (h *Host) SampleRate() int { return h.sampleRate }

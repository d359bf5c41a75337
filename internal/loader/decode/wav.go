package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

type wavSource struct {
	f       *os.File
	dec     *wav.Decoder
	buf     *audio.IntBuffer
	pos     int // read index into buf.Data, in samples (not frames)
	scale   float32
	maxDepth int32
}

func openWAV(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("not a valid WAV file")
	}
	dec.ReadInfo()
	if dec.SampleRate == 0 || dec.NumChans == 0 {
		f.Close()
		return nil, ErrMissingMetadata
	}

	depth := int32(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}
	maxDepth := int32(1) << (uint(depth) - 1)

	return &wavSource{
		f:   f,
		dec: dec,
		buf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: int(dec.NumChans), SampleRate: int(dec.SampleRate)},
			Data:   make([]int, 4096*int(dec.NumChans)),
		},
		maxDepth: maxDepth,
		scale:    1.0 / float32(maxDepth),
	}, nil
}

func (w *wavSource) SampleRate() int { return int(w.dec.SampleRate) }
func (w *wavSource) Channels() int   { return int(w.dec.NumChans) }

func (w *wavSource) TotalFrames() int {
	dur, err := w.dec.Duration()
	if err != nil || dur <= 0 {
		return 0
	}
	return int(dur.Seconds() * float64(w.dec.SampleRate))
}

func (w *wavSource) ReadSamples(dst []float32) (int, error) {
	n, err := w.dec.PCMBuffer(w.buf)
	if err != nil {
		if isCleanEOF(err) {
			return 0, io.EOF
		}
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	ch := int(w.dec.NumChans)
	frames := n / ch
	if frames*ch > len(dst) {
		frames = len(dst) / ch
	}
	for i := 0; i < frames*ch; i++ {
		dst[i] = float32(w.buf.Data[i]) * w.scale
	}
	return frames, nil
}

func (w *wavSource) Close() error {
	return w.f.Close()
}

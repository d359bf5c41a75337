package decode

import (
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// mp3 decode always yields 16-bit signed little-endian stereo PCM at
// the stream's native sample rate, per go-mp3's decoder contract.
type mp3Source struct {
	f       *os.File
	dec     *mp3.Decoder
	raw     []byte
	scratch [4096 * 4]byte // 4096 frames * 2 channels * 2 bytes
}

func openMP3(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &mp3Source{f: f, dec: dec}, nil
}

func (m *mp3Source) SampleRate() int   { return m.dec.SampleRate() }
func (m *mp3Source) Channels() int     { return 2 }
func (m *mp3Source) TotalFrames() int  { return int(m.dec.Length() / 4) }

func (m *mp3Source) ReadSamples(dst []float32) (int, error) {
	wantFrames := len(dst) / 2
	if wantFrames == 0 {
		return 0, nil
	}
	need := wantFrames * 4
	if need > len(m.scratch) {
		need = len(m.scratch)
	}
	n, err := io.ReadFull(m.dec, m.scratch[:need])
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, err
	}
	frames := n / 4
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(m.scratch[i*4:]))
		r := int16(binary.LittleEndian.Uint16(m.scratch[i*4+2:]))
		dst[i*2] = float32(l) / math.MaxInt16
		dst[i*2+1] = float32(r) / math.MaxInt16
	}
	if frames == 0 {
		return 0, io.EOF
	}
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return frames, io.EOF
	}
	return frames, nil
}

func (m *mp3Source) Close() error {
	return m.f.Close()
}

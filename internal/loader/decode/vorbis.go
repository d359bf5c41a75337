package decode

import (
	"io"
	"os"

	"github.com/jfreymuth/oggvorbis"
)

type vorbisSource struct {
	f   *os.File
	r   *oggvorbis.Reader
}

func openVorbis(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &vorbisSource{f: f, r: r}, nil
}

func (v *vorbisSource) SampleRate() int  { return v.r.SampleRate() }
func (v *vorbisSource) Channels() int    { return v.r.Channels() }
func (v *vorbisSource) TotalFrames() int { return int(v.r.Length()) }

// ReadSamples reads interleaved float32 samples directly; oggvorbis
// already decodes to [-1,1] float32, so no scaling is needed.
func (v *vorbisSource) ReadSamples(dst []float32) (int, error) {
	n, err := v.r.Read(dst)
	ch := v.Channels()
	if ch == 0 {
		ch = 1
	}
	frames := n / ch
	if err != nil {
		if isCleanEOF(err) {
			if frames == 0 {
				return 0, io.EOF
			}
			return frames, io.EOF
		}
		return frames, err
	}
	return frames, nil
}

func (v *vorbisSource) Close() error {
	return v.f.Close()
}

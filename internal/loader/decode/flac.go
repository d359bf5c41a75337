package decode

import (
	"io"

	"github.com/mewkiz/flac"
)

type flacSource struct {
	stream *flac.Stream
	scale  float32

	// pending holds interleaved samples decoded from the most recent
	// frame but not yet drained by ReadSamples.
	pending []float32
}

func openFLAC(path string) (Source, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if stream.Info.SampleRate == 0 || stream.Info.NChannels == 0 {
		stream.Close()
		return nil, ErrMissingMetadata
	}
	depth := stream.Info.BitsPerSample
	if depth == 0 {
		depth = 16
	}
	maxVal := float32(int64(1) << (depth - 1))
	return &flacSource{stream: stream, scale: 1.0 / maxVal}, nil
}

func (fs *flacSource) SampleRate() int  { return int(fs.stream.Info.SampleRate) }
func (fs *flacSource) Channels() int    { return int(fs.stream.Info.NChannels) }
func (fs *flacSource) TotalFrames() int { return int(fs.stream.Info.NSamples) }

func (fs *flacSource) ReadSamples(dst []float32) (int, error) {
	written := 0
	for written < len(dst) {
		if len(fs.pending) > 0 {
			n := copy(dst[written:], fs.pending)
			fs.pending = fs.pending[n:]
			written += n
			continue
		}
		frame, err := fs.stream.ParseNext()
		if err != nil {
			if isCleanEOF(err) {
				if written == 0 {
					return 0, io.EOF
				}
				return written / fs.Channels(), io.EOF
			}
			return written / fs.Channels(), err
		}
		ch := len(frame.Subframes)
		n := int(frame.BlockSize)
		interleaved := make([]float32, 0, n*ch)
		for i := 0; i < n; i++ {
			for c := 0; c < ch; c++ {
				interleaved = append(interleaved, float32(frame.Subframes[c].Samples[i])*fs.scale)
			}
		}
		fs.pending = interleaved
	}
	return written / fs.Channels(), nil
}

func (fs *flacSource) Close() error {
	return fs.stream.Close()
}

// Package decode provides per-format audio decoders behind one Source
// interface, dispatched by file extension, following the decoder
// registry/interface shape used elsewhere in this lineage (one small
// interface, one decoder implementation per compressed/PCM format).
package decode

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Source is a demuxed, decoded audio track. Implementations return
// interleaved float32 samples in [-1, +1].
type Source interface {
	// SampleRate is the track's native sample rate in Hz.
	SampleRate() int
	// Channels is the track's native channel count.
	Channels() int
	// TotalFrames is the track's advertised duration in frames, or 0
	// if the format does not expose one.
	TotalFrames() int
	// ReadSamples fills dst (interleaved) and returns the number of
	// frames read. Returns io.EOF (possibly with frames > 0 on the
	// final read) when the stream is exhausted.
	ReadSamples(dst []float32) (frames int, err error)
	Close() error
}

// ErrUnsupportedFormat is returned by Open when the file extension has
// no registered decoder.
var ErrUnsupportedFormat = errors.New("decode: unsupported format")

// ErrNoDefaultTrack is returned when a container exposes no decodable
// audio track.
var ErrNoDefaultTrack = errors.New("decode: no default track")

// ErrMissingMetadata is returned when a decoder cannot determine the
// track's sample rate or channel count.
var ErrMissingMetadata = errors.New("decode: missing sample rate or channel metadata")

type opener func(path string) (Source, error)

var registry = map[string]opener{
	".wav":  openWAV,
	".mp3":  openMP3,
	".ogg":  openVorbis,
	".oga":  openVorbis,
	".flac": openFLAC,
	".fla":  openFLAC,
}

// Open probes path by its file extension and returns a decoded Source.
func Open(path string) (Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	open, ok := registry[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	src, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return src, nil
}

// isCleanEOF treats io.ErrUnexpectedEOF as a normal end of stream, per
// the loader's decode-loop policy: UnexpectedEOF is clean EOF, any
// other I/O error propagates.
func isCleanEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// Package source adapts a WAV file on disk to the pacer's Source interface:
// an audio format descriptor plus a restartable-once iterator over
// interleaved signed 16-bit PCM samples.
package source

import (
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/alxayo/audiocast/internal/audiocast/message"
	aerrors "github.com/alxayo/audiocast/internal/errors"
)

// chunkFrames is the number of sample frames read from disk per refill.
const chunkFrames = 4096

// WavSource reads a WAV file and exposes its samples one at a time,
// converting to signed 16-bit PCM regardless of the source bit depth.
type WavSource struct {
	file      *os.File
	dec       *wav.Decoder
	spec      message.Spec
	chunk     *audio.IntBuffer
	pos       int
	n         int
	bitDepth  int
	exhausted bool
}

// Open reads the WAV header at path and returns a ready-to-iterate source.
// The returned spec's SampleFormat is always message.FormatInt, matching
// the WAV file's PCM encoding.
func Open(path string) (*WavSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &aerrors.OpenSourceError{Path: path, Err: err}
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, &aerrors.OpenSourceError{Path: path, Err: io.ErrUnexpectedEOF}
	}

	spec := message.Spec{
		Channels:      uint16(dec.NumChans),
		SampleRate:    dec.SampleRate,
		BitsPerSample: 16,
		SampleFormat:  message.FormatInt,
	}

	return &WavSource{
		file:     f,
		dec:      dec,
		spec:     spec,
		bitDepth: int(dec.BitDepth),
		chunk: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: int(dec.NumChans), SampleRate: int(dec.SampleRate)},
			Data:   make([]int, chunkFrames*int(dec.NumChans)),
		},
	}, nil
}

// Spec returns the audio format in effect for the opened file.
func (s *WavSource) Spec() message.Spec { return s.spec }

// NextSample returns the next interleaved sample, converted to signed
// 16-bit PCM, or io.EOF once the file is exhausted.
func (s *WavSource) NextSample() (int16, error) {
	if s.pos >= s.n {
		if s.exhausted {
			return 0, io.EOF
		}
		if err := s.refill(); err != nil {
			return 0, err
		}
		if s.n == 0 {
			s.exhausted = true
			return 0, io.EOF
		}
	}
	v := s.chunk.Data[s.pos]
	s.pos++
	return to16Bit(v, s.bitDepth), nil
}

func (s *WavSource) refill() error {
	n, err := s.dec.PCMBuffer(s.chunk)
	if err != nil && err != io.EOF {
		return err
	}
	s.n = n
	s.pos = 0
	if n == 0 {
		s.exhausted = true
	}
	return nil
}

// Close releases the underlying file handle.
func (s *WavSource) Close() error {
	return s.file.Close()
}

// to16Bit rescales a PCM sample read at bitDepth bits to the signed
// 16-bit range the wire protocol carries.
func to16Bit(v, bitDepth int) int16 {
	switch bitDepth {
	case 8:
		// 8-bit WAV is unsigned with a 128 midpoint.
		return int16((v - 128) << 8)
	case 16:
		return int16(v)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}

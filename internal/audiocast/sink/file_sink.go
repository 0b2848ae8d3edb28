// Package sink implements the two consumer endpoints of the streaming
// client: a file sink that writes decoded samples to a WAV file, and a
// speaker sink that bridges the decode loop to a local audio device through
// a lock-free ring buffer.
package sink

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/alxayo/audiocast/internal/audiocast/message"
	aerrors "github.com/alxayo/audiocast/internal/errors"
)

const pcmAudioFormat = 1 // WAVE_FORMAT_PCM

// FileSink writes decoded samples to a WAV file on disk, for the lifetime
// of one stream epoch (one Spec message until the next).
type FileSink struct {
	file *os.File
	enc  *wav.Encoder
	spec message.Spec
}

// OpenFile creates path and prepares it to receive samples matching spec.
func OpenFile(path string, spec message.Spec) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &aerrors.SinkWriteError{Op: "file.create", Err: err}
	}
	enc := wav.NewEncoder(f, int(spec.SampleRate), int(spec.BitsPerSample), int(spec.Channels), pcmAudioFormat)
	return &FileSink{file: f, enc: enc, spec: spec}, nil
}

// Write appends a batch of interleaved samples to the file.
func (s *FileSink) Write(batch message.Samples) error {
	if len(batch) == 0 {
		return nil
	}
	data := make([]int, len(batch))
	for i, v := range batch {
		data[i] = int(v)
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: int(s.spec.Channels), SampleRate: int(s.spec.SampleRate)},
		Data:   data,
	}
	if err := s.enc.Write(buf); err != nil {
		return &aerrors.SinkWriteError{Op: "file.write", Err: err}
	}
	return nil
}

// Finalize flushes the WAV header and closes the file. Any outstanding
// buffered audio has already been written via Write; nothing is discarded.
func (s *FileSink) Finalize() error {
	if err := s.enc.Close(); err != nil {
		s.file.Close()
		return &aerrors.SinkWriteError{Op: "file.finalize", Err: err}
	}
	if err := s.file.Close(); err != nil {
		return &aerrors.SinkWriteError{Op: "file.close", Err: err}
	}
	return nil
}

// Package message implements the tagged-union wire format that crosses the
// TCP connection between the broadcast server and its peers: a Spec message
// describing the audio format in effect, and a Samples message carrying a
// batch of interleaved signed 16-bit PCM samples.
package message

import (
	"encoding/binary"

	aerrors "github.com/alxayo/audiocast/internal/errors"
)

// Sample format tags carried in the last byte of a Spec message.
const (
	FormatFloat byte = 0x01
	FormatInt   byte = 0x02
)

// Message type tags carried in the first byte of every frame payload.
const (
	tagSpec    byte = 0x01
	tagSamples byte = 0x02
)

const (
	specLen          = 10 // tag(1) + channels(2) + sample_rate(4) + bits(2) + format(1)
	samplesHeaderLen = 5  // tag(1) + count(4)
	sampleSize       = 2  // bytes per i16 sample
)

// Spec is the immutable audio format descriptor in effect for a stream.
type Spec struct {
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
	SampleFormat  byte // FormatFloat or FormatInt
}

// Samples is an ordered batch of interleaved signed 16-bit PCM samples.
type Samples []int16

// EncodeSpec serializes s into the 10-byte Spec wire layout.
func EncodeSpec(s Spec) []byte {
	buf := make([]byte, specLen)
	buf[0] = tagSpec
	binary.LittleEndian.PutUint16(buf[1:3], s.Channels)
	binary.LittleEndian.PutUint32(buf[3:7], s.SampleRate)
	binary.LittleEndian.PutUint16(buf[7:9], s.BitsPerSample)
	buf[9] = s.SampleFormat
	return buf
}

// EncodeSamples serializes batch into the tag/count/payload wire layout.
// Returns *errors.PayloadTooLongError if the sample count would overflow the
// 32-bit byte-length guard.
func EncodeSamples(batch Samples) ([]byte, error) {
	if err := checkSampleCount(len(batch)); err != nil {
		return nil, err
	}
	buf := make([]byte, samplesHeaderLen+len(batch)*sampleSize)
	buf[0] = tagSamples
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(batch)))
	for i, s := range batch {
		off := samplesHeaderLen + i*sampleSize
		binary.LittleEndian.PutUint16(buf[off:off+2], uint16(s))
	}
	return buf, nil
}

// checkSampleCount guards against a sample count whose encoded byte length
// (count*sampleSize) would overflow the 32-bit length field.
func checkSampleCount(n int) error {
	if n > (1<<32-1)/sampleSize {
		return &aerrors.PayloadTooLongError{Len: n}
	}
	return nil
}

// Decode inspects the first byte of b and decodes either a Spec or a Samples
// message, returning the decoded value as Spec or Samples.
//
// Errors: *errors.UnknownMessageTypeError if the tag is unrecognized,
// *errors.LengthMismatchError if the frame length disagrees with what the
// tag requires, *errors.UnknownSampleFormatError if a Spec's format byte is
// invalid.
func Decode(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, &aerrors.UnknownMessageTypeError{Tag: 0}
	}
	switch b[0] {
	case tagSpec:
		return decodeSpec(b)
	case tagSamples:
		return decodeSamples(b)
	default:
		return nil, &aerrors.UnknownMessageTypeError{Tag: b[0]}
	}
}

func decodeSpec(b []byte) (Spec, error) {
	if len(b) != specLen {
		return Spec{}, &aerrors.LengthMismatchError{Got: len(b), Expected: specLen}
	}
	format := b[9]
	if format != FormatFloat && format != FormatInt {
		return Spec{}, &aerrors.UnknownSampleFormatError{Tag: format}
	}
	return Spec{
		Channels:      binary.LittleEndian.Uint16(b[1:3]),
		SampleRate:    binary.LittleEndian.Uint32(b[3:7]),
		BitsPerSample: binary.LittleEndian.Uint16(b[7:9]),
		SampleFormat:  format,
	}, nil
}

func decodeSamples(b []byte) (Samples, error) {
	if len(b) < samplesHeaderLen {
		return nil, &aerrors.LengthMismatchError{Got: len(b), Expected: samplesHeaderLen}
	}
	count := binary.LittleEndian.Uint32(b[1:5])
	expected := samplesHeaderLen + int(count)*sampleSize
	if len(b) != expected {
		return nil, &aerrors.LengthMismatchError{Got: len(b), Expected: expected}
	}
	out := make(Samples, count)
	for i := range out {
		off := samplesHeaderLen + i*sampleSize
		out[i] = int16(binary.LittleEndian.Uint16(b[off : off+2]))
	}
	return out, nil
}

// Package frame implements the length-prefixed framing that wraps every
// message on the wire: a 4-byte little-endian length N followed by N payload
// bytes.
package frame

import (
	"encoding/binary"
	"io"

	"github.com/alxayo/audiocast/internal/bufpool"
	aerrors "github.com/alxayo/audiocast/internal/errors"
)

// DefaultMaxFrameSize is the default receiver-enforced ceiling on a frame's
// declared payload length (16 MiB).
const DefaultMaxFrameSize = 16 * 1024 * 1024

const lengthPrefixSize = 4

// WriteFrame writes payload as a length-prefixed frame to w: the 4-byte
// little-endian length, then the payload bytes, as two sequential writes.
// Any I/O error is classified via errors.ClassifyIOError so callers can tell
// a disconnected peer from other failures.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [lengthPrefixSize]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return aerrors.ClassifyIOError("write frame length", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return aerrors.ClassifyIOError("write frame payload", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r. maxSize bounds the
// accepted declared length; a declared length exceeding maxSize is rejected
// with *errors.FrameTooLargeError before any payload allocation. The
// returned slice is pool-backed; callers done with it should release it via
// bufpool.Put.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	var lenBuf [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, aerrors.ClassifyIOError("read frame length", err)
	}

	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > maxSize {
		return nil, &aerrors.FrameTooLargeError{Got: n, Max: maxSize}
	}
	if n == 0 {
		return []byte{}, nil
	}

	buf := bufpool.Get(int(n))
	if _, err := io.ReadFull(r, buf); err != nil {
		bufpool.Put(buf)
		return nil, aerrors.ClassifyIOError("read frame payload", err)
	}
	return buf, nil
}

package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"

	"github.com/alxayo/audiocast/internal/audiocast/message"
)

func TestFileSinkWriteAndFinalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	spec := message.Spec{Channels: 1, SampleRate: 44100, BitsPerSample: 16, SampleFormat: message.FormatInt}

	fs, err := OpenFile(path, spec)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	if err := fs.Write(message.Samples{1, 2, 3}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := fs.Write(message.Samples{4, 5}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := fs.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatalf("expected a valid WAV file at %s", path)
	}
	if dec.SampleRate != 44100 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Fatalf("unexpected header: rate=%d chans=%d depth=%d", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer: %v", err)
	}
	want := []int{1, 2, 3, 4, 5}
	if len(buf.Data) != len(want) {
		t.Fatalf("got %d samples, want %d", len(buf.Data), len(want))
	}
	for i, v := range want {
		if buf.Data[i] != v {
			t.Fatalf("sample %d = %d, want %d", i, buf.Data[i], v)
		}
	}
}

func TestFileSinkEmptyWriteIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	spec := message.Spec{Channels: 1, SampleRate: 8000, BitsPerSample: 16, SampleFormat: message.FormatInt}

	fs, err := OpenFile(path, spec)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := fs.Write(message.Samples{}); err != nil {
		t.Fatalf("Write(empty): %v", err)
	}
	if err := fs.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
}

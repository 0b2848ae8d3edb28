package client

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"github.com/alxayo/audiocast/internal/audiocast/hooks"
	"github.com/alxayo/audiocast/internal/audiocast/message"
	aerrors "github.com/alxayo/audiocast/internal/errors"
)

// fakeReceiver replays a fixed sequence of already-encoded frame payloads,
// then returns a peer-gone error to simulate a clean server disconnect.
type fakeReceiver struct {
	frames [][]byte
	idx    int
}

func (f *fakeReceiver) Receive() ([]byte, error) {
	if f.idx >= len(f.frames) {
		return nil, &aerrors.PeerGoneError{Op: "read frame length", Err: io.EOF}
	}
	b := f.frames[f.idx]
	f.idx++
	return b, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSessionWritesSamplesToFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	spec := message.Spec{Channels: 1, SampleRate: 44100, BitsPerSample: 16, SampleFormat: message.FormatInt}
	specPayload := message.EncodeSpec(spec)
	samplesPayload, err := message.EncodeSamples(message.Samples{1, 2, 3})
	if err != nil {
		t.Fatalf("EncodeSamples: %v", err)
	}

	recv := &fakeReceiver{frames: [][]byte{specPayload, samplesPayload}}
	sess := NewSession(recv, discardLogger(), Config{Mode: ModeFile, OutputPath: path})

	if err := sess.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	dec := wav.NewDecoder(mustOpen(t, path))
	if !dec.IsValidFile() {
		t.Fatalf("expected valid WAV output")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer: %v", err)
	}
	want := []int{1, 2, 3}
	if len(buf.Data) != len(want) {
		t.Fatalf("got %d samples, want %d", len(buf.Data), len(want))
	}
}

func TestSessionDropsSamplesBeforeSpec(t *testing.T) {
	samplesPayload, err := message.EncodeSamples(message.Samples{9, 9, 9})
	if err != nil {
		t.Fatalf("EncodeSamples: %v", err)
	}
	recv := &fakeReceiver{frames: [][]byte{samplesPayload}}
	sess := NewSession(recv, discardLogger(), Config{Mode: ModeFile, OutputPath: filepath.Join(t.TempDir(), "unused.wav")})

	if err := sess.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sess.sink != nil {
		t.Fatalf("expected no sink to have been created")
	}
}

func TestSessionFormatChangeStartsNewEpoch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	spec := message.Spec{Channels: 1, SampleRate: 8000, BitsPerSample: 16, SampleFormat: message.FormatInt}
	specPayload := message.EncodeSpec(spec)

	recv := &fakeReceiver{frames: [][]byte{specPayload, specPayload}}
	sess := NewSession(recv, discardLogger(), Config{Mode: ModeFile, OutputPath: path})

	if err := sess.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sess.epoch != 2 {
		t.Fatalf("expected epoch 2 after two Spec messages, got %d", sess.epoch)
	}
}

func TestSessionCancelFinalizesSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	spec := message.Spec{Channels: 1, SampleRate: 8000, BitsPerSample: 16, SampleFormat: message.FormatInt}
	specPayload := message.EncodeSpec(spec)

	recv := &fakeReceiver{frames: [][]byte{specPayload}}
	calls := 0
	sess := NewSession(recv, discardLogger(), Config{
		Mode:       ModeFile,
		OutputPath: path,
		Cancel: func() bool {
			calls++
			return calls > 1 // let the one Spec frame process, then stop
		},
	})

	if err := sess.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sess.sink != nil {
		t.Fatalf("expected sink to be finalized on cancellation")
	}
}

// countingHook records how many times it was executed.
type countingHook struct {
	mu    sync.Mutex
	count int
}

func (h *countingHook) Execute(ctx context.Context, event hooks.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	return nil
}
func (h *countingHook) Type() string { return "counting" }
func (h *countingHook) ID() string   { return "counting" }
func (h *countingHook) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func TestSessionFiresFormatChangeHook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	specA := message.Spec{Channels: 1, SampleRate: 8000, BitsPerSample: 16, SampleFormat: message.FormatInt}
	specB := message.Spec{Channels: 2, SampleRate: 16000, BitsPerSample: 16, SampleFormat: message.FormatInt}

	manager := hooks.NewHookManager(hooks.DefaultHookConfig(), nil)
	hook := &countingHook{}
	if err := manager.RegisterHook(hooks.EventFormatChange, hook); err != nil {
		t.Fatalf("RegisterHook: %v", err)
	}

	recv := &fakeReceiver{frames: [][]byte{message.EncodeSpec(specA), message.EncodeSpec(specB)}}
	sess := NewSession(recv, discardLogger(), Config{Mode: ModeFile, OutputPath: path, Hooks: manager})

	if err := sess.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	manager.Close()

	// TriggerEvent dispatches asynchronously; Close waits on in-flight runs
	// but the first Spec never finalizes a prior sink, so only one
	// format-change fires for the second Spec.
	deadline := time.Now().Add(time.Second)
	for hook.calls() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := hook.calls(); got != 1 {
		t.Fatalf("format-change hook fired %d times, want 1", got)
	}
}

func mustOpen(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

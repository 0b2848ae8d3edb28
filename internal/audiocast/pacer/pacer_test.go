package pacer

import (
	"io"
	"sync"
	"testing"

	"github.com/alxayo/audiocast/internal/audiocast/message"
)

func TestComputeSleepMicros(t *testing.T) {
	got := computeSleepMicros(44100)
	if got != 18140 {
		t.Fatalf("computeSleepMicros(44100) = %d, want 18140", got)
	}
}

// fakeSource yields a fixed slice of samples then io.EOF.
type fakeSource struct {
	spec    message.Spec
	samples []int16
	idx     int
}

func (f *fakeSource) Spec() message.Spec { return f.spec }

func (f *fakeSource) NextSample() (int16, error) {
	if f.idx >= len(f.samples) {
		return 0, io.EOF
	}
	s := f.samples[f.idx]
	f.idx++
	return s, nil
}

// fakeBroadcaster records every broadcast payload and starts with peers
// already present so Run doesn't block waiting for connections.
type fakeBroadcaster struct {
	mu        sync.Mutex
	greeting  []byte
	payloads  [][]byte
	peerCount int
}

func (f *fakeBroadcaster) SetGreeting(payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.greeting = append([]byte(nil), payload...)
}

func (f *fakeBroadcaster) Broadcast(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), payload...)
	f.payloads = append(f.payloads, cp)

	// Simulate the one client disconnecting once it has received the final,
	// less-than-a-full-group batch of samples, so Run's post-stream drain
	// wait (PeerCount==0) actually resolves instead of blocking forever.
	if decoded, err := message.Decode(payload); err == nil {
		if samples, ok := decoded.(message.Samples); ok && len(samples) < SamplesPerGroup {
			f.peerCount = 0
		}
	}
	return nil
}

func (f *fakeBroadcaster) PeerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peerCount
}

func (f *fakeBroadcaster) NotifyStreamStart(spec message.Spec) {}

func (f *fakeBroadcaster) NotifyStreamDrain() {}

func TestRunSendsSpecThenSamples(t *testing.T) {
	src := &fakeSource{
		spec:    message.Spec{Channels: 1, SampleRate: 44100, BitsPerSample: 16, SampleFormat: message.FormatInt},
		samples: make([]int16, SamplesPerGroup+250),
	}
	// PeerCount starts at 1 so Run's warm-up wait loops never block, and
	// drops to 0 only after the stream drains, satisfying the drain wait too.
	bc := &fakeBroadcaster{peerCount: 1}

	if err := Run(src, bc); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(bc.payloads) != 3 {
		t.Fatalf("expected 3 broadcasts (spec + full group + partial group), got %d", len(bc.payloads))
	}

	specMsg, err := message.Decode(bc.payloads[0])
	if err != nil {
		t.Fatalf("decode first broadcast: %v", err)
	}
	if _, ok := specMsg.(message.Spec); !ok {
		t.Fatalf("expected first broadcast to decode as Spec, got %T", specMsg)
	}

	full, err := message.Decode(bc.payloads[1])
	if err != nil {
		t.Fatalf("decode second broadcast: %v", err)
	}
	fullSamples, ok := full.(message.Samples)
	if !ok || len(fullSamples) != SamplesPerGroup {
		t.Fatalf("expected full group of %d samples, got %T len=%d", SamplesPerGroup, full, len(fullSamples))
	}

	partial, err := message.Decode(bc.payloads[2])
	if err != nil {
		t.Fatalf("decode third broadcast: %v", err)
	}
	partialSamples, ok := partial.(message.Samples)
	if !ok || len(partialSamples) != 250 {
		t.Fatalf("expected partial group of 250 samples, got %T len=%d", partial, len(partialSamples))
	}
}

func TestRunPropagatesSourceError(t *testing.T) {
	src := &erroringSource{spec: message.Spec{SampleRate: 44100}}
	bc := &fakeBroadcaster{peerCount: 1}

	err := Run(src, bc)
	if err == nil {
		t.Fatal("expected an error from a failing source")
	}
}

type erroringSource struct {
	spec message.Spec
}

func (e *erroringSource) Spec() message.Spec { return e.spec }
func (e *erroringSource) NextSample() (int16, error) {
	return 0, io.ErrClosedPipe
}

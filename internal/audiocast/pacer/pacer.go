// Package pacer implements the server-side real-time playback pipeline: it
// reads samples from a source, batches them, serializes them into audio
// messages, and paces broadcasts to stay slightly ahead of real time once a
// warm-up period has elapsed.
package pacer

import (
	"errors"
	"io"
	"time"

	"github.com/alxayo/audiocast/internal/audiocast/message"
	aerrors "github.com/alxayo/audiocast/internal/errors"
	"github.com/alxayo/audiocast/internal/logger"
)

// SamplesPerGroup is the batch size for sample frames.
const SamplesPerGroup = 1000

// PacingFactor is the fraction of real time the pacer targets per batch;
// sleeping for PacingFactor × batch duration keeps the server slightly ahead
// of real-time playback, giving headroom against jitter.
const PacingFactor = 0.8

// InitialBufferSeconds is the warm-up period, in seconds of audio, during
// which the pacer sends as fast as possible to pre-fill client-side buffers.
const InitialBufferSeconds = 3

// pollInterval is how often the pacer re-checks peer count while waiting
// for clients to connect or drain.
const pollInterval = 1 * time.Second

// Source provides the audio format in effect and a restartable-once
// iterator over its samples. NextSample returns io.EOF once exhausted.
type Source interface {
	Spec() message.Spec
	NextSample() (int16, error)
}

// Broadcaster is the subset of the broadcast server's API the pacer drives.
// NotifyStreamStart/NotifyStreamDrain let the server surface the pacer's
// two real lifecycle transitions to lifecycle hooks without the pacer
// package depending on the hooks package directly.
type Broadcaster interface {
	SetGreeting(payload []byte)
	Broadcast(payload []byte) error
	PeerCount() int
	NotifyStreamStart(spec message.Spec)
	NotifyStreamDrain()
}

// Run executes the full playback algorithm against src, using srv to
// publish the stream. It blocks until the source is exhausted and all peers
// have drained, or a fatal error occurs.
func Run(src Source, srv Broadcaster) error {
	spec := src.Spec()
	specPayload := message.EncodeSpec(spec)
	sleepUs := computeSleepMicros(spec.SampleRate)

	srv.SetGreeting(specPayload)

	waitForPeers(srv, func(n int) bool { return n > 0 })

	if err := srv.Broadcast(specPayload); err != nil {
		return err
	}
	srv.NotifyStreamStart(spec)

	if err := stream(src, srv, sleepUs); err != nil {
		return err
	}

	waitForPeers(srv, func(n int) bool { return n == 0 })
	srv.NotifyStreamDrain()
	return nil
}

func stream(src Source, srv Broadcaster, sleepUs int64) error {
	group := make(message.Samples, 0, SamplesPerGroup)
	var sentSamples int64
	warmUpThreshold := int64(src.Spec().SampleRate) * InitialBufferSeconds

	flush := func() error {
		if len(group) == 0 {
			return nil
		}
		payload, err := message.EncodeSamples(group)
		if err != nil {
			return err
		}
		if err := srv.Broadcast(payload); err != nil {
			return err
		}
		sentSamples += int64(len(group))
		group = group[:0]
		if sentSamples > warmUpThreshold {
			time.Sleep(time.Duration(sleepUs) * time.Microsecond)
		}
		return nil
	}

	for {
		s, err := src.NextSample()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return &aerrors.SourceReadError{Op: "next_sample", Err: err}
		}
		group = append(group, s)
		if len(group) == SamplesPerGroup {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func waitForPeers(srv Broadcaster, done func(int) bool) {
	for !done(srv.PeerCount()) {
		time.Sleep(pollInterval)
	}
}

// computeSleepMicros returns the per-group sleep duration, in microseconds,
// that keeps broadcasts at PacingFactor of real time for the given sample
// rate. For sampleRate=44100 this evaluates to 18140 (±1µs rounding).
func computeSleepMicros(sampleRate uint32) int64 {
	if sampleRate == 0 {
		logger.Warn("computeSleepMicros: zero sample rate, pacing disabled")
		return 0
	}
	usPerGroup := float64(SamplesPerGroup) * 1_000_000 / float64(sampleRate)
	return int64(usPerGroup * PacingFactor)
}

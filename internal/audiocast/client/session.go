// Package client implements the streaming client's receive loop: a state
// machine that decodes incoming frames and forwards samples to whichever
// sink (file or speaker) is active for the current stream epoch.
package client

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alxayo/audiocast/internal/audiocast/hooks"
	"github.com/alxayo/audiocast/internal/audiocast/message"
	"github.com/alxayo/audiocast/internal/audiocast/sink"
	aerrors "github.com/alxayo/audiocast/internal/errors"
)

var errUnknownMode = errors.New("unknown sink mode")

// Receiver is the subset of transport.Client the session loop drives.
type Receiver interface {
	Receive() ([]byte, error)
}

// Mode selects what OpenSink builds when a new Spec message arrives.
type Mode int

const (
	// ModeFile writes received samples to a WAV file.
	ModeFile Mode = iota
	// ModeDefaultSpeaker plays received samples through the default output device.
	ModeDefaultSpeaker
	// ModeNamedSpeaker plays received samples through a named output device.
	ModeNamedSpeaker
)

// sinkHandle is the minimal interface both concrete sinks satisfy.
type sinkHandle interface {
	Write(batch message.Samples) error
	Finalize() error
}

// speakerSinkAdapter adapts *sink.SpeakerSink's PlaySamples/Close to the
// sinkHandle shape the session loop drives.
type speakerSinkAdapter struct{ s *sink.SpeakerSink }

func (a speakerSinkAdapter) Write(batch message.Samples) error { return a.s.PlaySamples(batch) }
func (a speakerSinkAdapter) Finalize() error                   { return a.s.Close() }

// Session holds the client-side decode loop's state: the current sink (if
// any) and the target output mode.
type Session struct {
	mode       Mode
	outputPath string
	deviceName string

	recv        Receiver
	log         *slog.Logger
	sink        sinkHandle
	epoch       int
	cancel      func() bool
	hookManager *hooks.HookManager
}

// Config describes how a Session should build sinks and when to stop.
type Config struct {
	Mode       Mode
	OutputPath string // used when Mode == ModeFile
	DeviceName string // used when Mode == ModeNamedSpeaker

	// Cancel is polled once per loop iteration; when it returns true the
	// session finalizes its sink and exits. A nil Cancel never stops.
	Cancel func() bool

	// Hooks, if non-nil, receives EventFormatChange whenever a Spec arrives
	// while a sink from a prior epoch is still open.
	Hooks *hooks.HookManager
}

// NewSession constructs a session over recv using cfg.
func NewSession(recv Receiver, log *slog.Logger, cfg Config) *Session {
	cancel := cfg.Cancel
	if cancel == nil {
		cancel = func() bool { return false }
	}
	return &Session{
		mode:        cfg.Mode,
		outputPath:  cfg.OutputPath,
		deviceName:  cfg.DeviceName,
		recv:        recv,
		log:         log,
		cancel:      cancel,
		hookManager: cfg.Hooks,
	}
}

// Run drives the receive loop until the cancellation flag is observed or
// the server disconnects. It returns nil on a clean disconnect or
// cancellation, and a non-nil error for fatal I/O or sink failures.
func (s *Session) Run() error {
	for {
		if s.cancel() {
			return s.finalizeCurrentSink()
		}

		payload, err := s.recv.Receive()
		if err != nil {
			if aerrors.IsPeerGone(err) {
				s.log.Info("server disconnected")
				return s.finalizeCurrentSink()
			}
			s.finalizeCurrentSink()
			return err
		}

		decoded, err := message.Decode(payload)
		if err != nil {
			s.log.Warn("dropping malformed message", "error", err)
			continue
		}

		if err := s.handle(decoded); err != nil {
			return err
		}
	}
}

func (s *Session) handle(decoded any) error {
	switch v := decoded.(type) {
	case message.Spec:
		return s.onSpec(v)
	case message.Samples:
		return s.onSamples(v)
	}
	return nil
}

func (s *Session) onSpec(spec message.Spec) error {
	if s.sink != nil {
		if err := s.sink.Finalize(); err != nil {
			s.log.Warn("finalize on format change failed", "error", err)
		}
		s.sink = nil
		s.notifyFormatChange(spec)
	}
	s.epoch++

	newSink, err := s.openSink(spec)
	if err != nil {
		return &aerrors.SinkWriteError{Op: "open_sink", Err: err}
	}
	s.sink = newSink
	s.log.Info("stream started", "stream_epoch", s.epoch,
		"channels", spec.Channels, "sample_rate", spec.SampleRate)
	return nil
}

func (s *Session) onSamples(batch message.Samples) error {
	if s.sink == nil {
		s.log.Debug("dropping samples received before any spec", "count", len(batch))
		return nil
	}
	if err := s.sink.Write(batch); err != nil {
		return err
	}
	return nil
}

func (s *Session) openSink(spec message.Spec) (sinkHandle, error) {
	switch s.mode {
	case ModeFile:
		fs, err := sink.OpenFile(s.outputPath, spec)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case ModeDefaultSpeaker:
		sp, err := sink.BuildDefault(spec)
		if err != nil {
			return nil, err
		}
		return speakerSinkAdapter{sp}, nil
	case ModeNamedSpeaker:
		sp, err := sink.BuildNamed(spec, s.deviceName)
		if err != nil {
			return nil, err
		}
		return speakerSinkAdapter{sp}, nil
	default:
		return nil, &aerrors.SinkWriteError{Op: "open_sink", Err: errUnknownMode}
	}
}

func (s *Session) notifyFormatChange(spec message.Spec) {
	if s.hookManager == nil {
		return
	}
	event := hooks.NewEvent(hooks.EventFormatChange).WithData("channels", spec.Channels).
		WithData("sample_rate", spec.SampleRate)
	s.hookManager.TriggerEvent(context.Background(), *event)
}

func (s *Session) finalizeCurrentSink() error {
	if s.sink == nil {
		return nil
	}
	err := s.sink.Finalize()
	s.sink = nil
	return err
}

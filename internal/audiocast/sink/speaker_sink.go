package sink

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/drgolem/ringbuffer"

	"github.com/alxayo/audiocast/internal/audiocast/message"
	"github.com/alxayo/audiocast/internal/logger"
)

// ringBufferSamples sizes the producer/consumer ring for ~10 seconds of
// audio at 44.1 kHz stereo, independent of the stream's actual spec; at
// higher rates or channel counts the buffered time shrinks proportionally.
const ringBufferSamples = 44100 * 2 * 10

const bytesPerSample = 2 // signed 16-bit PCM

// framesPerBuffer is the PortAudio callback granularity: how many output
// frames are written to the stream per consumer iteration.
const framesPerBuffer = 512

// deviceChannels is the channel count presented to the output device. The
// ring buffer carries one sample per output frame regardless of the
// stream's source channel count; the consumer loop duplicates that sample
// into every device channel slot rather than decoding a true multi-channel
// layout (see the mono-to-N duplication note in the component design).
const deviceChannels = 2

// SpeakerSink bridges a client decode loop (producer) to a local audio
// output device (consumer) through a lock-free SPSC ring buffer. A
// dedicated goroutine stands in for the OS's pull-callback, since this
// binding only exposes a blocking Write.
type SpeakerSink struct {
	ring   *ringbuffer.RingBuffer
	stream *portaudio.PaStream

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// BuildDefault opens the host's default output device.
func BuildDefault(spec message.Spec) (*SpeakerSink, error) {
	return build(spec, "", true)
}

// BuildNamed opens the output device matching name exactly (with the
// synthetic "Unknown Device N" fallback naming ListOutputDevices assigns to
// unnamed devices).
func BuildNamed(spec message.Spec, name string) (*SpeakerSink, error) {
	return build(spec, name, false)
}

func build(spec message.Spec, name string, useDefault bool) (*SpeakerSink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio initialize: %w", err)
	}

	idx, err := resolveDeviceIndex(name, useDefault)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	outParams := portaudio.PaStreamParameters{
		DeviceIndex:  idx,
		ChannelCount: deviceChannels,
		SampleFormat: portaudio.SampleFmtInt16,
	}

	stream, err := portaudio.NewStream(outParams, float64(spec.SampleRate))
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("create stream: %w", err)
	}
	if err := stream.Open(framesPerBuffer); err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if err := stream.StartStream(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start stream: %w", err)
	}

	s := &SpeakerSink{
		ring:   ringbuffer.New(ringBufferSamples * bytesPerSample),
		stream: stream,
		stopCh: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.consume()
	return s, nil
}

func resolveDeviceIndex(name string, useDefault bool) (int, error) {
	if useDefault {
		return defaultOutputDevice()
	}
	return findDeviceByName(name)
}

// consume is the stand-in for the device's pull callback: it pops samples
// from the ring buffer (substituting silence on underrun) and blocking-
// writes them to the stream, duplicated across every device channel.
func (s *SpeakerSink) consume() {
	defer s.wg.Done()

	sampleBuf := make([]byte, framesPerBuffer*bytesPerSample)
	outBuf := make([]byte, framesPerBuffer*deviceChannels*bytesPerSample)

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		n, _ := s.ring.Read(sampleBuf)
		samplesGot := n / bytesPerSample

		for i := 0; i < framesPerBuffer; i++ {
			var sample int16
			if i < samplesGot {
				sample = int16(binary.LittleEndian.Uint16(sampleBuf[i*bytesPerSample:]))
			}
			for c := 0; c < deviceChannels; c++ {
				off := (i*deviceChannels + c) * bytesPerSample
				binary.LittleEndian.PutUint16(outBuf[off:], uint16(sample))
			}
		}

		if err := s.stream.Write(framesPerBuffer, outBuf); err != nil {
			logger.Warn("speaker stream write failed", "error", err)
			return
		}
	}
}

// PlaySamples pushes batch onto the ring buffer, blocking (yielding and
// sleeping 1ms between attempts) until there is room for the entire batch.
// It never silently drops samples: if the sink is closed while waiting, the
// write error is returned.
func (s *SpeakerSink) PlaySamples(batch message.Samples) error {
	if len(batch) == 0 {
		return nil
	}
	buf := make([]byte, len(batch)*bytesPerSample)
	for i, v := range batch {
		binary.LittleEndian.PutUint16(buf[i*bytesPerSample:], uint16(v))
	}
	for {
		_, err := s.ring.Write(buf)
		if err == nil {
			return nil
		}
		select {
		case <-s.stopCh:
			return err
		default:
			runtime.Gosched()
			time.Sleep(time.Millisecond)
		}
	}
}

// PlaySample is the one-sample variant of PlaySamples.
func (s *SpeakerSink) PlaySample(v int16) error {
	return s.PlaySamples(message.Samples{v})
}

// Pause stops the output stream without tearing down the consumer
// goroutine or ring buffer.
func (s *SpeakerSink) Pause() error {
	return s.stream.StopStream()
}

// Start resumes a paused output stream.
func (s *SpeakerSink) Start() error {
	return s.stream.StartStream()
}

// Close stops the consumer goroutine, closes the stream, and releases the
// PortAudio host API.
func (s *SpeakerSink) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		s.stream.StopStream()
		err = s.stream.Close()
		portaudio.Terminate()
	})
	return err
}

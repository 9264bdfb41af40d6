//go:build hw

package audio

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// PortaudioSource captures a single analog channel through the host's
// default input device. It is only built into hardware images (build tag
// hw); test and CI builds use SyntheticSource instead.
type PortaudioSource struct {
	sampleRate int
	now        func() uint64

	stream *portaudio.Stream
	stop   chan struct{}
	done   chan struct{}
}

// NewPortaudioSource constructs a hardware ADC source at sampleRate Hz.
func NewPortaudioSource(sampleRate int, now func() uint64) *PortaudioSource {
	return &PortaudioSource{sampleRate: sampleRate, now: now}
}

const framesPerBuffer = 64

// Start opens the default input stream and begins draining it into ring
// on a dedicated goroutine until ctx is cancelled or Stop is called.
func (s *PortaudioSource) Start(ctx context.Context, ring *SampleRing) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("audio: portaudio init: %w", err)
	}

	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(s.sampleRate), framesPerBuffer, buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("audio: open default stream: %w", err)
	}
	s.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("audio: start stream: %w", err)
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			default:
			}
			if err := stream.Read(); err != nil {
				continue
			}
			ts := s.now()
			for _, v := range buf {
				// int16 full range -> 12-bit ADC range (0-4095), matching
				// the data model's unsigned 12-bit sample.
				scaled := (int32(v) + 32768) >> 4
				ring.Push(Sample{Value: uint16(scaled), TimestampUS: ts})
			}
		}
	}()
	return nil
}

// Stop closes the stream and releases portaudio resources.
func (s *PortaudioSource) Stop() error {
	if s.stop != nil {
		close(s.stop)
		<-s.done
	}
	if s.stream != nil {
		s.stream.Stop()
		s.stream.Close()
	}
	return portaudio.Terminate()
}

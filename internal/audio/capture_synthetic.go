package audio

import (
	"context"
	"time"
)

// Waveform yields the next sample value given an elapsed sample count. It
// is how tests and the no-hardware dev mode inject synthetic beats,
// ambient noise, or clipping sequences.
type Waveform func(sampleIndex uint64) uint16

// SyntheticSource drives a Waveform at a fixed sample rate, pushing into a
// SampleRing exactly as a real ADC-complete interrupt would. Its own
// timestamps come from an injected Source rather than wall-clock reads, so
// tests can run it against a fake clock.
type SyntheticSource struct {
	sampleRate int
	wave       Waveform
	now        func() uint64

	stop chan struct{}
	done chan struct{}
}

// NewSyntheticSource constructs a capture source that calls wave once per
// sample period at sampleRate Hz, stamping each with now().
func NewSyntheticSource(sampleRate int, wave Waveform, now func() uint64) *SyntheticSource {
	return &SyntheticSource{
		sampleRate: sampleRate,
		wave:       wave,
		now:        now,
	}
}

// Start begins pushing samples into ring until ctx is cancelled or Stop is
// called.
func (s *SyntheticSource) Start(ctx context.Context, ring *SampleRing) error {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	period := time.Second / time.Duration(s.sampleRate)
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		var i uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				ring.Push(Sample{Value: s.wave(i), TimestampUS: s.now()})
				i++
			}
		}
	}()
	return nil
}

// Stop halts the background goroutine and waits for it to exit.
func (s *SyntheticSource) Stop() error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	<-s.done
	return nil
}

// FeedSequence pushes a pre-built sample sequence directly into ring with
// no timing involved, for tests that want deterministic, synchronous
// ingestion rather than a ticking goroutine.
func FeedSequence(ring *SampleRing, samples []Sample) {
	for _, s := range samples {
		ring.Push(s)
	}
}

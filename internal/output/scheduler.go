package output

// defaultPPQN is the MIDI clock resolution, 24 pulses per quarter note.
const defaultPPQN = 24

// sendSoftDeadlineUS is the 10ms soft deadline from spec.md §4.5; a send
// that takes longer is recorded as a failure even if it eventually
// succeeds.
const sendSoftDeadlineUS = 10_000

// NetworkStats are the lifetime counters queried by collaborators per
// spec.md §4.5's "network-stats query".
type NetworkStats struct {
	ClocksSent   uint64
	SendFailures uint64
}

// Scheduler drives the MIDI clock sub-mechanism. It has no timer of its
// own: the hot path calls Tick on every pass and Scheduler decides whether
// a clock message is due, matching the cooperative single-threaded model
// in spec.md §5. Deadline arithmetic happens inside Tick itself; in
// cmd/metronome the caller is the 1 ms hot-path loop, and no separate
// hardware-timer handler is involved.
type Scheduler struct {
	sender PacketSender
	now    func() uint64

	ssrc uint32
	seq  uint16

	ppqn       int
	bpm        float64
	intervalUS uint64

	syncEnabled  bool
	counter      uint32
	nextDeadline uint64
	baseTS       uint64

	stats NetworkStats
}

// NewScheduler constructs a Scheduler bound to sender. now supplies the
// injected monotonic clock (spec.md §9: no ambient clock reach-through).
func NewScheduler(sender PacketSender, now func() uint64, ssrc uint32) *Scheduler {
	return &Scheduler{
		sender: sender,
		now:    now,
		ssrc:   ssrc,
		ppqn:   defaultPPQN,
	}
}

// SetPPQN changes the clock resolution. Per spec.md §9's resolved open
// question, this takes effect starting from the next scheduled tick; any
// already-armed deadline is left alone.
func (s *Scheduler) SetPPQN(ppqn int) {
	s.ppqn = ppqn
	s.recomputeInterval()
}

// SetBPM recomputes the tick interval. The next already-scheduled tick
// keeps its absolute deadline; only subsequent ticks use the new
// interval, per spec.md §4.5.
func (s *Scheduler) SetBPM(bpm float64) {
	s.bpm = bpm
	s.recomputeInterval()
}

func (s *Scheduler) recomputeInterval() {
	if s.bpm <= 0 || s.ppqn <= 0 {
		s.intervalUS = 0
		return
	}
	s.intervalUS = uint64(60_000_000 / (s.bpm * float64(s.ppqn)))
}

// StartSync arms the scheduler, resets the clock counter, and emits START.
func (s *Scheduler) StartSync(now uint64) {
	s.syncEnabled = true
	s.counter = 0
	s.baseTS = now
	s.send(now, MIDIStart, false)
	s.nextDeadline = now + s.intervalUS
}

// StopSync disarms the scheduler and emits STOP. Pending ticks are
// implicitly cancelled: Tick becomes a no-op once syncEnabled is false.
func (s *Scheduler) StopSync(now uint64) {
	s.syncEnabled = false
	s.send(now, MIDIStop, false)
}

// Tick is called from the hot path on every pass. It fires a CLOCK
// message if the scheduled deadline has arrived, and returns whether it
// did.
func (s *Scheduler) Tick(now uint64) bool {
	if !s.syncEnabled || s.intervalUS == 0 {
		return false
	}
	if now < s.nextDeadline {
		return false
	}
	s.send(now, MIDIClock, true)
	s.counter++
	// Advance from the missed deadline, not from now, so jitter does not
	// accumulate across ticks.
	s.nextDeadline += s.intervalUS
	return true
}

func (s *Scheduler) send(now uint64, status byte, countClock bool) {
	tsUS := uint32(now - s.baseTS)
	packet := EncodeRTPMIDI(s.seq, tsUS, s.ssrc, status)
	s.seq++

	sentAt := s.now()
	err := s.sender.Send(packet)
	elapsed := s.now() - sentAt

	if err != nil || elapsed > sendSoftDeadlineUS {
		s.stats.SendFailures++
		return
	}
	if countClock {
		s.stats.ClocksSent++
	}
}

// Stats returns a copy of the lifetime network counters.
func (s *Scheduler) Stats() NetworkStats {
	return s.stats
}

// SyncEnabled reports whether the scheduler is currently armed.
func (s *Scheduler) SyncEnabled() bool {
	return s.syncEnabled
}

// Counter returns the number of CLOCK messages sent since the last
// StartSync.
func (s *Scheduler) Counter() uint32 {
	return s.counter
}

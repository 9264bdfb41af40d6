// Package audio implements the onset detection engine (C3): rolling-window
// adaptive thresholding, automatic gain control, a beat/debounce state
// machine, and periodic telemetry over a continuous ADC sample stream.
package audio

// DetectionState is one of the four states the onset detector cycles
// through per incoming sample.
type DetectionState int

const (
	IDLE DetectionState = iota
	RISING
	TRIGGERED
	DEBOUNCE
)

func (s DetectionState) String() string {
	switch s {
	case IDLE:
		return "IDLE"
	case RISING:
		return "RISING"
	case TRIGGERED:
		return "TRIGGERED"
	case DEBOUNCE:
		return "DEBOUNCE"
	default:
		return "UNKNOWN"
	}
}

// clippingThreshold is strict: exactly 4000 does not clip, 4001 does.
const clippingThreshold = 4000

// agcLevels is the discrete gain ladder, high to low. AGC only ever
// decrements per spec.md §9 (the up-path is an open question left
// unimplemented pending stakeholder input).
var agcLevels = [...]int{60, 50, 40}

// riseTimeKickThresholdUS is 4 ms expressed in microseconds.
const riseTimeKickThresholdUS = 4000

// telemetryIntervalUS is 500 ms of sample time, not wall time.
const telemetryIntervalUS = 500_000

// Config mirrors config.AudioSection as plain fields so this package has
// no dependency on internal/config.
type Config struct {
	ThresholdMargin int
	DebounceUS      uint64
	NominalGainDB   int
	KickOnlyMode    bool
}

// BeatEvent is emitted on RISING->TRIGGERED transitions.
type BeatEvent struct {
	TimestampUS        uint64
	PeakAmplitude      uint16
	ThresholdAtTrigger float64
	AGCLevelDB         int
	KickOnly           bool
}

// Telemetry is emitted every 500 ms of sample time.
type Telemetry struct {
	TimestampUS                uint64
	LastSample                 uint16
	WindowMin                  uint16
	WindowMax                  uint16
	Threshold                  float64
	AGCLevelDB                 int
	State                      DetectionState
	LifetimeBeatCount          uint64
	LifetimeFalsePositiveCount uint64
}

// Detector runs the adaptive-threshold state machine described in
// spec.md §4.3. It has no goroutines of its own: ProcessSample is called
// synchronously from the hot path that drains the sample ring.
type Detector struct {
	cfg Config

	window *rollingWindow

	state     DetectionState
	threshold float64
	agcLevel  int

	havePrevSample bool
	prevSample     uint16

	tMin   uint64
	trigTS uint64
	tOff   uint64

	lifetimeBeats          uint64
	lifetimeFalsePositives uint64

	lastTelemetryTS uint64
	haveTelemetryTS bool

	onBeat      func(BeatEvent)
	onTelemetry func(Telemetry)
}

// NewDetector constructs a Detector starting IDLE at the configured
// nominal gain.
func NewDetector(cfg Config) *Detector {
	return &Detector{
		cfg:      cfg,
		window:   newRollingWindow(),
		state:    IDLE,
		agcLevel: cfg.NominalGainDB,
	}
}

// SetConfig replaces tuning parameters in place.
func (d *Detector) SetConfig(cfg Config) {
	d.cfg = cfg
}

// OnBeat registers fn as the single beat-event subscriber, replacing any
// previous registration.
func (d *Detector) OnBeat(fn func(BeatEvent)) {
	d.onBeat = fn
}

// OnTelemetry registers fn as the single telemetry subscriber, replacing
// any previous registration.
func (d *Detector) OnTelemetry(fn func(Telemetry)) {
	d.onTelemetry = fn
}

// State returns the current detection state, for tests and telemetry.
func (d *Detector) State() DetectionState {
	return d.state
}

// AGCLevelDB returns the current AGC gain level.
func (d *Detector) AGCLevelDB() int {
	return d.agcLevel
}

// ProcessSample ingests one ADC reading. ts is supplied by the caller
// (the timing service), not read from an ambient clock.
func (d *Detector) ProcessSample(value uint16, ts uint64) {
	d.window.Add(value, ts)
	lo, hi, minTS, primed := d.window.MinMax()
	if !primed {
		return
	}
	d.threshold = float64(lo) + 0.8*float64(hi-lo)

	if value > clippingThreshold {
		d.decrementAGC()
	}

	switch d.state {
	case IDLE:
		if float64(value) > d.threshold {
			d.state = RISING
			d.tMin = minTS
		}
	case RISING:
		switch {
		case d.havePrevSample && d.prevSample > value && float64(value) > d.threshold:
			d.trigger(value, ts)
		case float64(value) <= d.threshold:
			// Fell back below threshold without ever peaking: abort the rise.
			d.state = IDLE
		}
	case DEBOUNCE:
		debounceElapsed := ts-d.trigTS >= d.cfg.DebounceUS
		belowMargin := float64(value) < d.threshold-float64(d.cfg.ThresholdMargin)
		if debounceElapsed && belowMargin {
			d.tOff = ts
			d.state = IDLE
		}
	}

	d.prevSample = value
	d.havePrevSample = true

	d.maybeEmitTelemetry(value, lo, hi, ts)
}

// trigger handles the RISING->TRIGGERED->DEBOUNCE transition, which spec.md
// §4.3 specifies happens within the same tick: TRIGGERED is never a state
// the machine rests in, only a momentary pivot recorded via the emitted
// beat event.
func (d *Detector) trigger(value uint16, ts uint64) {
	peak := d.prevSample
	d.trigTS = ts
	riseTimeUS := ts - d.tMin
	kickOnly := riseTimeUS > riseTimeKickThresholdUS

	if d.cfg.KickOnlyMode && !kickOnly {
		d.lifetimeFalsePositives++
		d.state = DEBOUNCE
		return
	}

	d.lifetimeBeats++
	if d.onBeat != nil {
		d.onBeat(BeatEvent{
			TimestampUS:        ts,
			PeakAmplitude:      peak,
			ThresholdAtTrigger: d.threshold,
			AGCLevelDB:         d.agcLevel,
			KickOnly:           kickOnly,
		})
	}
	d.state = DEBOUNCE
}

func (d *Detector) decrementAGC() {
	for i, level := range agcLevels {
		if level == d.agcLevel && i+1 < len(agcLevels) {
			d.agcLevel = agcLevels[i+1]
			return
		}
	}
}

func (d *Detector) maybeEmitTelemetry(last, lo, hi uint16, ts uint64) {
	if d.haveTelemetryTS && ts-d.lastTelemetryTS < telemetryIntervalUS {
		return
	}
	d.lastTelemetryTS = ts
	d.haveTelemetryTS = true

	if d.onTelemetry == nil {
		return
	}
	d.onTelemetry(Telemetry{
		TimestampUS:                ts,
		LastSample:                 last,
		WindowMin:                  lo,
		WindowMax:                  hi,
		Threshold:                  d.threshold,
		AGCLevelDB:                 d.agcLevel,
		State:                      d.state,
		LifetimeBeatCount:          d.lifetimeBeats,
		LifetimeFalsePositiveCount: d.lifetimeFalsePositives,
	})
}

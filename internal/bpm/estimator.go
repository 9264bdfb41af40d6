package bpm

import (
	"math"

	"github.com/charmbracelet/log"
)

// Config mirrors the bpm section of the configuration snapshot (C2):
// config.BPMSection, duplicated here as plain fields so this package has
// no dependency on internal/config.
type Config struct {
	MinBPM                    float64
	MaxBPM                    float64
	StabilityThresholdPercent float64
	CorrectionEnabled         bool
}

// Update is delivered to the registered OnUpdate callback after a tap that
// produces a materially different estimate.
type Update struct {
	BPM         float64
	TapCount    int
	Stable      bool
	TimestampUS uint64
	Corrected   bool
}

// minTapsForEstimate is K >= 4 from spec.md §4.4.
const minTapsForEstimate = 4

// correctionWindow is the "last five consecutive intervals" window used
// by the half/double correction heuristic.
const correctionWindow = 5

// Estimator subscribes to beat events (via AddTap) and maintains the tap
// buffer, current BPM estimate, and stability/correction state described
// in spec.md §4.4.
type Estimator struct {
	cfg    Config
	buf    *tapBuffer
	logger *log.Logger

	onUpdate func(Update)

	haveEstimate bool
	lastEmitted  Update
	emittedBPM   float64 // BPM of the last update delivered to onUpdate
}

// NewEstimator constructs an Estimator. cfg is copied; later config
// changes are applied via SetConfig.
func NewEstimator(cfg Config, logger *log.Logger) *Estimator {
	return &Estimator{
		cfg:    cfg,
		buf:    newTapBuffer(),
		logger: logger,
	}
}

// SetConfig replaces the tuning parameters without disturbing the tap
// buffer, mirroring a configuration change-callback applying in place.
func (e *Estimator) SetConfig(cfg Config) {
	e.cfg = cfg
}

// OnUpdate registers fn as the single BPM-update subscriber, replacing any
// previous registration.
func (e *Estimator) OnUpdate(fn func(Update)) {
	e.onUpdate = fn
}

// Clear empties the tap buffer and resets the estimate.
func (e *Estimator) Clear() {
	e.buf.Clear()
	e.haveEstimate = false
	e.lastEmitted = Update{}
}

// CurrentBPM returns the most recently computed in-range estimate and
// whether one exists yet (false until K >= 4 taps have produced a value
// inside [MinBPM, MaxBPM]). A computed value outside that range is
// withheld and leaves any earlier estimate in place.
func (e *Estimator) CurrentBPM() (float64, bool) {
	return e.lastEmitted.BPM, e.haveEstimate
}

// IsStable reports the stability flag of the most recent estimate.
func (e *Estimator) IsStable() bool {
	return e.haveEstimate && e.lastEmitted.Stable
}

// AddTap records a beat event timestamp and, if it produces a new
// estimate, invokes the registered OnUpdate callback. Per spec.md §5,
// ordering guarantees require this to run on the same (hot-path) context
// that delivered the beat event.
func (e *Estimator) AddTap(ts uint64) {
	e.buf.Add(ts)

	taps := e.buf.Timestamps()
	if len(taps) < minTapsForEstimate {
		return
	}

	intervals := diffs(taps)

	bpmValue, ok := e.rawBPM(intervals)
	if !ok {
		return
	}

	stable := e.stability(intervals)

	corrected := false
	if e.cfg.CorrectionEnabled {
		if correctedBPM, fired := e.halfDoubleCorrection(intervals); fired {
			bpmValue = correctedBPM
			corrected = true
		}
	}

	if bpmValue < e.cfg.MinBPM || bpmValue > e.cfg.MaxBPM {
		// Estimate withheld: out of the configured plausible range.
		return
	}

	update := Update{
		BPM:         bpmValue,
		TapCount:    e.buf.Count(),
		Stable:      stable,
		TimestampUS: ts,
		Corrected:   corrected,
	}

	if e.shouldEmit(update) {
		e.haveEstimate = true
		e.lastEmitted = update
		e.emittedBPM = update.BPM
		if e.onUpdate != nil {
			e.onUpdate(update)
		}
	} else {
		// Still track the latest computed value even when hysteresis
		// suppresses the callback, so CurrentBPM reflects reality.
		e.haveEstimate = true
		e.lastEmitted = update
	}
}

// rawBPM applies outlier rejection then converts the mean valid interval
// to BPM.
func (e *Estimator) rawBPM(intervals []float64) (float64, bool) {
	mean := meanOf(intervals)
	if mean <= 0 {
		return 0, false
	}

	var valid []float64
	for _, d := range intervals {
		if d > 2*mean || d < mean/2 {
			continue // outlier: more than 2x the mean, or less than half of it
		}
		valid = append(valid, d)
	}
	if len(valid) == 0 {
		return 0, false
	}

	validMean := meanOf(valid)
	if validMean <= 0 {
		return 0, false
	}
	return 60_000_000 / validMean, true
}

func (e *Estimator) stability(intervals []float64) bool {
	mean := meanOf(intervals)
	if mean <= 0 {
		return false
	}
	cv := stddevOf(intervals, mean) / mean * 100
	return cv <= e.cfg.StabilityThresholdPercent
}

// halfDoubleCorrection implements spec.md §4.4's half/double-tempo
// correction: the last five consecutive intervals are each compared
// against 2x or 0.5x the running mean of the intervals that came before
// that window. With fewer than ten total intervals there is no "earlier"
// window to compare against, so correction never fires yet — a sustained
// halving/doubling needs at least one full correction-window of prior
// history to be distinguished from the startup transient.
//
// The corrected value is derived from the recent window's own mean
// interval, not the caller's blended whole-buffer rawBPM: during a
// regime change the whole-buffer mean still carries the stale pre-change
// intervals, so doubling/halving it would overshoot the true tempo
// instead of landing back on it.
func (e *Estimator) halfDoubleCorrection(intervals []float64) (correctedBPM float64, fired bool) {
	if len(intervals) < 2*correctionWindow {
		return 0, false
	}

	last5 := intervals[len(intervals)-correctionWindow:]
	earlier := intervals[:len(intervals)-correctionWindow]
	earlierMean := meanOf(earlier)
	if earlierMean <= 0 {
		return 0, false
	}

	recentMean := meanOf(last5)
	if recentMean <= 0 {
		return 0, false
	}
	recentBPM := 60_000_000 / recentMean

	if allWithinFraction(last5, 2*earlierMean, 0.10) {
		// Taps arrived at half the earlier rate: true tempo is double.
		return recentBPM * 2, true
	}
	if allWithinFraction(last5, earlierMean/2, 0.10) {
		// Taps arrived at twice the earlier rate: true tempo is half.
		return recentBPM / 2, true
	}
	return 0, false
}

// shouldEmit applies the hysteresis rule from spec.md §4.4: emit when the
// BPM differs from the last emitted value by more than 5% or 2 BPM
// (whichever is larger), or the stable flag flips, or a correction fires.
func (e *Estimator) shouldEmit(u Update) bool {
	if !e.haveEstimate {
		return true
	}
	if u.Corrected {
		return true
	}
	if u.Stable != e.lastEmitted.Stable {
		return true
	}

	threshold := math.Max(e.emittedBPM*0.05, 2.0)
	return math.Abs(u.BPM-e.emittedBPM) > threshold
}

func diffs(ts []uint64) []float64 {
	out := make([]float64, 0, len(ts)-1)
	for i := 1; i < len(ts); i++ {
		out = append(out, float64(ts[i]-ts[i-1]))
	}
	return out
}

func meanOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func stddevOf(v []float64, mean float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range v {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(v)))
}

func allWithinFraction(v []float64, target, fraction float64) bool {
	lo := target * (1 - fraction)
	hi := target * (1 + fraction)
	for _, x := range v {
		if x < lo || x > hi {
			return false
		}
	}
	return true
}

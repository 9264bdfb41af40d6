package bpm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func defaultConfig() Config {
	return Config{
		MinBPM:                    30,
		MaxBPM:                    600,
		StabilityThresholdPercent: 5,
		CorrectionEnabled:         true,
	}
}

// TestSteadyTempoConverges exercises spec.md §8 scenario 1: 100 beats at a
// steady 428571 µs interval (140 BPM) should settle on BPM ~140, stable.
// Hysteresis suppresses repeats of an unchanged estimate, so at least one
// update event is required, not one per tap.
func TestSteadyTempoConverges(t *testing.T) {
	e := NewEstimator(defaultConfig(), nil)

	var updates []Update
	e.OnUpdate(func(u Update) { updates = append(updates, u) })

	const intervalUS = 428571
	ts := uint64(0)
	for i := 0; i < 100; i++ {
		ts += intervalUS
		e.AddTap(ts)
	}

	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.InDelta(t, 140.0, last.BPM, 0.5)
	assert.True(t, last.Stable)
	assert.GreaterOrEqual(t, len(updates), 1) // hysteresis legitimately collapses a steady stream to very few events
}

func TestRequiresMinimumFourTapsBeforeEstimate(t *testing.T) {
	e := NewEstimator(defaultConfig(), nil)
	_, ok := e.CurrentBPM()
	assert.False(t, ok)

	e.AddTap(0)
	e.AddTap(500000)
	e.AddTap(1000000)
	_, ok = e.CurrentBPM()
	assert.False(t, ok, "three taps (two intervals) is below K>=4")

	e.AddTap(1500000)
	_, ok = e.CurrentBPM()
	assert.True(t, ok)
}

func TestOutOfRangeEstimateWithheld(t *testing.T) {
	cfg := defaultConfig()
	cfg.MinBPM = 100
	cfg.MaxBPM = 200
	e := NewEstimator(cfg, nil)

	// 2000000us interval => 30 BPM, below MinBPM 100: withheld.
	ts := uint64(0)
	for i := 0; i < 5; i++ {
		ts += 2_000_000
		e.AddTap(ts)
	}
	_, ok := e.CurrentBPM()
	assert.False(t, ok)
}

func TestOutlierTapRejectedFromMean(t *testing.T) {
	e := NewEstimator(defaultConfig(), nil)

	const intervalUS = 500000 // 120 BPM
	ts := uint64(0)
	for i := 0; i < 5; i++ {
		ts += intervalUS
		e.AddTap(ts)
	}
	bpmBefore, ok := e.CurrentBPM()
	require.True(t, ok)
	assert.InDelta(t, 120.0, bpmBefore, 0.5)

	// A single wildly long gap (a missed beat folded into one interval)
	// should be excluded from the mean rather than dragging the estimate
	// far off 120.
	ts += 5 * intervalUS
	e.AddTap(ts)
	bpmAfter, ok := e.CurrentBPM()
	require.True(t, ok)
	assert.InDelta(t, 120.0, bpmAfter, 5.0)
}

// TestHalfTempoCorrection exercises a genuine regime change: an
// established ~140 BPM baseline, followed by five sustained taps at
// double the interval (half the rate). The corrected estimate should
// report back near 140 with Corrected set.
func TestHalfTempoCorrection(t *testing.T) {
	e := NewEstimator(defaultConfig(), nil)

	var updates []Update
	e.OnUpdate(func(u Update) { updates = append(updates, u) })

	const baseline = 428571 // 140 BPM
	ts := uint64(0)
	for i := 0; i < 8; i++ {
		ts += baseline
		e.AddTap(ts)
	}

	const halved = baseline * 2 // performer now tapping every other beat
	var lastUpdate Update
	for i := 0; i < 5; i++ {
		ts += halved
		e.AddTap(ts)
		if bpm, ok := e.CurrentBPM(); ok {
			lastUpdate = Update{BPM: bpm}
		}
	}

	assert.InDelta(t, 140.0, lastUpdate.BPM, 2.0)

	var sawCorrection bool
	for _, u := range updates {
		if u.Corrected {
			sawCorrection = true
			assert.InDelta(t, 140.0, u.BPM, 2.0)
		}
	}
	assert.True(t, sawCorrection, "expected a corrected update once the halved-rate window filled")
}

func TestClearResetsEstimate(t *testing.T) {
	e := NewEstimator(defaultConfig(), nil)
	ts := uint64(0)
	for i := 0; i < 5; i++ {
		ts += 500000
		e.AddTap(ts)
	}
	_, ok := e.CurrentBPM()
	require.True(t, ok)

	e.Clear()
	_, ok = e.CurrentBPM()
	assert.False(t, ok)
	assert.False(t, e.IsStable())
}

// TestHysteresisSuppressesSmallDrift checks that small jitter under the
// 5%/2BPM threshold does not trigger repeated update callbacks.
func TestHysteresisSuppressesSmallDrift(t *testing.T) {
	e := NewEstimator(defaultConfig(), nil)

	var updates []Update
	e.OnUpdate(func(u Update) { updates = append(updates, u) })

	ts := uint64(0)
	intervals := []uint64{428571, 428600, 428550, 428580, 428571, 428590, 428560}
	for _, d := range intervals {
		ts += d
		e.AddTap(ts)
	}

	assert.LessOrEqual(t, len(updates), 2, "sub-threshold jitter should not repeatedly re-emit")
}

// TestMonotonicTapsProduceBoundedBPM is a property check: for any
// strictly increasing sequence of tap timestamps with intervals bounded
// within a plausible range, once an estimate is produced it must fall
// within [MinBPM, MaxBPM].
func TestMonotonicTapsProduceBoundedBPM(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := defaultConfig()
		e := NewEstimator(cfg, nil)

		n := rapid.IntRange(4, 30).Draw(rt, "n")
		ts := uint64(0)
		for i := 0; i < n; i++ {
			interval := rapid.Uint64Range(100000, 2_000_000).Draw(rt, "interval")
			ts += interval
			e.AddTap(ts)
		}

		if bpm, ok := e.CurrentBPM(); ok {
			assert.GreaterOrEqual(t, bpm, cfg.MinBPM)
			assert.LessOrEqual(t, bpm, cfg.MaxBPM)
		}
	})
}

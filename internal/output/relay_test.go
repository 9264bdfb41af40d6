package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLine struct {
	values []int
}

func (f *fakeLine) SetValue(v int) error {
	f.values = append(f.values, v)
	return nil
}

func (f *fakeLine) current() int {
	if len(f.values) == 0 {
		return -1
	}
	return f.values[len(f.values)-1]
}

func testRelayConfig() RelayConfig {
	return RelayConfig{Enabled: true, PulseUS: 200_000, WatchdogUS: 100_000, DebounceUS: 50_000}
}

func TestRelayLowAtBoot(t *testing.T) {
	line := &fakeLine{}
	NewRelayController(line, testRelayConfig())
	assert.Equal(t, 0, line.current())
}

// TestRelayWatchdog exercises spec.md §8 scenario 4: pulse_ms=200,
// watchdog_ms=100. At 99ms still HIGH; at 101ms LOW with watchdog counter
// = 1.
func TestRelayWatchdog(t *testing.T) {
	line := &fakeLine{}
	r := NewRelayController(line, testRelayConfig())

	require.NoError(t, r.PulseRelay(0))
	assert.Equal(t, 1, line.current())

	r.Tick(99_000)
	assert.Equal(t, 1, line.current(), "still HIGH at 99ms")
	assert.Equal(t, uint64(0), r.WatchdogFirings())

	r.Tick(101_000)
	assert.Equal(t, 0, line.current(), "forced LOW at 101ms by the watchdog")
	assert.Equal(t, uint64(1), r.WatchdogFirings())
	assert.Equal(t, RelayIDLE, r.State())
}

func TestRelayNormalPulseCompletesWithoutWatchdog(t *testing.T) {
	line := &fakeLine{}
	cfg := testRelayConfig()
	cfg.WatchdogUS = 300_000 // longer than the 200ms pulse, so the pulse ends normally
	r := NewRelayController(line, cfg)

	require.NoError(t, r.PulseRelay(0))
	r.Tick(200_000)
	assert.Equal(t, 0, line.current())
	assert.Equal(t, RelayOffDebounce, r.State())
	assert.Equal(t, uint64(0), r.WatchdogFirings())

	r.Tick(249_000) // 49ms after OFF, still within debounce (50ms)
	assert.Equal(t, RelayOffDebounce, r.State())

	r.Tick(251_000) // 51ms after OFF
	assert.Equal(t, RelayIDLE, r.State())
}

func TestRelayDebounceRejectsPulseWhileNotIdle(t *testing.T) {
	line := &fakeLine{}
	r := NewRelayController(line, testRelayConfig())

	require.NoError(t, r.PulseRelay(0))
	err := r.PulseRelay(50_000)
	assert.ErrorIs(t, err, ErrRelayDebounceReject)
	assert.Equal(t, uint64(1), r.DebounceRejects())
}

func TestRelayDebounceRejectsWithinWindowAfterOff(t *testing.T) {
	line := &fakeLine{}
	cfg := testRelayConfig()
	cfg.WatchdogUS = 300_000 // longer than the 200ms pulse, so the pulse ends normally
	r := NewRelayController(line, cfg)

	require.NoError(t, r.PulseRelay(0))
	r.Tick(200_000) // pulse completes, enters OFF_DEBOUNCE
	r.Tick(230_000) // debounce elapses at 250_000, not yet
	require.Equal(t, RelayOffDebounce, r.State())

	err := r.PulseRelay(230_000)
	assert.ErrorIs(t, err, ErrRelayDebounceReject)
}

func TestRelayDisabledRejectsPulse(t *testing.T) {
	line := &fakeLine{}
	cfg := testRelayConfig()
	cfg.Enabled = false
	r := NewRelayController(line, cfg)

	err := r.PulseRelay(0)
	assert.ErrorIs(t, err, ErrRelayDisabled)
}

func TestRelayDisableForcesLowFromAnyState(t *testing.T) {
	line := &fakeLine{}
	r := NewRelayController(line, testRelayConfig())
	require.NoError(t, r.PulseRelay(0))
	require.Equal(t, 1, line.current())

	r.Disable(10_000)
	assert.Equal(t, 0, line.current())
	assert.Equal(t, RelayIDLE, r.State())
}

func TestRelayShutdownForcesLow(t *testing.T) {
	line := &fakeLine{}
	r := NewRelayController(line, testRelayConfig())
	require.NoError(t, r.PulseRelay(0))

	r.Shutdown()
	assert.Equal(t, 0, line.current())
}

func TestRelayNeverHighLongerThanWatchdog(t *testing.T) {
	line := &fakeLine{}
	r := NewRelayController(line, testRelayConfig())
	require.NoError(t, r.PulseRelay(0))

	for now := uint64(0); now <= 300_000; now += 1000 {
		r.Tick(now)
		if line.current() == 1 {
			assert.LessOrEqual(t, now-0, r.cfg.WatchdogUS)
		}
	}
}

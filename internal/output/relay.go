package output

import "errors"

// ErrRelayDisabled is returned by PulseRelay when the relay channel is
// turned off in configuration.
var ErrRelayDisabled = errors.New("output: relay disabled")

// ErrRelayDebounceReject is returned by PulseRelay when called too soon
// after the previous pulse's OFF transition, or while a pulse is already
// in progress.
var ErrRelayDebounceReject = errors.New("output: relay debounce reject")

// RelayState is one of the four states from spec.md §3.
type RelayState int

const (
	RelayIDLE RelayState = iota
	RelayON
	RelayOffDebounce
	RelayWatchdog
)

func (s RelayState) String() string {
	switch s {
	case RelayIDLE:
		return "IDLE"
	case RelayON:
		return "ON"
	case RelayOffDebounce:
		return "OFF_DEBOUNCE"
	case RelayWatchdog:
		return "WATCHDOG"
	default:
		return "UNKNOWN"
	}
}

// GPIOLine is the single digital output driving the relay. HIGH (1) =
// energized, per spec.md §6.
type GPIOLine interface {
	SetValue(v int) error
}

// RelayConfig mirrors the relay fields of config.OutputSection, converted
// to microseconds.
type RelayConfig struct {
	Enabled    bool
	PulseUS    uint64
	WatchdogUS uint64
	DebounceUS uint64
}

// RelayController runs the relay pulse state machine of spec.md §4.5. Like
// the output scheduler, it has no timer of its own: Tick is driven by the
// hot path.
type RelayController struct {
	line GPIOLine
	cfg  RelayConfig

	state RelayState

	tOn        uint64
	tOff       uint64
	haveTOff   bool
	watchdogAt uint64

	lifetimePulses          uint64
	lifetimeWatchdogFirings uint64
	lifetimeDebounceRejects uint64
}

// NewRelayController constructs a controller and immediately drives the
// line low, satisfying the "GPIO is low at boot" safety invariant.
func NewRelayController(line GPIOLine, cfg RelayConfig) *RelayController {
	line.SetValue(0)
	return &RelayController{line: line, cfg: cfg, state: RelayIDLE}
}

// SetConfig replaces tuning parameters without disturbing in-flight pulse
// state.
func (r *RelayController) SetConfig(cfg RelayConfig) {
	r.cfg = cfg
}

// State returns the current relay state.
func (r *RelayController) State() RelayState {
	return r.state
}

// PulseRelay requests a pulse. It only succeeds from IDLE, outside the
// debounce window following the previous pulse's OFF transition.
func (r *RelayController) PulseRelay(now uint64) error {
	if !r.cfg.Enabled {
		return ErrRelayDisabled
	}
	if r.state != RelayIDLE || (r.haveTOff && now-r.tOff < r.cfg.DebounceUS) {
		r.lifetimeDebounceRejects++
		return ErrRelayDebounceReject
	}

	r.line.SetValue(1)
	r.tOn = now
	r.watchdogAt = now + r.cfg.WatchdogUS
	r.state = RelayON
	r.lifetimePulses++
	return nil
}

// Tick advances timed transitions: pulse-width expiry, watchdog
// expiry, and debounce expiry. Call on every hot-path pass.
func (r *RelayController) Tick(now uint64) {
	switch r.state {
	case RelayON:
		if now >= r.watchdogAt {
			r.line.SetValue(0)
			r.lifetimeWatchdogFirings++
			r.tOff = now
			r.haveTOff = true
			// WATCHDOG -> IDLE is immediate per spec.md §4.5; State()
			// briefly reporting RelayWatchdog here would require a second
			// Tick call to settle, so the transition happens within this
			// call, matching the documented "immediately".
			r.state = RelayIDLE
			return
		}
		if now-r.tOn >= r.cfg.PulseUS {
			r.line.SetValue(0)
			r.tOff = now
			r.haveTOff = true
			r.state = RelayOffDebounce
		}
	case RelayOffDebounce:
		if now-r.tOff >= r.cfg.DebounceUS {
			r.state = RelayIDLE
		}
	}
}

// Disable forces the GPIO line low from any state, as required when the
// relay channel is turned off or the process is shutting down. The state
// returns to IDLE within this call, and tOff is recorded so the debounce
// window still applies to the next pulse.
func (r *RelayController) Disable(now uint64) {
	r.line.SetValue(0)
	r.tOff = now
	r.haveTOff = true
	r.state = RelayIDLE
}

// Shutdown drives the GPIO line low unconditionally, for the process
// shutdown path.
func (r *RelayController) Shutdown() {
	r.line.SetValue(0)
}

// WatchdogFirings returns the lifetime watchdog counter.
func (r *RelayController) WatchdogFirings() uint64 {
	return r.lifetimeWatchdogFirings
}

// DebounceRejects returns the lifetime debounce-reject counter.
func (r *RelayController) DebounceRejects() uint64 {
	return r.lifetimeDebounceRejects
}

// Pulses returns the lifetime pulse counter.
func (r *RelayController) Pulses() uint64 {
	return r.lifetimePulses
}

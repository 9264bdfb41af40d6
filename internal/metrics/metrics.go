// Package metrics exposes the core's lifetime counters and gauges as
// Prometheus collectors, for the external HTTP collaborator to scrape.
// The core components themselves never import this package; wiring
// happens in cmd/metronome by subscribing to the same event streams the
// fan-out bus multiplexes.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the core's event streams feed.
// MustRegister registers them all with a prometheus.Registerer in one call.
type Metrics struct {
	BeatsDetected      prometheus.Counter
	FalsePositives     prometheus.Counter
	AGCLevel           prometheus.Gauge
	BPMCurrent         prometheus.Gauge
	BPMStable          prometheus.Gauge
	CorrectionsFired   prometheus.Counter
	ClocksSent         prometheus.Counter
	NetworkSendFailure prometheus.Counter
	RelayPulses        prometheus.Counter
	WatchdogFirings    prometheus.Counter
	DebounceRejects    prometheus.Counter
}

// New constructs all collectors, namespaced "metronome".
func New() *Metrics {
	const ns = "metronome"
	return &Metrics{
		BeatsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "audio", Name: "beats_detected_total",
			Help: "Lifetime count of beat events emitted by the detection engine.",
		}),
		FalsePositives: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "audio", Name: "false_positives_total",
			Help: "Lifetime count of rejected beat triggers (kick-only mode filtering).",
		}),
		AGCLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "audio", Name: "agc_level_db",
			Help: "Current automatic gain control level in dB.",
		}),
		BPMCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "bpm", Name: "current",
			Help: "Most recently emitted BPM estimate.",
		}),
		BPMStable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "bpm", Name: "stable",
			Help: "1 if the current BPM estimate is stable, 0 otherwise.",
		}),
		CorrectionsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "bpm", Name: "corrections_total",
			Help: "Lifetime count of half/double-tempo corrections applied.",
		}),
		ClocksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "output", Name: "midi_clocks_sent_total",
			Help: "Lifetime count of MIDI clock messages transmitted.",
		}),
		NetworkSendFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "output", Name: "network_send_failures_total",
			Help: "Lifetime count of RTP-MIDI sends that failed or missed the soft deadline.",
		}),
		RelayPulses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "output", Name: "relay_pulses_total",
			Help: "Lifetime count of relay pulses started.",
		}),
		WatchdogFirings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "output", Name: "relay_watchdog_firings_total",
			Help: "Lifetime count of relay pulses force-terminated by the watchdog.",
		}),
		DebounceRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "output", Name: "relay_debounce_rejects_total",
			Help: "Lifetime count of pulse_relay calls rejected by the debounce window.",
		}),
	}
}

// MustRegister registers every collector with reg, panicking on
// collision (mirrors prometheus.MustRegister's contract).
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.BeatsDetected,
		m.FalsePositives,
		m.AGCLevel,
		m.BPMCurrent,
		m.BPMStable,
		m.CorrectionsFired,
		m.ClocksSent,
		m.NetworkSendFailure,
		m.RelayPulses,
		m.WatchdogFirings,
		m.DebounceRejects,
	)
}
